package api

import (
	"context"

	"reseller-panel/internal/stories/continuous"
	"reseller-panel/internal/stories/products"
)

type (
	// Sessions is satisfied by *continuous.Service.
	Sessions interface {
		Open(ctx context.Context, userID int64) (*continuous.SessionView, error)
		View(sessionID string) (*continuous.SessionView, error)
		Close(sessionID string) error
		SetOffset(sessionID string, raw string) (*continuous.SessionView, error)
		Insert(sessionID string, p continuous.ProductRef) (*continuous.SessionView, error)
		ReplaceNext(sessionID string, p continuous.ProductRef) (*continuous.SessionView, error)
		Remove(sessionID string, id continuous.ProductID) (*continuous.SessionView, error)
		Discard(sessionID string) (*continuous.SessionView, error)
		Commit(ctx context.Context, sessionID string, rawOffset string) (*continuous.SessionView, error)
		Reset(ctx context.Context, sessionID string, confirmed bool) (*continuous.SessionView, error)
		Products(ctx context.Context, sessionID string, criteria products.Criteria) (*products.Page, error)
		Journal(ctx context.Context, userID int64, limit int) ([]*continuous.JournalEntry, error)
	}

	Translator interface {
		Get(lang, key string, params map[string]interface{}) string
	}
)
