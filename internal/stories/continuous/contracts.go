package continuous

import (
	"context"
	"time"

	"reseller-panel/internal/stories/products"
)

type (
	Backend interface {
		GetUserOrderOverview(ctx context.Context, userID int64) (*Overview, error)
		UpdateUserOrderOverview(ctx context.Context, userID int64, update AssignmentUpdate) error
		ResetUserContinuousOrders(ctx context.Context, userID int64) error
	}

	ProductCatalog interface {
		List(ctx context.Context, criteria products.Criteria) (*products.Page, error)
	}

	Journal interface {
		AppendJournalEntry(ctx context.Context, entry JournalEntry) error
		ListJournal(ctx context.Context, userID int64, limit int) ([]*JournalEntry, error)
	}

	// Notifier tells admins about commits and resets. Optional.
	Notifier interface {
		NotifyJournalEntry(ctx context.Context, entry JournalEntry, username string) error
	}

	Clock func() time.Time
)
