package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"reseller-panel/internal/stories/continuous"
)

const (
	journalEntriesTable = "journal_entries"
	journalItemsTable   = "journal_items"
)

var (
	journalEntryRowFields = fields(journalEntryRow{})
	journalItemRowFields  = fields(journalItemRow{})
)

type journalEntryRow struct {
	ID         string    `db:"id"`
	SessionID  string    `db:"session_id"`
	UserID     int64     `db:"user_id"`
	Kind       string    `db:"kind"`
	StartAfter int       `db:"start_after"`
	CreatedAt  time.Time `db:"created_at"`
}

type journalItemRow struct {
	EntryID   string `db:"entry_id"`
	ProductID int64  `db:"product_id"`
	Position  int    `db:"position"`
}

func (r journalEntryRow) ToModel(items []journalItemRow) *continuous.JournalEntry {
	return &continuous.JournalEntry{
		ID:        r.ID,
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Kind:      continuous.JournalKind(r.Kind),
		Offset:    r.StartAfter,
		CreatedAt: r.CreatedAt.UTC(),
		Items: lo.Map(items, func(it journalItemRow, _ int) continuous.PositionAssignment {
			return continuous.PositionAssignment{ProductID: it.ProductID, Position: it.Position}
		}),
	}
}

// AppendJournalEntry stores an entry and its items in one transaction.
func (s *storageImpl) AppendJournalEntry(ctx context.Context, entry continuous.JournalEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	entryQ, entryArgs, err := s.stmpBuilder().
		Insert(journalEntriesTable).
		SetMap(map[string]interface{}{
			"id":          entry.ID,
			"session_id":  entry.SessionID,
			"user_id":     entry.UserID,
			"kind":        string(entry.Kind),
			"start_after": entry.Offset,
			"created_at":  createdAt.UTC(),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	var itemsQ string
	var itemsArgs []interface{}
	if len(entry.Items) > 0 {
		builder := s.stmpBuilder().
			Insert(journalItemsTable).
			Columns("entry_id", "product_id", "position")
		for _, it := range entry.Items {
			builder = builder.Values(entry.ID, it.ProductID, it.Position)
		}
		if itemsQ, itemsArgs, err = builder.ToSql(); err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, entryQ, entryArgs...); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}
		if itemsQ == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx, itemsQ, itemsArgs...); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}
		return nil
	})
}

// ListJournal returns up to limit entries of a user, newest first.
func (s *storageImpl) ListJournal(ctx context.Context, userID int64, limit int) ([]*continuous.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	q, args, err := s.stmpBuilder().
		Select(journalEntryRowFields).
		From(journalEntriesTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []journalEntryRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	q, args, err = s.stmpBuilder().
		Select(journalItemRowFields).
		From(journalItemsTable).
		Where(sq.Eq{"entry_id": lo.Map(rows, func(r journalEntryRow, _ int) string { return r.ID })}).
		OrderBy("entry_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var items []journalItemRow
	if err := s.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}
	byEntry := lo.GroupBy(items, func(it journalItemRow) string { return it.EntryID })

	return lo.Map(rows, func(r journalEntryRow, _ int) *continuous.JournalEntry {
		return r.ToModel(byEntry[r.ID])
	}), nil
}

// PruneJournal deletes entries created before the cutoff. Items go with them.
func (s *storageImpl) PruneJournal(ctx context.Context, before time.Time) (int64, error) {
	q, args, err := s.stmpBuilder().
		Delete(journalEntriesTable).
		Where(sq.Lt{"created_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected: %w", err)
	}
	return n, nil
}
