package journalprune

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Journal interface {
	PruneJournal(ctx context.Context, before time.Time) (int64, error)
}

// Worker deletes journal entries older than the retention window on a cron
// schedule.
type Worker struct {
	journal   Journal
	retention time.Duration
	schedule  string
	now       func() time.Time
	logger    *slog.Logger
	cron      *cron.Cron
}

func NewWorker(journal Journal, retention time.Duration, schedule string, logger *slog.Logger) *Worker {
	return &Worker{
		journal:   journal,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
		logger:    logger,
		cron:      cron.New(),
	}
}

func (w *Worker) Name() string {
	return "journalprune"
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.Prune(context.Background()); err != nil {
			w.logger.Error("Journal prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add journal prune job: %w", err)
	}

	w.cron.Start()
	w.logger.Info("Journal prune worker started", "schedule", w.schedule, "retention", w.retention)
	return nil
}

// Stop waits for a running prune to finish.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

// Prune removes everything older than now minus retention.
func (w *Worker) Prune(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	n, err := w.journal.PruneJournal(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}

	w.logger.Info("Journal pruned", "deleted", n, "before", cutoff)
	return n, nil
}
