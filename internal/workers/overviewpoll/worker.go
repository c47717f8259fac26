package overviewpoll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"reseller-panel/internal/stories/continuous"
)

const maxParallelRefreshes = 4

var refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "panel",
	Subsystem: "poll",
	Name:      "refreshes_total",
	Help:      "Silent overview refreshes by result.",
}, []string{"result"})

// Worker refreshes every open session on a fixed interval. Failures stay
// silent: they are logged at debug level and counted.
type Worker struct {
	sessions Sessions
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewWorker(sessions Sessions, interval time.Duration, logger *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (w *Worker) Name() string {
	return "overviewpoll"
}

func (w *Worker) Start() error {
	w.logger.Info("Starting overview poll worker", "interval", w.interval)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in overview poll worker goroutine", "panic", r)
			}
		}()
		w.run()
	}()
	return nil
}

// Stop cancels in-flight fetches and waits for the loop to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping overview poll worker")
		w.cancel()
		close(w.stopCh)
		<-w.doneCh
	})
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Poll(w.ctx)
		case <-w.stopCh:
			return
		}
	}
}

// Poll refreshes all sessions once.
func (w *Worker) Poll(ctx context.Context) {
	ids := w.sessions.Sessions()
	if len(ids) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRefreshes)

	for _, id := range ids {
		g.Go(func() error {
			changed, err := w.sessions.Refresh(gctx, id, true)
			result := refreshResult(changed, err)
			switch result {
			case "error":
				w.logger.Debug("Overview refresh failed", "session_id", id, "error", err)
			case "gone":
				w.logger.Debug("Session gone before refresh", "session_id", id, "error", err)
			case "changed":
				w.logger.Debug("Overview changed on server", "session_id", id)
			}
			refreshes.WithLabelValues(result).Inc()
			return nil
		})
	}

	_ = g.Wait()
}

func refreshResult(changed bool, err error) string {
	switch {
	case errors.Is(err, continuous.ErrRefreshFailed):
		return "error"
	case err != nil:
		// closed between listing and refreshing
		return "gone"
	case changed:
		return "changed"
	default:
		return "unchanged"
	}
}
