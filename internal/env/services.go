package environment

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"reseller-panel/internal/config"
	"reseller-panel/internal/localization"
	"reseller-panel/internal/notify"
	"reseller-panel/internal/storage"
	"reseller-panel/internal/stories/continuous"
	"reseller-panel/internal/stories/products"
	"reseller-panel/internal/workers"
	"reseller-panel/internal/workers/journalprune"
	"reseller-panel/internal/workers/overviewpoll"
)

type Services struct {
	Localization  *localization.Service
	Products      *products.Service
	Continuous    *continuous.Service
	WorkerManager *workers.Manager
}

func newServices(ctx context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	storageImpl := storage.New(clients.SQLiteDB.DB)
	if err := storageImpl.Migrate(ctx, logger.With("component", "migrate")); err != nil {
		return nil, errors.Wrap(err, "migrate journal")
	}

	tr, err := localization.NewService()
	if err != nil {
		return nil, errors.Wrap(err, "load translations")
	}
	s.Localization = tr

	s.Products = products.NewService(clients.Backend)

	// Nil-указатель в интерфейсе не равен nil, поэтому notifier задаём только явно.
	var notifier continuous.Notifier
	switch {
	case clients.TelegramBot == nil:
		logger.Info("Telegram token is not set, admin notifications disabled")
	case len(cfg.Telegram.AdminIDs) == 0:
		logger.Warn("Telegram admin ids are empty, admin notifications disabled")
	default:
		notifier = notify.NewNotifier(clients.TelegramBot, tr, cfg.Telegram.Language, cfg.Telegram.AdminIDs, logger.With("component", "notify"))
	}

	s.Continuous = continuous.NewService(
		clients.Backend,
		s.Products,
		storageImpl,
		notifier,
		time.Now,
		logger.With("component", "continuous"),
	)

	s.WorkerManager = workers.NewManager(
		logger.With("component", "workers"),
		overviewpoll.NewWorker(s.Continuous, cfg.Poll.Interval, logger.With("worker", "overviewpoll")),
		journalprune.NewWorker(storageImpl, cfg.Journal.Retention, cfg.Journal.PruneSchedule, logger.With("worker", "journalprune")),
	)

	return &s, nil
}
