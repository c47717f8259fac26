package notify

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"reseller-panel/internal/stories/continuous"
)

type sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type translator interface {
	Get(lang, key string, params map[string]interface{}) string
}

// Notifier tells admin chats about commits and resets.
type Notifier struct {
	sender   sender
	tr       translator
	lang     string
	adminIDs []int64
	logger   *slog.Logger
}

func NewNotifier(sender sender, tr translator, lang string, adminIDs []int64, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		tr:       tr,
		lang:     lang,
		adminIDs: adminIDs,
		logger:   logger,
	}
}

// NotifyJournalEntry sends one message per admin. Every admin is tried; the
// first failure is returned.
func (n *Notifier) NotifyJournalEntry(ctx context.Context, entry continuous.JournalEntry, username string) error {
	text := n.Text(entry, username)

	var firstErr error
	for _, chatID := range n.adminIDs {
		if err := n.sender.SendMessage(ctx, chatID, text); err != nil {
			n.logger.Warn("Failed to notify admin", "chat_id", chatID, "error", err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "notify admin %d", chatID)
			}
		}
	}
	return firstErr
}

func (n *Notifier) Text(entry continuous.JournalEntry, username string) string {
	if username == "" {
		username = "-"
	}
	params := map[string]interface{}{
		"username": username,
		"user_id":  entry.UserID,
		"offset":   entry.Offset,
		"count":    len(entry.Items),
	}

	key := "notify.commit"
	if entry.Kind == continuous.JournalKindReset {
		key = "notify.reset"
	}
	return n.tr.Get(n.lang, key, params)
}
