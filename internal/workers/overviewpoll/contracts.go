package overviewpoll

import "context"

type (
	// Sessions is the set of open editing sessions to keep fresh.
	Sessions interface {
		Sessions() []string
		Refresh(ctx context.Context, sessionID string, silent bool) (bool, error)
	}
)
