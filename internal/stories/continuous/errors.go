package continuous

import "github.com/pkg/errors"

// Validation errors. They are detected before any backend call and leave the
// draft unchanged.
var (
	ErrInvalidNumber     = errors.New("enter a valid number")
	ErrOffsetAboveMax    = errors.New("offset exceeds maximum orders by level")
	ErrExceedsMaxOrders  = errors.New("exceeds maximum orders by level")
	ErrAlreadyAssigned   = errors.New("already in continuous orders")
	ErrNotAssigned       = errors.New("product is not in continuous orders")
	ErrResetNotConfirmed = errors.New("reset must be confirmed")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session closed")
)

var (
	// ErrSubmitInProgress rejects edits while a commit or reset is on the wire.
	ErrSubmitInProgress = errors.New("commit or reset in progress")
	// ErrRefreshFailed marks a silent refresh whose fetch failed.
	ErrRefreshFailed = errors.New("overview refresh failed")
)

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidNumber,
		ErrOffsetAboveMax,
		ErrExceedsMaxOrders,
		ErrAlreadyAssigned,
		ErrNotAssigned,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
