package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// APIError is a non-2xx answer from the backend. Message is whatever the
// server put into its "message" field, or the raw body if that was missing.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend: %d: %s", e.Status, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		apiErr.Message = strings.TrimSpace(payload.Message)
		return apiErr
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > 200 {
		raw = raw[:200]
	}
	apiErr.Message = raw
	return apiErr
}

// AsAPIError unwraps err down to an *APIError, if there is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
