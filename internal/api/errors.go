package api

import (
	"net/http"

	"github.com/pkg/errors"

	"reseller-panel/internal/infra/backend"
	"reseller-panel/internal/localization"
	"reseller-panel/internal/stories/continuous"
	"reseller-panel/internal/stories/products"
)

var errInvalidRequest = errors.New("invalid request")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error to an HTTP status and a translation code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, continuous.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, continuous.ErrSessionClosed):
		return http.StatusNotFound, "session_closed"
	case errors.Is(err, continuous.ErrSubmitInProgress):
		return http.StatusConflict, "submit_in_progress"
	case errors.Is(err, continuous.ErrResetNotConfirmed):
		return http.StatusBadRequest, "reset_not_confirmed"
	case errors.Is(err, continuous.ErrInvalidNumber):
		return http.StatusUnprocessableEntity, "invalid_number"
	case errors.Is(err, continuous.ErrOffsetAboveMax):
		return http.StatusUnprocessableEntity, "offset_above_max"
	case errors.Is(err, continuous.ErrExceedsMaxOrders):
		return http.StatusUnprocessableEntity, "exceeds_max_orders"
	case errors.Is(err, continuous.ErrAlreadyAssigned):
		return http.StatusUnprocessableEntity, "already_assigned"
	case errors.Is(err, continuous.ErrNotAssigned):
		return http.StatusUnprocessableEntity, "not_assigned"
	case errors.Is(err, products.ErrInvalidCriteria):
		return http.StatusUnprocessableEntity, "invalid_criteria"
	}

	if _, ok := backend.AsAPIError(err); ok {
		return http.StatusBadGateway, "backend"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, params map[string]interface{}) {
	status, code := classify(err)

	if apiErr, ok := backend.AsAPIError(err); ok {
		if params == nil {
			params = map[string]interface{}{}
		}
		params["message"] = apiErr.Message
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}

	lang := localization.Match(r.Header.Get("Accept-Language"))
	writeJSON(w, status, errorResponse{
		Error: h.tr.Get(lang, "errors."+code, params),
		Code:  code,
	})
}
