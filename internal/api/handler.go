package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"reseller-panel/internal/stories/continuous"
	"reseller-panel/internal/stories/products"
)

const (
	maxBodyBytes        = 1 << 20
	defaultJournalLimit = 50
)

// Handler serves the operator API on top of the editing sessions.
type Handler struct {
	sessions Sessions
	tr       Translator
	logger   *slog.Logger
}

func NewHandler(sessions Sessions, tr Translator, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		tr:       tr,
		logger:   logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.openSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.closeSession)
			r.Put("/offset", h.setOffset)
			r.Post("/items", h.insertItem)
			r.Post("/replace-next", h.replaceNext)
			r.Delete("/items/{productID}", h.removeItem)
			r.Post("/discard", h.discard)
			r.Post("/commit", h.commit)
			r.Post("/reset", h.reset)
			r.Get("/products", h.listProducts)
		})

		r.Get("/users/{userID}/journal", h.journal)
	})

	return r
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if req.UserID <= 0 {
		h.writeError(w, r, errors.Wrap(errInvalidRequest, "user_id is required"), nil)
		return
	}

	view, err := h.sessions.Open(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(view))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.View(chi.URLParam(r, "sessionID"))
	h.respondView(w, r, view, err)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setOffset(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	view, err := h.sessions.SetOffset(chi.URLParam(r, "sessionID"), string(req.Value))
	h.respondView(w, r, view, err)
}

func (h *Handler) insertItem(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	view, err := h.sessions.Insert(chi.URLParam(r, "sessionID"), ref)
	h.respondView(w, r, view, err)
}

func (h *Handler) replaceNext(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	view, err := h.sessions.ReplaceNext(chi.URLParam(r, "sessionID"), ref)
	h.respondView(w, r, view, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.writeError(w, r, errors.Wrap(errInvalidRequest, "product id"), nil)
		return
	}

	view, err := h.sessions.Remove(chi.URLParam(r, "sessionID"), id)
	h.respondView(w, r, view, err)
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Discard(chi.URLParam(r, "sessionID"))
	h.respondView(w, r, view, err)
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	view, err := h.sessions.Commit(r.Context(), sessionID, string(req.StartContinuousOrdersAfter))
	if errors.Is(err, continuous.ErrOffsetAboveMax) {
		params := map[string]interface{}{}
		if current, viewErr := h.sessions.View(sessionID); viewErr == nil {
			params["max"] = current.Overview.MaxOrdersByLevel
		}
		h.writeError(w, r, err, params)
		return
	}
	h.respondView(w, r, view, err)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	view, err := h.sessions.Reset(r.Context(), chi.URLParam(r, "sessionID"), req.Confirm)
	h.respondView(w, r, view, err)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	page, err := h.sessions.Products(r.Context(), chi.URLParam(r, "sessionID"), criteria)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newProductsPageResponse(page))
}

func (h *Handler) journal(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.writeError(w, r, errors.Wrap(errInvalidRequest, "user id"), nil)
		return
	}

	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			h.writeError(w, r, errors.Wrap(errInvalidRequest, "limit"), nil)
			return
		}
	}

	entries, err := h.sessions.Journal(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newJournalResponse(entries))
}

func (h *Handler) decodeItem(w http.ResponseWriter, r *http.Request) (continuous.ProductRef, bool) {
	var req itemRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return continuous.ProductRef{}, false
	}
	if req.ProductID <= 0 {
		h.writeError(w, r, errors.Wrap(errInvalidRequest, "product_id is required"), nil)
		return continuous.ProductRef{}, false
	}
	return req.ToModel(), true
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, view *continuous.SessionView, err error) {
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(view))
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func parseCriteria(r *http.Request) (products.Criteria, error) {
	q := r.URL.Query()
	criteria := products.Criteria{
		Status: products.Status(q.Get("status")),
		Search: q.Get("search"),
	}

	var err error
	if raw := q.Get("limit"); raw != "" {
		if criteria.Limit, err = strconv.Atoi(raw); err != nil {
			return criteria, errors.Wrap(products.ErrInvalidCriteria, "limit")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if criteria.Offset, err = strconv.Atoi(raw); err != nil {
			return criteria, errors.Wrap(products.ErrInvalidCriteria, "offset")
		}
	}
	if criteria.MinPrice, err = parsePrice(q.Get("min_price")); err != nil {
		return criteria, errors.Wrap(products.ErrInvalidCriteria, "min_price")
	}
	if criteria.MaxPrice, err = parsePrice(q.Get("max_price")); err != nil {
		return criteria, errors.Wrap(products.ErrInvalidCriteria, "max_price")
	}
	return criteria, nil
}

func parsePrice(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(errInvalidRequest, err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
