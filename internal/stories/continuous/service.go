package continuous

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"reseller-panel/internal/stories/products"
)

// session is one operator editing one user's queue.
type session struct {
	id     string
	userID int64

	mu         sync.Mutex
	closed     bool
	submitting bool
	overview   Overview
	draft    *Draft
	criteria products.Criteria
	page     *products.Page
}

// SessionView is a consistent snapshot of a session for rendering.
type SessionView struct {
	SessionID    string
	Overview     Overview
	Offset       int
	NextPosition int
	Visible      []VisibleItem
	HasChanges   bool
	Products     *products.Page
}

// Service manages editing sessions and drives the draft against the backend.
type Service struct {
	backend  Backend
	catalog  ProductCatalog
	journal  Journal
	notifier Notifier
	logger   *slog.Logger
	now      Clock

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewService(backend Backend, catalog ProductCatalog, journal Journal, notifier Notifier, now Clock, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		backend:  backend,
		catalog:  catalog,
		journal:  journal,
		notifier: notifier,
		logger:   logger,
		now:      now,
		sessions: make(map[string]*session),
	}
}

// Open loads the user's overview and the first catalog page and registers a
// new editing session.
func (s *Service) Open(ctx context.Context, userID int64) (*SessionView, error) {
	ov, err := s.backend.GetUserOrderOverview(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user order overview")
	}

	sess := &session{
		id:       uuid.NewString(),
		userID:   userID,
		overview: *ov,
		draft:    NewDraft(*ov),
		criteria: products.Criteria{Status: products.StatusActive, UserID: &userID},
	}

	page, err := s.catalog.List(ctx, sess.criteria)
	if err != nil {
		s.logger.Warn("Failed to load product page", "user_id", userID, "error", err)
	}
	sess.page = page

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("Continuous order session opened", "session_id", sess.id, "user_id", userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Close tears a session down. Fetches that complete afterwards are dropped.
func (s *Service) Close(sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}

	sess.mu.Lock()
	sess.closed = true
	sess.mu.Unlock()

	s.logger.Info("Continuous order session closed", "session_id", sessionID, "user_id", sess.userID)
	return nil
}

// Sessions returns the ids of all open sessions.
func (s *Service) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) View(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// SetOffset parses raw operator input and renumbers pending additions.
func (s *Service) SetOffset(sessionID string, raw string) (*SessionView, error) {
	offset, err := ParseOffset(raw)
	if err != nil {
		return nil, err
	}

	return s.mutate(sessionID, "set_offset", func(d *Draft) error {
		d.SetOffset(offset)
		return nil
	})
}

func (s *Service) Insert(sessionID string, p ProductRef) (*SessionView, error) {
	return s.mutate(sessionID, "insert", func(d *Draft) error {
		return d.Insert(p)
	})
}

func (s *Service) ReplaceNext(sessionID string, p ProductRef) (*SessionView, error) {
	return s.mutate(sessionID, "replace_next", func(d *Draft) error {
		return d.ReplaceNext(p)
	})
}

func (s *Service) Remove(sessionID string, id ProductID) (*SessionView, error) {
	return s.mutate(sessionID, "remove", func(d *Draft) error {
		return d.Remove(id)
	})
}

// Discard clears the local deltas without talking to the backend.
func (s *Service) Discard(sessionID string) (*SessionView, error) {
	return s.mutate(sessionID, "discard", func(d *Draft) error {
		d.Discard()
		return nil
	})
}

// Commit validates the offset input and submits the whole draft as one batch.
// The draft survives any failure so the operator can retry.
func (s *Service) Commit(ctx context.Context, sessionID string, rawOffset string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	offset, err := ParseOffset(rawOffset)
	if err != nil {
		observeDraftOp("commit", err)
		return nil, err
	}

	sess.mu.Lock()
	if sess.submitting {
		sess.mu.Unlock()
		return nil, errors.Wrapf(ErrSubmitInProgress, "session %s", sessionID)
	}
	update, err := sess.draft.CommitPayload(offset)
	if err != nil {
		sess.mu.Unlock()
		observeDraftOp("commit", err)
		return nil, err
	}
	sess.submitting = true
	sess.mu.Unlock()

	err = s.backend.UpdateUserOrderOverview(ctx, sess.userID, update)

	sess.mu.Lock()
	sess.submitting = false
	if err == nil {
		sess.draft.Discard()
	}
	sess.mu.Unlock()

	observeDraftOp("commit", err)
	if err != nil {
		return nil, errors.Wrap(err, "update user order overview")
	}

	s.logger.Info("Continuous orders committed",
		"session_id", sessionID,
		"user_id", sess.userID,
		"offset", offset,
		"items", len(update.AssignedProducts))

	s.record(ctx, sess, JournalKindCommit, offset, update.AssignedProducts)

	return s.resync(ctx, sess)
}

// Reset clears every continuous order of the user on the backend. It needs an
// explicit confirmation; on failure nothing changes locally.
func (s *Service) Reset(ctx context.Context, sessionID string, confirmed bool) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrResetNotConfirmed
	}

	sess.mu.Lock()
	if sess.submitting {
		sess.mu.Unlock()
		return nil, errors.Wrapf(ErrSubmitInProgress, "session %s", sessionID)
	}
	sess.submitting = true
	sess.mu.Unlock()

	err = s.backend.ResetUserContinuousOrders(ctx, sess.userID)

	sess.mu.Lock()
	sess.submitting = false
	if err == nil {
		sess.draft.Discard()
	}
	offset := sess.draft.Offset()
	sess.mu.Unlock()

	observeDraftOp("reset", err)
	if err != nil {
		return nil, errors.Wrap(err, "reset user continuous orders")
	}

	s.logger.Info("Continuous orders reset", "session_id", sessionID, "user_id", sess.userID)

	s.record(ctx, sess, JournalKindReset, offset, nil)

	return s.resync(ctx, sess)
}

// Products fetches a catalog page for the session and remembers it as the
// page to refetch after commits.
func (s *Service) Products(ctx context.Context, sessionID string, criteria products.Criteria) (*products.Page, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if criteria.UserID == nil {
		criteria.UserID = &sess.userID
	}

	page, err := s.catalog.List(ctx, criteria)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if !sess.closed {
		sess.criteria = criteria
		sess.page = page
	}
	sess.mu.Unlock()

	return page, nil
}

// Refresh refetches the overview. In silent mode a failed fetch is logged at
// debug level and reported as ErrRefreshFailed, for counting only. The
// confirmed baseline is replaced only if the snapshot actually changed, and
// pending deltas are never touched.
func (s *Service) Refresh(ctx context.Context, sessionID string, silent bool) (bool, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return false, err
	}

	ov, err := s.backend.GetUserOrderOverview(ctx, sess.userID)
	if err != nil {
		if silent {
			s.logger.Debug("Silent overview refresh failed", "session_id", sessionID, "error", err)
			observeDraftOp("silent_refresh", err)
			return false, errors.Wrap(ErrRefreshFailed, err.Error())
		}
		return false, errors.Wrap(err, "get user order overview")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return false, nil
	}
	if OverviewsEqual(sess.overview, *ov) {
		return false, nil
	}

	sess.overview = *ov
	sess.draft.Rebase(*ov)
	return true, nil
}

// Journal lists the latest journal entries for a user.
func (s *Service) Journal(ctx context.Context, userID int64, limit int) ([]*JournalEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.ListJournal(ctx, userID, limit)
}

func (s *Service) mutate(sessionID string, op string, fn func(d *Draft) error) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return nil, errors.Wrapf(ErrSessionClosed, "session %s", sessionID)
	}
	if sess.submitting {
		err = errors.Wrapf(ErrSubmitInProgress, "session %s", sessionID)
		observeDraftOp(op, err)
		return nil, err
	}

	err = fn(sess.draft)
	observeDraftOp(op, err)
	if err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// resync refetches the authoritative overview and product page after a
// successful commit or reset.
func (s *Service) resync(ctx context.Context, sess *session) (*SessionView, error) {
	ov, err := s.backend.GetUserOrderOverview(ctx, sess.userID)
	if err != nil {
		s.logger.Warn("Failed to refetch overview", "session_id", sess.id, "error", err)
	}

	sess.mu.Lock()
	criteria := sess.criteria
	sess.mu.Unlock()

	page, err := s.catalog.List(ctx, criteria)
	if err != nil {
		s.logger.Warn("Failed to refetch product page", "session_id", sess.id, "error", err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.closed {
		if ov != nil {
			sess.overview = *ov
			sess.draft.Rebase(*ov)
		}
		if page != nil {
			sess.page = page
		}
	}
	return sess.view(), nil
}

func (s *Service) record(ctx context.Context, sess *session, kind JournalKind, offset int, items []PositionAssignment) {
	entry := JournalEntry{
		ID:        uuid.NewString(),
		SessionID: sess.id,
		UserID:    sess.userID,
		Kind:      kind,
		Offset:    offset,
		Items:     items,
		CreatedAt: s.now().UTC(),
	}

	if s.journal != nil {
		if err := s.journal.AppendJournalEntry(ctx, entry); err != nil {
			s.logger.Error("Failed to write journal entry", "session_id", sess.id, "kind", kind, "error", err)
		}
	}

	if s.notifier != nil {
		sess.mu.Lock()
		username := sess.overview.Username
		sess.mu.Unlock()

		if err := s.notifier.NotifyJournalEntry(ctx, entry, username); err != nil {
			s.logger.Warn("Failed to notify admins", "session_id", sess.id, "kind", kind, "error", err)
		}
	}
}

func (s *Service) session(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	return sess, nil
}

// view must be called with sess.mu held.
func (sess *session) view() *SessionView {
	ov := sess.overview
	ov.AssignedProducts = cloneProducts(ov.AssignedProducts)

	return &SessionView{
		SessionID:    sess.id,
		Overview:     ov,
		Offset:       sess.draft.Offset(),
		NextPosition: sess.draft.NextPosition(),
		Visible:      sess.draft.Visible(),
		HasChanges:   sess.draft.HasChanges(),
		Products:     sess.page,
	}
}

// ParseOffset accepts a non-negative integer typed by the operator.
func ParseOffset(raw string) (int, error) {
	offset, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || offset < 0 {
		return 0, errors.Wrapf(ErrInvalidNumber, "offset %q", raw)
	}
	return offset, nil
}

// OverviewsEqual compares two snapshots field by field.
func OverviewsEqual(a, b Overview) bool {
	if a.UserID != b.UserID ||
		a.Username != b.Username ||
		a.CurrentOrdersMade != b.CurrentOrdersMade ||
		a.OrdersReceivedToday != b.OrdersReceivedToday ||
		a.MaxOrdersByLevel != b.MaxOrdersByLevel ||
		a.StartContinuousOrdersAfter != b.StartContinuousOrdersAfter ||
		a.DailyAvailableOrders != b.DailyAvailableOrders ||
		len(a.AssignedProducts) != len(b.AssignedProducts) {
		return false
	}

	for i := range a.AssignedProducts {
		x, y := a.AssignedProducts[i], b.AssignedProducts[i]
		if x.ID != y.ID || x.Title != y.Title || x.Position != y.Position || !samePrice(x.Price, y.Price) {
			return false
		}
	}
	return true
}

func samePrice(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
