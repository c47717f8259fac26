package continuous

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"reseller-panel/internal/stories/products"
)

// fakeBackend keeps one overview in memory and applies updates to it.
type fakeBackend struct {
	mu sync.Mutex

	overview  Overview
	getErr    error
	updateErr error
	resetErr  error

	// release, when set, blocks GetUserOrderOverview until it is closed.
	release chan struct{}
	started chan struct{}

	// updateRelease, when set, blocks UpdateUserOrderOverview the same way.
	updateRelease chan struct{}
	updateStarted chan struct{}

	getCalls   int
	updates    []AssignmentUpdate
	resetCalls int
}

func newFakeBackend(ov Overview) *fakeBackend {
	return &fakeBackend{overview: ov}
}

func (f *fakeBackend) GetUserOrderOverview(ctx context.Context, userID int64) (*Overview, error) {
	f.mu.Lock()
	release, started := f.release, f.started
	f.release, f.started = nil, nil
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	ov := f.overview
	ov.AssignedProducts = cloneProducts(ov.AssignedProducts)
	return &ov, nil
}

func (f *fakeBackend) UpdateUserOrderOverview(ctx context.Context, userID int64, update AssignmentUpdate) error {
	f.mu.Lock()
	release, started := f.updateRelease, f.updateStarted
	f.updateRelease, f.updateStarted = nil, nil
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update)

	titles := make(map[ProductID]string)
	for _, p := range f.overview.AssignedProducts {
		titles[p.ID] = p.Title
	}

	f.overview.StartContinuousOrdersAfter = update.StartContinuousOrdersAfter
	f.overview.AssignedProducts = nil
	for _, a := range update.AssignedProducts {
		f.overview.AssignedProducts = append(f.overview.AssignedProducts, AssignedProduct{
			ID:       a.ProductID,
			Title:    titles[a.ProductID],
			Position: a.Position,
		})
	}
	return nil
}

func (f *fakeBackend) ResetUserContinuousOrders(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetCalls++
	f.overview.AssignedProducts = nil
	return nil
}

func (f *fakeBackend) setOverview(ov Overview) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overview = ov
}

func (f *fakeBackend) calls() (gets, updates, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, len(f.updates), f.resetCalls
}

type fakeCatalog struct {
	mu       sync.Mutex
	page     products.Page
	err      error
	criteria []products.Criteria
}

func (f *fakeCatalog) List(ctx context.Context, criteria products.Criteria) (*products.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.criteria = append(f.criteria, criteria)
	if f.err != nil {
		return nil, f.err
	}
	page := f.page
	return &page, nil
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.criteria)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []JournalEntry
	err     error
}

func (f *fakeJournal) AppendJournalEntry(ctx context.Context, entry JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeJournal) ListJournal(ctx context.Context, userID int64, limit int) ([]*JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*JournalEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			e := f.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	entries   []JournalEntry
	usernames []string
}

func (f *fakeNotifier) NotifyJournalEntry(ctx context.Context, entry JournalEntry, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	f.usernames = append(f.usernames, username)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
