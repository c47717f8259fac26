package overviewpoll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reseller-panel/internal/stories/continuous"
)

type fakeSessions struct {
	mu      sync.Mutex
	ids     []string
	calls   map[string]int
	silent  []bool
	block   bool
	gone    map[string]bool
	failing map[string]bool
	blocked chan struct{}
}

func newFakeSessions(ids ...string) *fakeSessions {
	return &fakeSessions{
		ids:     ids,
		calls:   make(map[string]int),
		gone:    make(map[string]bool),
		failing: make(map[string]bool),
		blocked: make(chan struct{}, 16),
	}
}

func (f *fakeSessions) Sessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func (f *fakeSessions) Refresh(ctx context.Context, id string, silent bool) (bool, error) {
	f.mu.Lock()
	f.calls[id]++
	f.silent = append(f.silent, silent)
	block, gone, failing := f.block, f.gone[id], f.failing[id]
	f.mu.Unlock()

	if failing {
		return false, fmt.Errorf("%w: timeout", continuous.ErrRefreshFailed)
	}
	if gone {
		return false, errors.New("session not found")
	}
	if block {
		f.blocked <- struct{}{}
		<-ctx.Done()
		return false, nil
	}
	return true, nil
}

func (f *fakeSessions) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_PollRefreshesEverySessionSilently(t *testing.T) {
	sessions := newFakeSessions("a", "b", "c")
	sessions.gone["c"] = true
	sessions.failing["b"] = true
	w := NewWorker(sessions, time.Hour, discardLogger())

	w.Poll(context.Background())

	assert.Equal(t, 1, sessions.callsFor("a"))
	assert.Equal(t, 1, sessions.callsFor("b"))
	assert.Equal(t, 1, sessions.callsFor("c"))
	for _, silent := range sessions.silent {
		assert.True(t, silent)
	}
}

func TestWorker_TicksUntilStopped(t *testing.T) {
	sessions := newFakeSessions("a")
	w := NewWorker(sessions, 5*time.Millisecond, discardLogger())

	assert.NoError(t, w.Start())
	assert.Eventually(t, func() bool { return sessions.callsFor("a") >= 2 }, time.Second, 5*time.Millisecond)

	w.Stop()
	after := sessions.callsFor("a")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sessions.callsFor("a"))

	w.Stop()
}

func TestWorker_StopCancelsInFlight(t *testing.T) {
	sessions := newFakeSessions("a")
	sessions.block = true
	w := NewWorker(sessions, 5*time.Millisecond, discardLogger())

	assert.NoError(t, w.Start())

	select {
	case <-sessions.blocked:
	case <-time.After(time.Second):
		t.Fatal("refresh never started")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not cancel the in-flight refresh")
	}
}

func TestRefreshResult(t *testing.T) {
	tests := []struct {
		name    string
		changed bool
		err     error
		want    string
	}{
		{name: "changed", changed: true, want: "changed"},
		{name: "unchanged", want: "unchanged"},
		{name: "fetch failed", err: fmt.Errorf("%w: timeout", continuous.ErrRefreshFailed), want: "error"},
		{name: "session gone", err: continuous.ErrSessionNotFound, want: "gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, refreshResult(tt.changed, tt.err))
		})
	}
}
