package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storypath/checkin/internal/checkin"
	"github.com/storypath/checkin/internal/position"
	"github.com/storypath/checkin/internal/storypath"
)

func newTestSessions(t *testing.T, idle time.Duration) (*Sessions, position.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	be := &fakeBackend{checkpoints: []storypath.Checkpoint{
		{ID: 1, ProjectID: 7, Name: "Great Court", Position: greatCourt, Points: 10},
	}}
	positions := position.NewMemoryStore(time.Minute)
	opts := checkin.Options{Interval: 10 * time.Millisecond, Radius: 100, CallTimeout: time.Second}
	sessions := NewSessions(be, positions, NewBroker(), "owner", opts, idle, logger)
	t.Cleanup(sessions.Close)
	return sessions, positions
}

func (s *Sessions) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func TestMountCancelledLeavesNoSession(t *testing.T) {
	sessions, _ := newTestSessions(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess, err := sessions.Mount(ctx, 7, "alice", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sess != nil {
		t.Fatalf("got session %q, want nil", sess.ID)
	}
	if n := sessions.count(); n != 0 {
		t.Errorf("%d sessions registered, want 0", n)
	}
}

func TestReapIdleSessions(t *testing.T) {
	sessions, _ := newTestSessions(t, 100*time.Millisecond)

	lost, err := sessions.Mount(context.Background(), 7, "alice", nil)
	if err != nil {
		t.Fatal(err)
	}
	located, err := sessions.Mount(context.Background(), 7, "bob", &position.Report{
		Position: storypath.Position{Latitude: -27.49, Longitude: 153.01},
		At:       time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if n := sessions.Reap(context.Background(), time.Now()); n != 0 {
		t.Fatalf("reaped %d fresh sessions", n)
	}

	// bob's ticks keep refreshing his fix; alice never gets one.
	time.Sleep(300 * time.Millisecond)

	if n := sessions.Reap(context.Background(), time.Now()); n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	if _, err := sessions.Get(lost.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("idle session still mounted: %v", err)
	}
	if _, err := sessions.Get(located.ID); err != nil {
		t.Errorf("located session reaped: %v", err)
	}
}

func TestReapDisabled(t *testing.T) {
	sessions, _ := newTestSessions(t, 0)
	sess, err := sessions.Mount(context.Background(), 7, "carol", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := sessions.Reap(context.Background(), time.Now().Add(24*time.Hour)); n != 0 {
		t.Errorf("reaped %d with reaping disabled", n)
	}
	if _, err := sessions.Get(sess.ID); err != nil {
		t.Errorf("session gone: %v", err)
	}
}
