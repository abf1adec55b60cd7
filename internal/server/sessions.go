package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storypath/checkin/internal/checkin"
	"github.com/storypath/checkin/internal/position"
)

const recentNotifications = 20

// Session is one mounted check-in session: a participant on a project with
// its own engine and position feed.
type Session struct {
	ID          string
	ProjectID   int
	Participant string
	CreatedAt   time.Time

	engine *checkin.Engine

	mu     sync.Mutex
	recent []checkin.Notification
}

func (s *Session) remember(n checkin.Notification) {
	s.mu.Lock()
	s.recent = append(s.recent, n)
	if len(s.recent) > recentNotifications {
		s.recent = s.recent[len(s.recent)-recentNotifications:]
	}
	s.mu.Unlock()
}

// Recent returns the latest notifications, oldest first.
func (s *Session) Recent() []checkin.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]checkin.Notification(nil), s.recent...)
}

func (s *Session) Snapshot() checkin.Snapshot { return s.engine.Snapshot() }

// Sessions owns every mounted session and tears them down on unmount.
type Sessions struct {
	backend   Backend
	positions position.Store
	broker    *Broker
	owner     string
	opts      checkin.Options
	idle      time.Duration
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions returns an empty registry. Sessions without a position fix
// for longer than idle are unmounted by Reap; idle <= 0 disables reaping.
func NewSessions(backend Backend, positions position.Store, broker *Broker, owner string, opts checkin.Options, idle time.Duration, logger *slog.Logger) *Sessions {
	return &Sessions{
		backend:   backend,
		positions: positions,
		broker:    broker,
		owner:     owner,
		opts:      opts,
		idle:      idle,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Mount creates a session, loads it and starts its tick loop. An initial
// report, if given, is stored before the engine samples its position.
func (s *Sessions) Mount(ctx context.Context, projectID int, participant string, initial *position.Report) (*Session, error) {
	id := uuid.NewString()
	if initial != nil {
		if err := s.positions.Put(ctx, id, *initial); err != nil {
			return nil, fmt.Errorf("storing initial position: %w", err)
		}
	}

	sess := &Session{
		ID:          id,
		ProjectID:   projectID,
		Participant: participant,
		CreatedAt:   time.Now().UTC(),
	}
	publish := s.broker.Notifier(id)
	notify := checkin.NotifierFunc(func(n checkin.Notification) {
		sess.remember(n)
		publish.Notify(n)
	})
	sess.engine = checkin.New(
		projectID,
		checkin.Identity{Owner: s.owner, Participant: participant},
		position.Source{Store: s.positions, Key: id},
		s.backend,
		s.backend,
		notify,
		s.logger.With("session_id", id),
		s.opts,
	)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	sess.engine.Start(ctx)

	// The caller never learns the ID of a session whose request was
	// cancelled while loading, so nothing could unmount it later.
	if err := ctx.Err(); err != nil {
		s.Unmount(context.WithoutCancel(ctx), id)
		return nil, fmt.Errorf("mounting session: %w", err)
	}

	s.logger.Info("session mounted", "session_id", id, "project_id", projectID, "participant", participant)
	return sess, nil
}

func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Publish sends a notification to a session outside the engine's flow.
func (s *Sessions) Publish(sess *Session, n checkin.Notification) {
	sess.remember(n)
	s.broker.Publish(sess.ID, n)
}

// Unmount stops the session's engine and forgets its position feed.
func (s *Sessions) Unmount(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	sess.engine.Stop()
	if err := s.positions.Delete(ctx, id); err != nil {
		s.logger.Warn("clearing session position", "session_id", id, "error", err)
	}
	s.logger.Info("session unmounted", "session_id", id)
	return nil
}

// Close unmounts every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Unmount(context.Background(), id)
	}
}

// Reap unmounts sessions that have had no position fix for longer than the
// idle timeout, counting from mount when there has never been one. It
// returns the number of sessions removed.
func (s *Sessions) Reap(ctx context.Context, now time.Time) int {
	if s.idle <= 0 {
		return 0
	}

	s.mu.RLock()
	var stale []string
	for id, sess := range s.sessions {
		last := sess.CreatedAt
		if fix := sess.engine.Snapshot().LastFix; fix.After(last) {
			last = fix
		}
		if now.Sub(last) > s.idle {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		if err := s.Unmount(ctx, id); err == nil {
			s.logger.Info("idle session reaped", "session_id", id)
		}
	}
	return len(stale)
}

// Run reaps idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) error {
	if s.idle <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Reap(ctx, now)
		}
	}
}
