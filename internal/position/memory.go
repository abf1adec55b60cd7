package position

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	reports map[string]Report
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		reports: make(map[string]Report),
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, r Report) error {
	if r.At.IsZero() {
		r.At = s.now()
	}
	s.mu.Lock()
	s.reports[key] = r
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, key string) (Report, error) {
	s.mu.RLock()
	r, ok := s.reports[key]
	s.mu.RUnlock()
	if !ok {
		return Report{}, ErrUnavailable
	}
	// Denials do not expire: the device has to report a position to lift one.
	if !r.Denied && s.ttl > 0 && s.now().Sub(r.At) > s.ttl {
		return Report{}, ErrUnavailable
	}
	return r, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.reports, key)
	s.mu.Unlock()
	return nil
}
