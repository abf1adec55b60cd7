// Package position holds the latest position reported by each device and
// serves it back to the check-in engine as the device's current position.
package position

import (
	"context"
	"errors"
	"time"

	"github.com/storypath/checkin/internal/storypath"
)

var (
	// ErrPermissionDenied means the device refused access to its location.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrUnavailable means no fresh position has been reported.
	ErrUnavailable = errors.New("position unavailable")
)

// Report is one sample pushed by a device.
type Report struct {
	Position storypath.Position `json:"position"`
	Denied   bool               `json:"denied,omitempty"`
	At       time.Time          `json:"at"`
}

// Store keeps the most recent report per key. Reports older than the
// store's TTL are treated as absent.
type Store interface {
	Put(ctx context.Context, key string, r Report) error
	Latest(ctx context.Context, key string) (Report, error)
	Delete(ctx context.Context, key string) error
}

// Source adapts a Store to the engine's positioning collaborator for a
// single device key.
type Source struct {
	Store Store
	Key   string
}

func (s Source) CurrentPosition(ctx context.Context) (storypath.Position, error) {
	r, err := s.Store.Latest(ctx, s.Key)
	if err != nil {
		return storypath.Position{}, err
	}
	if r.Denied {
		return storypath.Position{}, ErrPermissionDenied
	}
	return r.Position, nil
}
