// Package profile stores the participant's session state. Components that
// need to know who the participant is receive a Store and read the profile
// explicitly instead of relying on process-wide state.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storypath/checkin/internal/storypath"
)

var (
	ErrNotFound        = errors.New("profile not found")
	ErrInvalidUsername = errors.New("username is required")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, username string) (storypath.Profile, error) {
	var (
		p         storypath.Profile
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT username, image_uri, updated_at
		FROM profiles
		WHERE username = ?
	`, username).Scan(&p.Username, &p.ImageURI, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storypath.Profile{}, ErrNotFound
	}
	if err != nil {
		return storypath.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return storypath.Profile{}, fmt.Errorf("parsing updated_at of profile %q: %w", username, err)
	}
	return p, nil
}

// Put creates or replaces the profile and returns the stored value.
func (s *Store) Put(ctx context.Context, p storypath.Profile) (storypath.Profile, error) {
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return storypath.Profile{}, ErrInvalidUsername
	}
	p.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (username, image_uri, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE
		SET image_uri = excluded.image_uri, updated_at = excluded.updated_at
	`, p.Username, p.ImageURI, p.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return storypath.Profile{}, fmt.Errorf("saving profile: %w", err)
	}
	return p, nil
}

// Participant resolves the username visits are credited to. An unknown
// username is still a valid participant; the profile only adds display
// data.
func (s *Store) Participant(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidUsername
	}
	p, err := s.Get(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return username, nil
	}
	if err != nil {
		return "", err
	}
	return p.Username, nil
}
