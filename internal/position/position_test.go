package position

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storypath/checkin/internal/storypath"
)

func TestMemoryStoreLatest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(30 * time.Second)
	s.now = func() time.Time { return now }

	if _, err := s.Latest(ctx, "dev"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty store error = %v, want ErrUnavailable", err)
	}

	p := storypath.Position{Latitude: -27.47, Longitude: 153.02}
	if err := s.Put(ctx, "dev", Report{Position: p}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	r, err := s.Latest(ctx, "dev")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r.Position != p || !r.At.Equal(now) {
		t.Errorf("report = %+v", r)
	}

	now = now.Add(31 * time.Second)
	if _, err := s.Latest(ctx, "dev"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("stale report error = %v, want ErrUnavailable", err)
	}
}

func TestMemoryStoreDenialDoesNotExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore(time.Second)
	s.now = func() time.Time { return now }

	s.Put(ctx, "dev", Report{Denied: true})
	now = now.Add(time.Hour)

	src := Source{Store: s, Key: "dev"}
	if _, err := src.CurrentPosition(ctx); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestSourceCurrentPosition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	src := Source{Store: s, Key: "dev"}

	if _, err := src.CurrentPosition(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}

	want := storypath.Position{Latitude: 1, Longitude: 2}
	s.Put(ctx, "dev", Report{Position: want})
	got, err := src.CurrentPosition(ctx)
	if err != nil {
		t.Fatalf("CurrentPosition: %v", err)
	}
	if got != want {
		t.Errorf("position = %+v, want %+v", got, want)
	}

	s.Delete(ctx, "dev")
	if _, err := src.CurrentPosition(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("after delete error = %v, want ErrUnavailable", err)
	}
}

func TestRedisStore(t *testing.T) {
	rawURL := os.Getenv("REDIS_URL")
	if rawURL == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("parsing redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx := context.Background()
	s := NewRedisStore(rdb, time.Minute)
	key := "test-" + t.Name()
	defer s.Delete(ctx, key)

	want := storypath.Position{Latitude: -27.4705, Longitude: 153.0251}
	if err := s.Put(ctx, key, Report{Position: want}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	r, err := s.Latest(ctx, key)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r.Position != want {
		t.Errorf("position = %+v, want %+v", r.Position, want)
	}

	s.Delete(ctx, key)
	if _, err := s.Latest(ctx, key); !errors.Is(err, ErrUnavailable) {
		t.Errorf("after delete error = %v, want ErrUnavailable", err)
	}
}
