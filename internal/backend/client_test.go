package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storypath/checkin/internal/backend"
	"github.com/storypath/checkin/internal/storypath"
)

const testToken = "test-token"

func newTestServer(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			t.Errorf("Authorization = %q", got)
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return backend.New(srv.URL+"/api/", testToken, srv.Client(), slog.Default())
}

func TestListCheckpoints(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/location" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("project_id"); got != "eq.7" {
			t.Errorf("project_id = %q, want eq.7", got)
		}
		w.Write([]byte(`[
			{"id": 2, "project_id": 7, "location_name": "B", "location_position": "(1, 2)", "score_points": 5},
			{"id": 1, "project_id": 7, "location_name": "A", "location_position": "(3, 4)", "score_points": 10}
		]`))
	})

	got, err := c.ListCheckpoints(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Order is preserved as returned.
	if got[0].ID != 2 || got[1].ID != 1 {
		t.Errorf("order = [%d %d], want [2 1]", got[0].ID, got[1].ID)
	}
	if got[1].Name != "A" || got[1].Points != 10 || got[1].Position != "(3, 4)" {
		t.Errorf("checkpoint = %+v", got[1])
	}
}

func TestListVisitsParticipantFilter(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("project_id") != "eq.3" {
			t.Errorf("project_id = %q", q.Get("project_id"))
		}
		if q.Get("participant_username") != "eq.alice" {
			t.Errorf("participant_username = %q", q.Get("participant_username"))
		}
		w.Write([]byte(`[{"project_id": 3, "location_id": 9, "points": 4}]`))
	})

	got, err := c.ListVisits(context.Background(), 3, "alice")
	if err != nil {
		t.Fatalf("ListVisits: %v", err)
	}
	if len(got) != 1 || got[0].CheckpointID != 9 || got[0].Points != 4 {
		t.Errorf("visits = %+v", got)
	}
}

func TestRecordVisit(t *testing.T) {
	var received storypath.Visit
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tracking" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[]`))
	})

	visit := storypath.Visit{ProjectID: 1, CheckpointID: 2, Points: 30, Username: "owner", ParticipantUsername: "alice"}
	if err := c.RecordVisit(context.Background(), visit); err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}
	if received != visit {
		t.Errorf("received = %+v, want %+v", received, visit)
	}
}

func TestRecordVisitRejected(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"duplicate"}`))
	})

	err := c.RecordVisit(context.Background(), storypath.Visit{ProjectID: 1, CheckpointID: 2})
	var se *backend.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusConflict {
		t.Errorf("code = %d, want 409", se.Code)
	}
}

func TestProjectNotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.Project(context.Background(), 42)
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestParseToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role":     "student",
		"username": "s1234567",
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	claims, err := backend.ParseToken(signed)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Username != "s1234567" || claims.Role != "student" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := backend.ParseToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}
