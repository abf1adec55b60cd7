// Package backend is a client for the StoryPath REST API. The API follows
// PostgREST conventions: tables are addressed by path and filtered with
// "column=eq.value" query parameters.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/storypath/checkin/internal/metrics"
	"github.com/storypath/checkin/internal/storypath"
)

var ErrNotFound = errors.New("not found")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Code, e.Body)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New returns a client for the API rooted at baseURL. The token is sent as
// a bearer credential on every request. A nil httpClient gets a default
// with a 10 s timeout.
func New(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger,
	}
}

func eq(v any) string { return fmt.Sprintf("eq.%v", v) }

func (c *Client) ListProjects(ctx context.Context) ([]storypath.Project, error) {
	var projects []storypath.Project
	if err := c.get(ctx, "list_projects", "/project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) Project(ctx context.Context, id int) (storypath.Project, error) {
	var projects []storypath.Project
	q := url.Values{"id": {eq(id)}}
	if err := c.get(ctx, "get_project", "/project", q, &projects); err != nil {
		return storypath.Project{}, err
	}
	if len(projects) == 0 {
		return storypath.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return projects[0], nil
}

// ListCheckpoints returns the project's checkpoints in the order the
// backend returns them.
func (c *Client) ListCheckpoints(ctx context.Context, projectID int) ([]storypath.Checkpoint, error) {
	var checkpoints []storypath.Checkpoint
	q := url.Values{"project_id": {eq(projectID)}}
	if err := c.get(ctx, "list_checkpoints", "/location", q, &checkpoints); err != nil {
		return nil, err
	}
	return checkpoints, nil
}

func (c *Client) Checkpoint(ctx context.Context, projectID, checkpointID int) (storypath.Checkpoint, error) {
	var checkpoints []storypath.Checkpoint
	q := url.Values{
		"project_id": {eq(projectID)},
		"id":         {eq(checkpointID)},
	}
	if err := c.get(ctx, "get_checkpoint", "/location", q, &checkpoints); err != nil {
		return storypath.Checkpoint{}, err
	}
	if len(checkpoints) == 0 {
		return storypath.Checkpoint{}, fmt.Errorf("checkpoint %d: %w", checkpointID, ErrNotFound)
	}
	return checkpoints[0], nil
}

// ListVisits returns tracking records for the project. When participant is
// non-empty only that participant's records are returned.
func (c *Client) ListVisits(ctx context.Context, projectID int, participant string) ([]storypath.Visit, error) {
	var visits []storypath.Visit
	q := url.Values{"project_id": {eq(projectID)}}
	if participant != "" {
		q.Set("participant_username", eq(participant))
	}
	if err := c.get(ctx, "list_visits", "/tracking", q, &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

func (c *Client) RecordVisit(ctx context.Context, v storypath.Visit) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding visit: %w", err)
	}
	return c.do(ctx, "record_visit", http.MethodPost, "/tracking", nil, bytes.NewReader(body), nil)
}

// Ping issues a cheap request to check the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var projects []storypath.Project
	return c.get(ctx, "ping", "/project", url.Values{"limit": {"1"}, "select": {"id"}}, &projects)
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, dest any) error {
	return c.do(ctx, op, http.MethodGet, path, q, nil, dest)
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body io.Reader, dest any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method == http.MethodPost {
		req.Header.Set("Prefer", "return=representation")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	metrics.BackendDurationMs.WithLabelValues(op).Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(op, "error").Inc()
		c.logger.Warn("backend request failed", "op", op, "error", err, "duration_ms", elapsed.Milliseconds())
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	metrics.BackendRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode/100)+"xx").Inc()
	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}
