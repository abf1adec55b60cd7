// Package checkin implements the proximity check-in engine. An Engine owns
// one participant's session on one project: the project's checkpoints, the
// participant's last known position, the set of checkpoints already
// credited, and a repeating tick that re-samples the position and credits
// at most one nearby checkpoint per tick.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/storypath/checkin/internal/metrics"
	"github.com/storypath/checkin/internal/position"
	"github.com/storypath/checkin/internal/storypath"
)

// Positioner returns the device's current position. It returns an error
// wrapping position.ErrPermissionDenied when the device refuses access.
type Positioner interface {
	CurrentPosition(ctx context.Context) (storypath.Position, error)
}

// Directory lists the checkpoints of a project.
type Directory interface {
	ListCheckpoints(ctx context.Context, projectID int) ([]storypath.Checkpoint, error)
}

// Recorder persists visits and lists the visits already recorded.
type Recorder interface {
	ListVisits(ctx context.Context, projectID int, participant string) ([]storypath.Visit, error)
	RecordVisit(ctx context.Context, v storypath.Visit) error
}

// State is the lifecycle stage of a session.
type State string

const (
	StateStarting State = "starting"
	StateLocating State = "locating"
	StateRunning  State = "running"
	StateDenied   State = "denied"
	StateStopped  State = "stopped"
)

// Identity names the accounts a visit is recorded under: the owner of the
// API token and the participant earning the points.
type Identity struct {
	Owner       string
	Participant string
}

// Options tune the tick loop. Zero fields take DefaultOptions values.
type Options struct {
	Interval    time.Duration
	Radius      float64
	CallTimeout time.Duration
	// LenientPositions evaluates unparseable checkpoint positions at
	// geo.Fallback instead of skipping them.
	LenientPositions bool
}

// DefaultOptions returns a 5 s interval, a 100 m radius and a 10 s call
// timeout.
func DefaultOptions() Options {
	return Options{
		Interval:    5 * time.Second,
		Radius:      100,
		CallTimeout: 10 * time.Second,
	}
}

// Engine runs one participant's check-in session on one project.
type Engine struct {
	projectID int
	identity  Identity
	opts      Options

	positioner Positioner
	directory  Directory
	recorder   Recorder
	notifier   Notifier
	logger     *slog.Logger

	inFlight atomic.Bool

	mu          sync.RWMutex
	state       State
	checkpoints []storypath.Checkpoint
	location    *storypath.Position
	lastFix     time.Time
	visited     map[int]struct{}
	cancel      context.CancelFunc
	done        chan struct{}

	stopOnce sync.Once
}

func New(
	projectID int,
	identity Identity,
	positioner Positioner,
	directory Directory,
	recorder Recorder,
	notifier Notifier,
	logger *slog.Logger,
	opts Options,
) *Engine {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Radius <= 0 {
		opts.Radius = def.Radius
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = def.CallTimeout
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Engine{
		projectID:  projectID,
		identity:   identity,
		opts:       opts,
		positioner: positioner,
		directory:  directory,
		recorder:   recorder,
		notifier:   notifier,
		logger:     logger.With("project_id", projectID, "participant", identity.Participant),
		state:      StateStarting,
		visited:    make(map[int]struct{}),
	}
}

// Start loads the session, acquires the initial position and, unless
// permission is denied, begins ticking every Interval. The tick loop
// outlives ctx; call Stop to end it.
func (e *Engine) Start(ctx context.Context) {
	e.Load(ctx)

	if _, err := e.acquire(ctx); errors.Is(err, position.ErrPermissionDenied) {
		return
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	e.mu.Lock()
	if e.state == StateStopped || e.state == StateDenied {
		e.mu.Unlock()
		cancel()
		return
	}
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	metrics.ActiveSessions.Inc()
	go e.run(loopCtx, done)
}

// Load fetches the project's checkpoints and the participant's prior
// visits, seeding the visited set. A failed fetch raises an alert and
// leaves the affected list empty.
func (e *Engine) Load(ctx context.Context) {
	checkpoints, err := e.fetchCheckpoints(ctx)
	if err != nil {
		e.logger.Error("loading checkpoints", "error", err)
		e.alert("Could not load checkpoints. Please try again later.")
		checkpoints = nil
	}

	visits, err := e.fetchVisits(ctx)
	if err != nil {
		e.logger.Error("loading visits", "error", err)
		e.alert("Could not load your visits. Please try again later.")
		visits = nil
	}

	visited := make(map[int]struct{}, len(visits))
	for _, v := range visits {
		visited[v.CheckpointID] = struct{}{}
	}

	e.mu.Lock()
	e.checkpoints = checkpoints
	e.visited = visited
	e.mu.Unlock()

	e.logger.Info("session loaded", "checkpoints", len(checkpoints), "visited", len(visited))
}

func (e *Engine) fetchCheckpoints(ctx context.Context) ([]storypath.Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return e.directory.ListCheckpoints(ctx, e.projectID)
}

func (e *Engine) fetchVisits(ctx context.Context) ([]storypath.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return e.recorder.ListVisits(ctx, e.projectID, e.identity.Participant)
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer metrics.ActiveSessions.Dec()

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				res := e.Tick(ctx)
				e.logger.Debug("tick", "outcome", res.Outcome)
			}()
		}
	}
}

// Stop cancels the tick loop and waits for an in-flight tick to finish.
// It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		cancel, done := e.cancel, e.done
		if e.state != StateDenied {
			e.state = StateStopped
		}
		e.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
		e.logger.Info("session stopped")
	})
}

// Done is closed once the tick loop has exited. It is nil if the loop
// never started.
func (e *Engine) Done() <-chan struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.done
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// halt moves the session to the terminal denied state and ends ticking.
func (e *Engine) halt() {
	e.mu.Lock()
	e.state = StateDenied
	e.location = nil
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.logger.Warn("location permission denied, check-ins halted")
	e.notifier.Notify(Notification{
		Kind:    KindDenied,
		Title:   "Location unavailable",
		Message: "Permission to access location was denied.",
		At:      time.Now(),
	})
}

func (e *Engine) alert(msg string) {
	e.notifier.Notify(Notification{
		Kind:    KindAlert,
		Title:   "Error",
		Message: msg,
		At:      time.Now(),
	})
}

// acquire samples the current position and records it as the user's
// location. A first successful sample moves the session to running.
func (e *Engine) acquire(ctx context.Context) (storypath.Position, error) {
	sampleCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	p, err := e.positioner.CurrentPosition(sampleCtx)
	if errors.Is(err, position.ErrPermissionDenied) {
		e.halt()
		return storypath.Position{}, err
	}
	if err != nil {
		e.mu.Lock()
		if e.state == StateStarting {
			e.state = StateLocating
		}
		e.mu.Unlock()
		return storypath.Position{}, fmt.Errorf("sampling position: %w", err)
	}

	e.mu.Lock()
	e.location = &p
	e.lastFix = time.Now()
	if e.state == StateStarting || e.state == StateLocating {
		e.state = StateRunning
	}
	e.mu.Unlock()
	return p, nil
}

// MarkVisited adds ids to the visited set without recording anything.
func (e *Engine) MarkVisited(ids ...int) {
	e.mu.Lock()
	for _, id := range ids {
		e.visited[id] = struct{}{}
	}
	e.mu.Unlock()
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ProjectID   int
	State       State
	Location    *storypath.Position
	LastFix     time.Time // zero until a position is acquired
	Checkpoints []storypath.Checkpoint
	Visited     map[int]bool
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Snapshot{
		ProjectID:   e.projectID,
		State:       e.state,
		LastFix:     e.lastFix,
		Checkpoints: append([]storypath.Checkpoint(nil), e.checkpoints...),
		Visited:     make(map[int]bool, len(e.visited)),
	}
	if e.location != nil {
		loc := *e.location
		s.Location = &loc
	}
	for id := range e.visited {
		s.Visited[id] = true
	}
	return s
}
