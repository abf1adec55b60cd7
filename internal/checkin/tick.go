package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storypath/checkin/internal/geo"
	"github.com/storypath/checkin/internal/metrics"
	"github.com/storypath/checkin/internal/position"
	"github.com/storypath/checkin/internal/storypath"
)

type TickOutcome string

const (
	// TickSkipped: another tick was still in flight.
	TickSkipped TickOutcome = "skipped"
	// TickInactive: the session is not running (denied or stopped).
	TickInactive    TickOutcome = "inactive"
	TickLocated     TickOutcome = "located"
	TickSampleError TickOutcome = "sample_error"
	TickDenied      TickOutcome = "denied"
	TickNoMatch     TickOutcome = "no_match"
	TickCredited    TickOutcome = "credited"
	TickFailed      TickOutcome = "failed"
)

type TickResult struct {
	Outcome    TickOutcome
	Checkpoint *storypath.Checkpoint
	Distance   float64
	Err        error
}

// Tick runs one proximity evaluation. Ticks never overlap: a call made while
// another is in flight returns TickSkipped without doing anything.
func (e *Engine) Tick(ctx context.Context) TickResult {
	if !e.inFlight.CompareAndSwap(false, true) {
		metrics.TicksTotal.WithLabelValues(string(TickSkipped)).Inc()
		return TickResult{Outcome: TickSkipped}
	}
	defer e.inFlight.Store(false)

	res := e.tick(ctx)
	metrics.TicksTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (e *Engine) tick(ctx context.Context) TickResult {
	state := e.State()
	switch state {
	case StateStarting, StateLocating:
		if _, err := e.acquire(ctx); err != nil {
			return sampleFailure(err)
		}
		return TickResult{Outcome: TickLocated}
	case StateRunning:
	default:
		return TickResult{Outcome: TickInactive}
	}

	here, err := e.acquire(ctx)
	if err != nil {
		return sampleFailure(err)
	}

	cp, dist, ok := e.firstInRange(here)
	if !ok {
		return TickResult{Outcome: TickNoMatch}
	}

	if err := e.credit(ctx, cp); err != nil {
		return TickResult{Outcome: TickFailed, Checkpoint: &cp, Distance: dist, Err: err}
	}
	return TickResult{Outcome: TickCredited, Checkpoint: &cp, Distance: dist}
}

func sampleFailure(err error) TickResult {
	if errors.Is(err, position.ErrPermissionDenied) {
		return TickResult{Outcome: TickDenied, Err: err}
	}
	return TickResult{Outcome: TickSampleError, Err: err}
}

// firstInRange returns the first unvisited checkpoint, in directory order,
// strictly within the radius of here.
func (e *Engine) firstInRange(here storypath.Position) (storypath.Checkpoint, float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, cp := range e.checkpoints {
		if _, done := e.visited[cp.ID]; done {
			continue
		}
		at, err := geo.ParsePosition(cp.Position)
		if err != nil {
			if !e.opts.LenientPositions {
				e.logger.Debug("skipping checkpoint with unparseable position",
					"checkpoint_id", cp.ID, "position", cp.Position)
				continue
			}
			at = geo.Fallback
		}
		if geo.Within(here, at, e.opts.Radius) {
			return cp, geo.Distance(here, at), true
		}
	}
	return storypath.Checkpoint{}, 0, false
}

// credit records the visit and, once accepted, marks the checkpoint
// visited. Exactly one notification is emitted either way.
func (e *Engine) credit(ctx context.Context, cp storypath.Checkpoint) error {
	visit := storypath.Visit{
		ProjectID:           cp.ProjectID,
		CheckpointID:        cp.ID,
		Points:              cp.Points,
		Username:            e.identity.Owner,
		ParticipantUsername: e.identity.Participant,
	}
	if visit.ProjectID == 0 {
		visit.ProjectID = e.projectID
	}

	recCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	if err := e.recorder.RecordVisit(recCtx, visit); err != nil {
		metrics.CheckinsTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// Session ended mid-call; the backend may still have stored it.
			e.logger.Info("recording visit abandoned, session ended", "checkpoint_id", cp.ID)
			return fmt.Errorf("recording visit to checkpoint %d: %w", cp.ID, err)
		}
		e.logger.Warn("recording visit failed", "checkpoint_id", cp.ID, "error", err)
		e.notifier.Notify(Notification{
			Kind:         KindCheckinFailed,
			Title:        "Error",
			Message:      "Failed to add points. Please try again.",
			CheckpointID: cp.ID,
			At:           time.Now(),
		})
		return fmt.Errorf("recording visit to checkpoint %d: %w", cp.ID, err)
	}

	e.MarkVisited(cp.ID)
	metrics.CheckinsTotal.WithLabelValues("succeeded").Inc()
	e.logger.Info("checkpoint credited", "checkpoint_id", cp.ID, "points", cp.Points)
	e.notifier.Notify(Notification{
		Kind:         KindCheckin,
		Title:        "Location Entered",
		Message:      fmt.Sprintf("You have received %d points for visiting %s", cp.Points, cp.Name),
		CheckpointID: cp.ID,
		Checkpoint:   cp.Name,
		Points:       cp.Points,
		At:           time.Now(),
	})
	return nil
}
