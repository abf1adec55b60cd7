package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/storypath/checkin/internal/backend"
	"github.com/storypath/checkin/internal/storypath"
)

// CheckpointDetail is a checkpoint marker with the project's visit count.
type CheckpointDetail struct {
	Marker   CheckpointMarker `json:"checkpoint"`
	Visitors int              `json:"visitors"`
}

func handleListProjects(be Backend, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := be.ListProjects(r.Context())
		if err != nil {
			logger.Error("listing projects", "error", err)
			writeError(w, http.StatusBadGateway, "could not load projects")
			return
		}
		if projects == nil {
			projects = []storypath.Project{}
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

func handleGetProject(be Backend, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := be.Project(r.Context(), projectFrom(r))
		if errors.Is(err, backend.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		if err != nil {
			logger.Error("loading project", "error", err)
			writeError(w, http.StatusBadGateway, "could not load project")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleProjectSummary reports the participant's progress on the project.
// Without ?participant= the figures cover every participant.
func handleProjectSummary(be Backend, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := projectFrom(r)
		participant := r.URL.Query().Get("participant")

		var (
			checkpoints []storypath.Checkpoint
			visits      []storypath.Visit
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			var err error
			checkpoints, err = be.ListCheckpoints(ctx, projectID)
			return err
		})
		g.Go(func() error {
			var err error
			visits, err = be.ListVisits(ctx, projectID, participant)
			return err
		})
		if err := g.Wait(); err != nil {
			logger.Error("loading project summary", "project_id", projectID, "error", err)
			writeError(w, http.StatusBadGateway, "could not load project progress")
			return
		}

		writeJSON(w, http.StatusOK, storypath.Summarize(projectID, checkpoints, visits))
	}
}

func handleGetCheckpoint(be Backend, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := projectFrom(r)
		checkpointID, err := strconv.Atoi(chi.URLParam(r, "checkpointID"))
		if err != nil || checkpointID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid checkpoint id")
			return
		}

		cp, err := be.Checkpoint(r.Context(), projectID, checkpointID)
		if errors.Is(err, backend.ErrNotFound) {
			writeError(w, http.StatusNotFound, "checkpoint not found")
			return
		}
		if err != nil {
			logger.Error("loading checkpoint", "checkpoint_id", checkpointID, "error", err)
			writeError(w, http.StatusBadGateway, "could not load checkpoint")
			return
		}

		// Visitors counts every tracking row of the project, as the map
		// popup does. A failed count degrades to zero.
		visits, err := be.ListVisits(r.Context(), projectID, "")
		if err != nil {
			logger.Warn("counting project visitors", "project_id", projectID, "error", err)
		}
		visitors := len(visits)

		writeJSON(w, http.StatusOK, CheckpointDetail{
			Marker:   newMarker(cp, false),
			Visitors: visitors,
		})
	}
}
