package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/storypath/checkin/internal/metrics"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("StoryPath Check-in API", "/openapi.json", "/docs"))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/api/projects", handleListProjects(deps.Backend, logger))
	r.Route("/api/projects/{projectID}", func(r chi.Router) {
		r.Use(projectMiddleware)
		r.Get("/", handleGetProject(deps.Backend, logger))
		r.Get("/summary", handleProjectSummary(deps.Backend, logger))
		r.Get("/checkpoints/{checkpointID}", handleGetCheckpoint(deps.Backend, logger))
		r.Post("/sessions", handleMountSession(deps.Sessions, deps.Profiles, logger))
	})

	// Session routes, {sessionID} resolved by sessionMiddleware.
	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Use(sessionMiddleware(deps.Sessions))
		r.Get("/", handleGetSession())
		r.Delete("/", handleUnmountSession(deps.Sessions))
		r.Put("/position", handleReportPosition(deps.Positions, logger))
		r.Get("/events", handleEvents(deps.Broker))
		r.Get("/ws", handleSessionWS(deps.Broker, deps.Positions, logger))
		r.Post("/scan", handleScan(deps.Sessions, logger))
	})

	r.Get("/api/profile/{username}", handleGetProfile(deps.Profiles, logger))
	r.Put("/api/profile/{username}", handlePutProfile(deps.Profiles, logger))
}
