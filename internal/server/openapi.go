package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/storypath/checkin/internal/storypath"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthStatus is one entry of the /healthz response, keyed by dependency.
type HealthStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

type projectPath struct {
	ProjectID int `path:"projectID"`
}

type summaryInput struct {
	ProjectID   int    `path:"projectID"`
	Participant string `query:"participant" description:"Limit progress to one participant."`
}

type checkpointPath struct {
	ProjectID    int `path:"projectID"`
	CheckpointID int `path:"checkpointID"`
}

type mountInput struct {
	ProjectID int `path:"projectID"`
	MountRequest
}

type sessionPath struct {
	SessionID string `path:"sessionID"`
}

type positionInput struct {
	SessionID string `path:"sessionID"`
	PositionRequest
}

type scanInput struct {
	SessionID string `path:"sessionID"`
	ScanRequest
}

type profilePath struct {
	Username string `path:"username"`
}

type profileInput struct {
	Username string `path:"username"`
	ProfileRequest
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "StoryPath Check-in API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Proximity check-in sessions for StoryPath location tours.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the database, position store and StoryPath backend.")
	getHealthz.AddRespStructure(map[string]HealthStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]HealthStatus{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/projects
	listProjects, _ := r.NewOperationContext(http.MethodGet, "/api/projects")
	listProjects.SetSummary("List projects")
	listProjects.AddRespStructure([]storypath.Project{}, openapi.WithHTTPStatus(http.StatusOK))
	listProjects.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(listProjects)

	// GET /api/projects/{projectID}
	getProject, _ := r.NewOperationContext(http.MethodGet, "/api/projects/{projectID}")
	getProject.SetSummary("Get project")
	getProject.AddReqStructure(projectPath{})
	getProject.AddRespStructure(storypath.Project{}, openapi.WithHTTPStatus(http.StatusOK))
	getProject.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getProject.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(getProject)

	// GET /api/projects/{projectID}/summary
	getSummary, _ := r.NewOperationContext(http.MethodGet, "/api/projects/{projectID}/summary")
	getSummary.SetSummary("Project progress")
	getSummary.SetDescription("Points earned out of the total and checkpoints visited out of the total.")
	getSummary.AddReqStructure(summaryInput{})
	getSummary.AddRespStructure(storypath.ProjectSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	getSummary.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(getSummary)

	// GET /api/projects/{projectID}/checkpoints/{checkpointID}
	getCheckpoint, _ := r.NewOperationContext(http.MethodGet, "/api/projects/{projectID}/checkpoints/{checkpointID}")
	getCheckpoint.SetSummary("Get checkpoint")
	getCheckpoint.SetDescription("Returns the checkpoint as a map marker with the number of recorded visits to it.")
	getCheckpoint.AddReqStructure(checkpointPath{})
	getCheckpoint.AddRespStructure(CheckpointDetail{}, openapi.WithHTTPStatus(http.StatusOK))
	getCheckpoint.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getCheckpoint)

	// POST /api/projects/{projectID}/sessions
	mount, _ := r.NewOperationContext(http.MethodPost, "/api/projects/{projectID}/sessions")
	mount.SetSummary("Mount session")
	mount.SetDescription("Loads the project's checkpoints and the participant's visits, then starts checking proximity every tick.")
	mount.AddReqStructure(mountInput{})
	mount.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	mount.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(mount)

	// GET /api/sessions/{sessionID}
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}")
	getSession.SetSummary("Get session")
	getSession.AddReqStructure(sessionPath{})
	getSession.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSession)

	// DELETE /api/sessions/{sessionID}
	unmount, _ := r.NewOperationContext(http.MethodDelete, "/api/sessions/{sessionID}")
	unmount.SetSummary("Unmount session")
	unmount.SetDescription("Stops the tick loop. No further check-ins are recorded.")
	unmount.AddReqStructure(sessionPath{})
	unmount.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	unmount.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(unmount)

	// PUT /api/sessions/{sessionID}/position
	putPosition, _ := r.NewOperationContext(http.MethodPut, "/api/sessions/{sessionID}/position")
	putPosition.SetSummary("Report position")
	putPosition.SetDescription("Stores the device's latest position, or that location permission was denied.")
	putPosition.AddReqStructure(positionInput{})
	putPosition.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	putPosition.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putPosition)

	// GET /api/sessions/{sessionID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/events")
	getEvents.SetSummary("SSE notification stream")
	getEvents.SetDescription("Server-Sent Events stream of check-in notifications.")
	getEvents.AddReqStructure(sessionPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/sessions/{sessionID}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/ws")
	getWS.SetSummary("Session WebSocket")
	getWS.SetDescription("Accepts position frames and pushes check-in notifications.")
	getWS.AddReqStructure(sessionPath{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/sessions/{sessionID}/scan
	postScan, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/scan")
	postScan.SetSummary("Scan QR code")
	postScan.AddReqStructure(scanInput{})
	postScan.AddRespStructure(ScanResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postScan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postScan)

	// GET /api/profile/{username}
	getProfile, _ := r.NewOperationContext(http.MethodGet, "/api/profile/{username}")
	getProfile.SetSummary("Get profile")
	getProfile.AddReqStructure(profilePath{})
	getProfile.AddRespStructure(ProfileResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getProfile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getProfile)

	// PUT /api/profile/{username}
	putProfile, _ := r.NewOperationContext(http.MethodPut, "/api/profile/{username}")
	putProfile.SetSummary("Save profile")
	putProfile.AddReqStructure(profileInput{})
	putProfile.AddRespStructure(ProfileResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putProfile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putProfile)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
