package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/storypath/checkin/internal/checkin"
	"github.com/storypath/checkin/internal/position"
	"github.com/storypath/checkin/internal/profile"
	"github.com/storypath/checkin/internal/storypath"
)

// KindScan marks the notification echoing a scanned QR code.
const KindScan checkin.Kind = "scan.received"

// PositionRequest is a device position sample. Denied reports that the
// device refused location access; coordinates are ignored then.
type PositionRequest struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Denied    bool     `json:"denied,omitempty"`
}

func (p PositionRequest) report() (position.Report, error) {
	if p.Denied {
		return position.Report{Denied: true, At: time.Now().UTC()}, nil
	}
	if p.Latitude == nil || p.Longitude == nil {
		return position.Report{}, errors.New("latitude and longitude are required")
	}
	lat, lon := *p.Latitude, *p.Longitude
	if math.IsNaN(lat) || math.Abs(lat) > 90 || math.IsNaN(lon) || math.Abs(lon) > 180 {
		return position.Report{}, fmt.Errorf("coordinates out of range: (%v, %v)", lat, lon)
	}
	return position.Report{
		Position: storypath.Position{Latitude: lat, Longitude: lon},
		At:       time.Now().UTC(),
	}, nil
}

type MountRequest struct {
	Participant string           `json:"participant"`
	Position    *PositionRequest `json:"position,omitempty"`
}

type ScanRequest struct {
	Data string `json:"data"`
}

type ScanResponse struct {
	Data string `json:"data"`
}

func handleMountSession(sessions *Sessions, profiles ProfileStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MountRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		participant, err := profiles.Participant(r.Context(), req.Participant)
		if errors.Is(err, profile.ErrInvalidUsername) {
			writeError(w, http.StatusBadRequest, "participant is required")
			return
		}
		if err != nil {
			logger.Error("resolving participant", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		var initial *position.Report
		if req.Position != nil {
			rep, err := req.Position.report()
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			initial = &rep
		}

		sess, err := sessions.Mount(r.Context(), projectFrom(r), participant, initial)
		if r.Context().Err() != nil {
			if err == nil {
				sessions.Unmount(context.WithoutCancel(r.Context()), sess.ID)
			}
			logger.Info("mount abandoned by client", "project_id", projectFrom(r))
			return
		}
		if err != nil {
			logger.Error("mounting session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Location", "/api/sessions/"+sess.ID)
		writeJSON(w, http.StatusCreated, newSessionResponse(sess))
	}
}

func handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newSessionResponse(sessionFrom(r)))
	}
}

func handleUnmountSession(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Unmount(r.Context(), sessionFrom(r).ID); errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleReportPosition(positions position.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rep, err := req.report()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		sess := sessionFrom(r)
		if err := positions.Put(r.Context(), sess.ID, rep); err != nil {
			logger.Error("storing position", "session_id", sess.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleScan records a scanned QR code. Scans are not verified; the text is
// logged and echoed back to the session.
func handleScan(sessions *Sessions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScanRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Data = strings.TrimSpace(req.Data)
		if req.Data == "" {
			writeError(w, http.StatusBadRequest, "data is required")
			return
		}

		sess := sessionFrom(r)
		logger.Info("qr code scanned", "session_id", sess.ID, "data", req.Data)
		sessions.Publish(sess, checkin.Notification{
			Kind:    KindScan,
			Title:   "QR Code Scanned",
			Message: "Data: " + req.Data,
			At:      time.Now().UTC(),
		})
		writeJSON(w, http.StatusOK, ScanResponse{Data: req.Data})
	}
}
