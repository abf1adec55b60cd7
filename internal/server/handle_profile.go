package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storypath/checkin/internal/profile"
	"github.com/storypath/checkin/internal/storypath"
)

type ProfileRequest struct {
	ImageURI string `json:"imageUri"`
}

type ProfileResponse struct {
	Username  string    `json:"username"`
	ImageURI  string    `json:"imageUri"`
	UpdatedAt time.Time `json:"updatedAt"`
	Message   string    `json:"message,omitempty"`
}

func handleGetProfile(profiles ProfileStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := profiles.Get(r.Context(), chi.URLParam(r, "username"))
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		if err != nil {
			logger.Error("loading profile", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ProfileResponse{Username: p.Username, ImageURI: p.ImageURI, UpdatedAt: p.UpdatedAt})
	}
}

func handlePutProfile(profiles ProfileStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProfileRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := profiles.Put(r.Context(), storypath.Profile{
			Username: chi.URLParam(r, "username"),
			ImageURI: req.ImageURI,
		})
		if errors.Is(err, profile.ErrInvalidUsername) {
			writeError(w, http.StatusBadRequest, "please enter a username")
			return
		}
		if err != nil {
			logger.Error("saving profile", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ProfileResponse{
			Username:  p.Username,
			ImageURI:  p.ImageURI,
			UpdatedAt: p.UpdatedAt,
			Message:   "Welcome, " + p.Username + "!",
		})
	}
}
