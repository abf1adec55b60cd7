// Package storypath defines the core domain types shared by the backend
// client, the check-in engine and the HTTP API. It has no external
// dependencies.
package storypath

import "time"

type Project struct {
	ID                 int    `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	IsPublished        bool   `json:"is_published"`
	ParticipantScoring string `json:"participant_scoring"`
	Username           string `json:"username"`
	Instructions       string `json:"instructions"`
	InitialClue        string `json:"initial_clue"`
	HomescreenDisplay  string `json:"homescreen_display"`
	ParticipantsCount  int    `json:"participants_count"`
}

// Checkpoint is a point of interest within a project. The backend calls
// these "locations"; Position holds the raw "(lat, lon)" text.
type Checkpoint struct {
	ID        int    `json:"id"`
	ProjectID int    `json:"project_id"`
	Name      string `json:"location_name"`
	Position  string `json:"location_position"`
	Content   string `json:"location_content"`
	Clue      string `json:"clue"`
	Points    int    `json:"score_points"`
}

// Visit is one tracking record crediting a participant with a checkpoint.
type Visit struct {
	ProjectID           int    `json:"project_id"`
	CheckpointID        int    `json:"location_id"`
	Points              int    `json:"points"`
	Username            string `json:"username"`
	ParticipantUsername string `json:"participant_username"`
}

type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Profile is the participant's session state: who they are and how they
// appear. It replaces any app-wide user context.
type Profile struct {
	Username  string
	ImageURI  string
	UpdatedAt time.Time
}

type ProjectSummary struct {
	ProjectID        int `json:"projectId"`
	TotalPoints      int `json:"totalPoints"`
	UserPoints       int `json:"userPoints"`
	TotalLocations   int `json:"totalLocations"`
	VisitedLocations int `json:"visitedLocations"`
}

// Summarize computes the progress figures shown on a project's home screen.
func Summarize(projectID int, checkpoints []Checkpoint, visits []Visit) ProjectSummary {
	s := ProjectSummary{
		ProjectID:        projectID,
		TotalLocations:   len(checkpoints),
		VisitedLocations: len(visits),
	}
	for _, c := range checkpoints {
		s.TotalPoints += c.Points
	}
	for _, v := range visits {
		s.UserPoints += v.Points
	}
	return s
}
