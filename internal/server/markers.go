package server

import (
	"html"
	"regexp"
	"strings"

	"github.com/storypath/checkin/internal/checkin"
	"github.com/storypath/checkin/internal/geo"
	"github.com/storypath/checkin/internal/storypath"
)

// CheckpointMarker is a checkpoint as a map shows it.
type CheckpointMarker struct {
	ID       int                `json:"id"`
	Name     string             `json:"name"`
	Clue     string             `json:"clue"`
	Content  string             `json:"content"`
	HTML     string             `json:"html"`
	Position storypath.Position `json:"position"`
	// Located is false when the stored position could not be parsed and
	// Position holds the fallback coordinate.
	Located bool `json:"located"`
	Points  int  `json:"points"`
	Visited bool `json:"visited"`
}

var tagRE = regexp.MustCompile(`<[^>]*>`)

// plainText strips markup from checkpoint content.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRE.ReplaceAllString(s, "")))
}

func newMarker(cp storypath.Checkpoint, visited bool) CheckpointMarker {
	_, err := geo.ParsePosition(cp.Position)
	return CheckpointMarker{
		ID:       cp.ID,
		Name:     cp.Name,
		Clue:     cp.Clue,
		Content:  plainText(cp.Content),
		HTML:     cp.Content,
		Position: geo.ParsePositionOrFallback(cp.Position),
		Located:  err == nil,
		Points:   cp.Points,
		Visited:  visited,
	}
}

type SessionResponse struct {
	ID            string                 `json:"id"`
	ProjectID     int                    `json:"projectId"`
	Participant   string                 `json:"participant"`
	State         checkin.State          `json:"state"`
	Location      *storypath.Position    `json:"location"`
	Checkpoints   []CheckpointMarker     `json:"checkpoints"`
	VisitedCount  int                    `json:"visitedCount"`
	Points        int                    `json:"points"`
	Notifications []checkin.Notification `json:"notifications"`
}

func newSessionResponse(sess *Session) SessionResponse {
	snap := sess.Snapshot()
	resp := SessionResponse{
		ID:            sess.ID,
		ProjectID:     sess.ProjectID,
		Participant:   sess.Participant,
		State:         snap.State,
		Location:      snap.Location,
		Checkpoints:   make([]CheckpointMarker, 0, len(snap.Checkpoints)),
		Notifications: sess.Recent(),
	}
	for _, cp := range snap.Checkpoints {
		visited := snap.Visited[cp.ID]
		if visited {
			resp.VisitedCount++
			resp.Points += cp.Points
		}
		resp.Checkpoints = append(resp.Checkpoints, newMarker(cp, visited))
	}
	if resp.Notifications == nil {
		resp.Notifications = []checkin.Notification{}
	}
	return resp
}
