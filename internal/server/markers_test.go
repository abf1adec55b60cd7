package server

import (
	"testing"

	"github.com/storypath/checkin/internal/geo"
	"github.com/storypath/checkin/internal/storypath"
)

func TestNewMarker(t *testing.T) {
	tests := []struct {
		name        string
		cp          storypath.Checkpoint
		wantPos     storypath.Position
		wantLocated bool
		wantContent string
	}{
		{
			name:        "parsed",
			cp:          storypath.Checkpoint{ID: 1, Position: "(-27.4975, 153.0137)", Content: "<h1>Great</h1> <b>Court</b>"},
			wantPos:     storypath.Position{Latitude: -27.4975, Longitude: 153.0137},
			wantLocated: true,
			wantContent: "Great Court",
		},
		{
			name:        "unparseable uses fallback",
			cp:          storypath.Checkpoint{ID: 2, Position: "somewhere near the river"},
			wantPos:     geo.Fallback,
			wantLocated: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMarker(tt.cp, true)
			if m.Position != tt.wantPos {
				t.Errorf("position = %+v, want %+v", m.Position, tt.wantPos)
			}
			if m.Located != tt.wantLocated {
				t.Errorf("located = %v, want %v", m.Located, tt.wantLocated)
			}
			if m.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", m.Content, tt.wantContent)
			}
			if !m.Visited {
				t.Error("visited flag lost")
			}
		})
	}
}
