package server

import (
	"context"
	"errors"

	"github.com/storypath/checkin/internal/storypath"
)

var ErrNotFound = errors.New("not found")

// Backend is the subset of the StoryPath API the HTTP layer uses.
type Backend interface {
	ListProjects(ctx context.Context) ([]storypath.Project, error)
	Project(ctx context.Context, id int) (storypath.Project, error)
	ListCheckpoints(ctx context.Context, projectID int) ([]storypath.Checkpoint, error)
	Checkpoint(ctx context.Context, projectID, checkpointID int) (storypath.Checkpoint, error)
	ListVisits(ctx context.Context, projectID int, participant string) ([]storypath.Visit, error)
	RecordVisit(ctx context.Context, v storypath.Visit) error
}

type ProfileStore interface {
	Get(ctx context.Context, username string) (storypath.Profile, error)
	Put(ctx context.Context, p storypath.Profile) (storypath.Profile, error)
	Participant(ctx context.Context, username string) (string, error)
}
