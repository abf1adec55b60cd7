package checkin

import "time"

type Kind string

const (
	KindCheckin       Kind = "checkin.succeeded"
	KindCheckinFailed Kind = "checkin.failed"
	KindAlert         Kind = "alert"
	KindDenied        Kind = "location.denied"
)

// Notification is a one-shot message for the participant.
type Notification struct {
	Kind         Kind      `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	CheckpointID int       `json:"checkpointId,omitempty"`
	Checkpoint   string    `json:"checkpoint,omitempty"`
	Points       int       `json:"points,omitempty"`
	At           time.Time `json:"at"`
}

// Notifier delivers notifications. Notify must not block the tick.
type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }
