package types

import "time"

// EventType enumerates the kinds of change notification.
type EventType string

const (
	// EventCreated indicates a task was inserted.
	EventCreated EventType = "created"
	// EventUpdated indicates a task was modified (toggle, edit, enhancement write-back).
	EventUpdated EventType = "updated"
	// EventDeleted indicates a task was removed.
	EventDeleted EventType = "deleted"
	// EventChanged indicates the table changed outside this program. TaskID is zero.
	EventChanged EventType = "changed"
)

// TaskEvent is a change notification. Events are not filtered by partition:
// subscribers re-fetch their own view on every event.
type TaskEvent struct {
	Type      EventType `json:"type"`
	TaskID    int64     `json:"task_id,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	At        time.Time `json:"at"`
	Origin    string    `json:"origin,omitempty"` // Process that produced the event (NATS echo suppression)
}

// IsValid reports whether the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventChanged:
		return true
	}
	return false
}
