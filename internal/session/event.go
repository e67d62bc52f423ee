package session

import "github.com/user/estatebot/internal/types"

// EventType identifies what changed.
type EventType string

const (
	// EventAppended fires once per message added to the timeline, in
	// timeline order.
	EventAppended EventType = "appended"
	// EventBusy fires when an upload or query starts or resolves.
	EventBusy EventType = "busy"
	// EventInput fires when the pending input changes.
	EventInput EventType = "input"
)

// Event is a change notification delivered to observers. Observers run on
// the goroutine that caused the change, after the controller's lock has
// been released, so they may call Snapshot.
type Event struct {
	Type      EventType
	SessionID types.SessionID
	Message   Message
	Busy      bool
}

// Observer receives change notifications.
type Observer func(Event)
