package entity

import (
	"time"
)

// EventKind identifies the type of a streaming turn event.
type EventKind string

const (
	// EventSystem is an intermediate status update (tool activity).
	EventSystem EventKind = "system"

	// EventFinal carries the assistant's reply and terminates the stream.
	EventFinal EventKind = "final"

	// EventError terminates the stream with a user-facing failure.
	EventError EventKind = "error"
)

// System event actions.
const (
	ActionWebSearch      = "web_search"
	ActionEpisodicSearch = "episodic_search"
)

// System event phases. An active phase strictly precedes its matching
// complete or error phase within one turn.
const (
	PhaseActive   = "active"
	PhaseComplete = "complete"
	PhaseError    = "error"
)

// Event is a single item in the lazy event sequence a turn produces. The
// stream carries zero or more system events followed by exactly one final
// or error event.
type Event struct {
	Kind      EventKind `json:"kind"`
	Action    string    `json:"action,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Query     string    `json:"query,omitempty"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFinalEvent builds the terminal success event.
func NewFinalEvent(sessionID, content string) *Event {
	return &Event{
		Kind:      EventFinal,
		Content:   content,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// NewErrorEvent builds the terminal failure event.
func NewErrorEvent(sessionID, msg string) *Event {
	return &Event{
		Kind:      EventError,
		Error:     msg,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}
