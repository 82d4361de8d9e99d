package entity

import (
	"time"
)

// Session represents a conversation thread owned by a user. Deleting a
// session deletes its messages and any episodic chunks archived from it.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// UserID is the owning user.
	UserID string `json:"user_id"`

	// Title is a short human-readable label, derived from the first user
	// message when not set explicitly.
	Title string `json:"title"`

	// Metadata holds arbitrary key-value pairs for extensibility.
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is when this session was created.
	CreatedAt time.Time `json:"created_at"`

	// LastActivityAt is when the session last processed a turn.
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastActivityAt = now
}
