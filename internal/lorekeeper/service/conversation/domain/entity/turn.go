package entity

import (
	"time"
)

// Turn is one (user input, assistant output) pair.
type Turn struct {
	// TurnID identifies the turn inside its session.
	TurnID string `json:"turn_id"`

	// Timestamp is when the turn completed.
	Timestamp time.Time `json:"timestamp"`

	// UserInput is the raw user message.
	UserInput string `json:"user_input"`

	// AssistantOutput is the full assistant reply (Tier 3 content).
	AssistantOutput string `json:"assistant_output"`
}

// EpisodicChunk is a pruned batch of turns archived together as one
// episodic unit.
type EpisodicChunk struct {
	// ID is the chunk identifier, unique within its session.
	ID string `json:"id"`

	// SessionID and UserID identify the source conversation.
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	// CreatedAt is when the chunk was archived.
	CreatedAt time.Time `json:"created_at"`

	// RawTurns is the ordered archived content. Never empty.
	RawTurns []Turn `json:"raw_turns"`

	// MessageIDs lists every archived message id, in order. A fetch
	// directive recalls these back into contextual memory.
	MessageIDs []string `json:"message_ids"`

	// Summary is the 3-5 sentence generated summary; a placeholder when
	// summarization failed. The chunk stays searchable either way.
	Summary string `json:"summary"`
}

// RawText flattens the chunk's turns into a single searchable string.
func (c *EpisodicChunk) RawText() string {
	var out string
	for _, t := range c.RawTurns {
		out += t.UserInput + "\n" + t.AssistantOutput + "\n"
	}
	return out
}
