package repo

import (
	"context"
	"time"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
)

// SessionRepository is the persistence contract for sessions.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *entity.Session) error

	// Get returns one session by id.
	Get(ctx context.Context, id string) (*entity.Session, error)

	// ListByUser returns the user's sessions, most recently active first.
	ListByUser(ctx context.Context, userID string) ([]*entity.Session, error)

	// Touch updates the last-activity timestamp.
	Touch(ctx context.Context, id string, at time.Time) error

	// UpdateTitle sets the session title.
	UpdateTitle(ctx context.Context, id, title string) error

	// Delete removes the session row. Message and archive cleanup is the
	// caller's responsibility.
	Delete(ctx context.Context, id string) error
}
