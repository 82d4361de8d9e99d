package repo

import (
	"context"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
)

// MessageRepository is the persistence contract for tiered messages.
//
// Implementations must return errno.ErrMessageNotFound for missing ids and
// errno.ErrTierDowngrade when UpdateRequiredTier would lower the tier.
// Multi-row updates happen in a single atomic scope.
type MessageRepository interface {
	// Insert stores a new message with all three tiers.
	Insert(ctx context.Context, msg *entity.Message) error

	// Get returns one message by id.
	Get(ctx context.Context, id string) (*entity.Message, error)

	// ListContextual returns up to limit contextual messages of the session,
	// newest first. limit <= 0 means no limit.
	ListContextual(ctx context.Context, sessionID string, limit int) ([]*entity.Message, error)

	// ListByStatus returns the session's messages with the given status in
	// chronological order.
	ListByStatus(ctx context.Context, sessionID string, status entity.MemoryStatus) ([]*entity.Message, error)

	// UpdateRequiredTier raises the required tier. Lowering it fails with
	// errno.ErrTierDowngrade.
	UpdateRequiredTier(ctx context.Context, id string, tier int) error

	// UpdateMemoryStatus transitions all given messages atomically.
	UpdateMemoryStatus(ctx context.Context, ids []string, status entity.MemoryStatus) error

	// UpdateImportance adds delta to the importance score.
	UpdateImportance(ctx context.Context, id string, delta int) error

	// MarkRecalled flags a message as recalled from episodic memory.
	MarkRecalled(ctx context.Context, id string) error

	// DeleteSession removes every message of the session.
	DeleteSession(ctx context.Context, sessionID string) error
}
