package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/repo"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// TierManager is a thin facade over the message repository that owns the
// tiered-representation rules: deriving missing tiers on insert, monotonic
// tier promotion, and contextual/episodic status transitions.
type TierManager struct {
	messages repo.MessageRepository
}

// NewTierManager creates a TierManager.
func NewTierManager(messages repo.MessageRepository) *TierManager {
	return &TierManager{messages: messages}
}

// StoreTurnMessage persists one message with all tiers. Empty medium/short
// contents are derived from the full content: the short form is the first
// ten words, the medium form roughly half the words.
func (tm *TierManager) StoreTurnMessage(
	ctx context.Context,
	sessionID, userID string,
	role entity.Role,
	full, medium, short string,
) (*entity.Message, error) {
	if strings.TrimSpace(full) == "" {
		return nil, errno.ErrEmptyMessage
	}
	if medium == "" {
		medium = DeriveMediumContent(full)
	}
	if short == "" {
		short = DeriveShortContent(full)
	}
	// Tier lengths must be non-decreasing; on very short inputs the derived
	// forms can invert, so clamp downward.
	if len(medium) > len(full) {
		medium = full
	}
	if len(short) > len(medium) {
		short = medium
	}

	msg := &entity.Message{
		ID:            "msg_" + uuid.New().String()[:8],
		SessionID:     sessionID,
		UserID:        userID,
		Role:          role,
		Timestamp:     time.Now(),
		ContentFull:   full,
		ContentMedium: medium,
		ContentShort:  short,
		RequiredTier:  entity.TierShort,
		MemoryStatus:  entity.MemoryStatusContextual,
	}
	if err := tm.messages.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Promote raises a message's required tier. A downgrade attempt is not an
// error for the caller: the stricter tier wins and the attempt is logged.
func (tm *TierManager) Promote(ctx context.Context, id string, tier int) error {
	if tier < entity.TierShort || tier > entity.TierFull {
		return fmt.Errorf("invalid tier %d for message %q", tier, id)
	}
	err := tm.messages.UpdateRequiredTier(ctx, id, tier)
	if errors.Is(err, errno.ErrTierDowngrade) {
		logger.Warn("[TierManager] ignoring tier downgrade for message %s to %d", id, tier)
		return nil
	}
	return err
}

// ToEpisodic bulk-moves messages out of contextual memory.
func (tm *TierManager) ToEpisodic(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tm.messages.UpdateMemoryStatus(ctx, ids, entity.MemoryStatusEpisodic)
}

// Recall brings a message back into contextual memory: status flips to
// contextual, importance is bumped, and the recall flag is set.
func (tm *TierManager) Recall(ctx context.Context, id string) error {
	if err := tm.messages.UpdateMemoryStatus(ctx, []string{id}, entity.MemoryStatusContextual); err != nil {
		return fmt.Errorf("recall %s: %w", id, err)
	}
	if err := tm.messages.UpdateImportance(ctx, id, 1); err != nil {
		return fmt.Errorf("recall %s: bump importance: %w", id, err)
	}
	return tm.messages.MarkRecalled(ctx, id)
}

// DeriveShortContent builds the Tier 1 representation: the first ten words,
// capped at roughly fifty characters.
func DeriveShortContent(full string) string {
	words := strings.Fields(full)
	if len(words) == 0 {
		return full
	}
	n := len(words)
	truncated := false
	if n > 10 {
		n = 10
		truncated = true
	}
	short := strings.Join(words[:n], " ")
	if runes := []rune(short); len(runes) > 50 {
		short = string(runes[:47])
		truncated = true
	}
	if truncated {
		short += "..."
	}
	return short
}

// DeriveMediumContent builds the Tier 2 representation: the first half of
// the words.
func DeriveMediumContent(full string) string {
	words := strings.Fields(full)
	if len(words) <= 1 {
		return full
	}
	half := (len(words) + 1) / 2
	medium := strings.Join(words[:half], " ")
	if half < len(words) {
		medium += "..."
	}
	return medium
}
