package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/repo"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// Archiver receives pruned chunks. The episodic store implements it; the
// pruner only needs the one method.
type Archiver interface {
	Archive(ctx context.Context, chunk *entity.EpisodicChunk) error
}

// MemoryPruner keeps a session's contextual token estimate under a ceiling
// by archiving the oldest messages into an episodic chunk.
//
// Pruning runs at the end of each turn. It prunes past the ceiling by a
// headroom margin so back-to-back turns do not each trigger another prune,
// and it never reduces the retained contextual count below a floor.
type MemoryPruner struct {
	estimator *TokenEstimator
	messages  repo.MessageRepository
	tiers     *TierManager
	archiver  Archiver
	cfg       PrunerConfig
}

// PrunerConfig holds the pruning thresholds.
type PrunerConfig struct {
	// TokenCeiling is the contextual estimate that triggers pruning.
	// Default: 30000.
	TokenCeiling int

	// Headroom is pruned beyond the ceiling to avoid thrashing.
	// Default: 5000.
	Headroom int

	// MinRetained is the floor of contextual messages always kept.
	// Default: 5.
	MinRetained int
}

// DefaultPrunerConfig returns the default thresholds.
func DefaultPrunerConfig() PrunerConfig {
	return PrunerConfig{
		TokenCeiling: 30000,
		Headroom:     5000,
		MinRetained:  5,
	}
}

// NewMemoryPruner creates a pruner.
func NewMemoryPruner(
	estimator *TokenEstimator,
	messages repo.MessageRepository,
	tiers *TierManager,
	archiver Archiver,
	cfg PrunerConfig,
) *MemoryPruner {
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = 30000
	}
	if cfg.Headroom <= 0 {
		cfg.Headroom = 5000
	}
	if cfg.MinRetained <= 0 {
		cfg.MinRetained = 5
	}
	return &MemoryPruner{
		estimator: estimator,
		messages:  messages,
		tiers:     tiers,
		archiver:  archiver,
		cfg:       cfg,
	}
}

// PruneResult reports what a pruning pass did.
type PruneResult struct {
	Pruned       bool
	ChunkID      string
	PrunedCount  int
	PrunedTokens int
}

// CheckAndPrune prunes the session if its contextual estimate exceeds the
// ceiling. A transient storage error aborts the whole prune — no partial
// effect — and pruning simply resumes on the next turn.
func (p *MemoryPruner) CheckAndPrune(ctx context.Context, userID, sessionID string) (*PruneResult, error) {
	contextual, err := p.messages.ListByStatus(ctx, sessionID, entity.MemoryStatusContextual)
	if err != nil {
		return nil, fmt.Errorf("prune: list contextual: %w", err)
	}

	total := p.estimator.EstimateContextual(contextual)
	if total <= p.cfg.TokenCeiling {
		return &PruneResult{}, nil
	}

	need := total - p.cfg.TokenCeiling + p.cfg.Headroom
	logger.Info("[MemoryPruner] session %s at ~%d tokens, pruning ~%d", sessionID, total, need)

	// Walk oldest-first until the collected messages cover the need, but
	// never dipping below the retention floor. Coverage is measured at each
	// message's required tier, the same measure as the total, so the retained
	// estimate ends at or below ceiling minus headroom; the full-content
	// estimate of the collected messages is then at least the need as well.
	var (
		collected []*entity.Message
		freed     int // full-content estimate of the collected messages
		covered   int // required-tier estimate of the collected messages
	)
	for _, msg := range contextual {
		if len(contextual)-len(collected) <= p.cfg.MinRetained {
			break
		}
		collected = append(collected, msg)
		freed += p.estimator.Estimate(msg.ContentFull)
		covered += p.estimator.EstimateAtRequiredTier(msg)
		if covered >= need {
			break
		}
	}

	if len(collected) == 0 {
		logger.Info("[MemoryPruner] session %s over ceiling but at retention floor, skipping", sessionID)
		return &PruneResult{}, nil
	}

	chunk := buildChunk(userID, sessionID, collected)

	// Archive before flipping status so the full content is never orphaned.
	// Summarization inside the store is asynchronous and non-fatal.
	if err := p.archiver.Archive(ctx, chunk); err != nil {
		return nil, fmt.Errorf("prune: archive chunk: %w", err)
	}

	ids := make([]string, 0, len(collected))
	for _, msg := range collected {
		ids = append(ids, msg.ID)
	}
	if err := p.tiers.ToEpisodic(ctx, ids); err != nil {
		return nil, fmt.Errorf("prune: mark episodic: %w", err)
	}

	logger.Info("[MemoryPruner] session %s pruned %d messages (~%d tokens) into chunk %s",
		sessionID, len(collected), freed, chunk.ID)
	return &PruneResult{
		Pruned:       true,
		ChunkID:      chunk.ID,
		PrunedCount:  len(collected),
		PrunedTokens: freed,
	}, nil
}

// buildChunk pairs the collected messages into turns. User messages open a
// turn; the following assistant message completes it. Unpaired messages are
// archived as half-turns so no content is lost.
func buildChunk(userID, sessionID string, msgs []*entity.Message) *entity.EpisodicChunk {
	chunk := &entity.EpisodicChunk{
		ID:        "chunk_" + uuid.New().String()[:8],
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	for _, msg := range msgs {
		chunk.MessageIDs = append(chunk.MessageIDs, msg.ID)
	}

	var open *entity.Turn
	flush := func() {
		if open != nil {
			chunk.RawTurns = append(chunk.RawTurns, *open)
			open = nil
		}
	}
	for _, msg := range msgs {
		switch msg.Role {
		case entity.RoleUser:
			flush()
			open = &entity.Turn{
				TurnID:    msg.ID,
				Timestamp: msg.Timestamp,
				UserInput: msg.ContentFull,
			}
		case entity.RoleAssistant:
			if open == nil {
				open = &entity.Turn{TurnID: msg.ID, Timestamp: msg.Timestamp}
			}
			open.AssistantOutput = msg.ContentFull
			flush()
		default:
			flush()
			chunk.RawTurns = append(chunk.RawTurns, entity.Turn{
				TurnID:    msg.ID,
				Timestamp: msg.Timestamp,
				UserInput: msg.ContentFull,
			})
		}
	}
	flush()
	return chunk
}
