package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/repo"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// ContextBuilder assembles the contextual-memory block of the prompt under a
// token budget, picking each message's representation by its required tier.
//
// The walk is newest-first so recent turns are preferred. When a higher-tier
// message does not fit, the lowest-tier already-included message is evicted
// to make room — upgraded content is authoritative and must survive budget
// pressure. Output is re-ordered chronologically before rendering.
type ContextBuilder struct {
	estimator *TokenEstimator
	messages  repo.MessageRepository
	budget    int
}

// DefaultContextTokenBudget bounds the contextual-memory block.
const DefaultContextTokenBudget = 4000

// NewContextBuilder creates a ContextBuilder. A negative budget selects the
// default; zero is honored as a genuine zero-history budget.
func NewContextBuilder(estimator *TokenEstimator, messages repo.MessageRepository, budget int) *ContextBuilder {
	if budget < 0 {
		budget = DefaultContextTokenBudget
	}
	return &ContextBuilder{
		estimator: estimator,
		messages:  messages,
		budget:    budget,
	}
}

// BuildResult holds the rendered context and its bookkeeping.
type BuildResult struct {
	// Text is the full contextual block: preamble, selected history,
	// recalled episodic content and the current message.
	Text string

	// EstimatedTokens is the estimate for Text; at most the budget whenever
	// the preamble, recalled content and current message fit within it.
	EstimatedTokens int

	// Included is how many history messages made it into the block.
	Included int

	// Evicted counts low-tier messages dropped in favor of higher tiers.
	Evicted int
}

// Build assembles the tiered context for one turn.
// recalled carries raw episodic content injected by a fetch directive this
// turn; it is appended after the history, before the current message.
func (cb *ContextBuilder) Build(
	ctx context.Context,
	sessionID string,
	currentMessage string,
	recalled []string,
) (*BuildResult, error) {
	preamble := tierSystemExplanation

	history, err := cb.messages.ListContextual(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("list contextual messages: %w", err)
	}

	// The preamble, the verbatim current message and any recalled content are
	// mandatory; history competes for whatever budget remains. Each piece is
	// estimated together with the separator that joins it, so the estimate
	// of the rendered text never exceeds the sum of the pieces.
	reserved := cb.estimator.Estimate(preamble) +
		cb.estimator.Estimate("\n\nCURRENT_MESSAGE:\n"+currentMessage) +
		cb.estimator.Estimate("\n\nCONVERSATION HISTORY:\n")
	for _, r := range recalled {
		if strings.TrimSpace(r) != "" {
			reserved += cb.estimator.Estimate("\n\nRECALLED_EPISODE:\n" + r)
		}
	}
	budget := cb.budget - reserved
	if budget < 0 {
		budget = 0
	}

	type picked struct {
		text   string
		tier   int
		tokens int
		pos    int // position in newest-first order; larger = older
	}

	var (
		selected []picked
		used     int
		evicted  int
	)

	for pos, msg := range history {
		text := cb.serialize(msg)
		tokens := cb.estimator.Estimate("\n\n" + text)

		if used+tokens <= budget {
			selected = append(selected, picked{text: text, tier: msg.EffectiveTier(), tokens: tokens, pos: pos})
			used += tokens
			continue
		}

		if msg.EffectiveTier() <= entity.TierShort || len(selected) == 0 {
			continue
		}

		// Over budget: evict the lowest-tier included message if it is
		// strictly lower-tier than this one and the swap fits.
		lowest := 0
		for i, p := range selected {
			if p.tier < selected[lowest].tier {
				lowest = i
			}
		}
		if selected[lowest].tier >= msg.EffectiveTier() {
			continue
		}
		freed := selected[lowest].tokens
		if used-freed+tokens > budget {
			continue
		}
		logger.Debug("[ContextBuilder] evicting tier-%d message for tier-%d message %s",
			selected[lowest].tier, msg.EffectiveTier(), msg.ID)
		selected = append(selected[:lowest], selected[lowest+1:]...)
		selected = append(selected, picked{text: text, tier: msg.EffectiveTier(), tokens: tokens, pos: pos})
		used = used - freed + tokens
		evicted++
	}

	// Restore chronological order: history is newest-first, so larger pos
	// means older.
	sort.Slice(selected, func(i, j int) bool { return selected[i].pos > selected[j].pos })

	parts := []string{preamble}
	if len(selected) > 0 {
		lines := make([]string, 0, len(selected))
		for _, p := range selected {
			lines = append(lines, p.text)
		}
		parts = append(parts, "CONVERSATION HISTORY:\n"+strings.Join(lines, "\n\n"))
	}
	for _, r := range recalled {
		if strings.TrimSpace(r) == "" {
			continue
		}
		parts = append(parts, "RECALLED_EPISODE:\n"+r)
	}
	parts = append(parts, "CURRENT_MESSAGE:\n"+currentMessage)

	text := strings.Join(parts, "\n\n")
	return &BuildResult{
		Text:            text,
		EstimatedTokens: cb.estimator.Estimate(text),
		Included:        len(selected),
		Evicted:         evicted,
	}, nil
}

// serialize renders one message for the prompt. Tier 1 is bare; higher tiers
// carry the tier level and timestamp so the model can judge freshness.
func (cb *ContextBuilder) serialize(msg *entity.Message) string {
	role := strings.ToUpper(string(msg.Role)[:1]) + string(msg.Role)[1:]
	base := fmt.Sprintf("[Message ID: %s] %s: %s", msg.ID, role, msg.ContentAtRequiredTier())
	if tier := msg.EffectiveTier(); tier > entity.TierShort {
		return fmt.Sprintf("%s (Tier %d, %s)", base, tier, msg.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return base
}

// tierSystemExplanation is the preamble instructing the model on the tiered
// history format and the directive grammar.
const tierSystemExplanation = `MEMORY SYSTEM:
Conversation history below is stored in three tiers per message:
  Tier 1: terse summary   Tier 2: condensed   Tier 3: full original text
Each history entry shows its message ID. To see more detail of a message,
request a tier upgrade and the conversation will be re-run with the richer
content:
  [REQUEST_TIER:<level>:<message_id>]   e.g. [REQUEST_TIER:3:msg_ab12cd34]
To search archived past conversations: [SEARCH_EPISODIC:<query>]
To broaden a failed archive search:    [SEARCH_DEEPER_EPISODIC]
To pull one archived episode in full:  [FETCH_EPISODE:<chunk_id>]
To search the web:                     [SEARCH: <query>]
Directives are stripped from your reply before the user sees it.`
