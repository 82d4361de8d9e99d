package runtime

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/store/inmemory"
)

func seedMessages(t *testing.T, tm *TierManager, sessionID string, n int, wordsPerMsg int) []*entity.Message {
	t.Helper()
	var msgs []*entity.Message
	for i := 0; i < n; i++ {
		content := strings.TrimSpace(strings.Repeat(fmt.Sprintf("topic%d word ", i), wordsPerMsg/2))
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		msg, err := tm.StoreTurnMessage(context.Background(), sessionID, "u1", role, content, "", "")
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestContextBuilderStaysUnderBudget(t *testing.T) {
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	estimator := NewTokenEstimator(4)
	cb := NewContextBuilder(estimator, store, 1000)

	seedMessages(t, tm, "s1", 40, 30)

	result, err := cb.Build(context.Background(), "s1", "what now?", nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.EstimatedTokens, 1000)
	assert.Greater(t, result.Included, 0)
	assert.Contains(t, result.Text, "CURRENT_MESSAGE:\nwhat now?")
	assert.Contains(t, result.Text, "MEMORY SYSTEM:")
}

func TestContextBuilderZeroBudgetKeepsPreambleAndCurrent(t *testing.T) {
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	cb := NewContextBuilder(NewTokenEstimator(4), store, 0)

	seedMessages(t, tm, "s1", 4, 20)

	result, err := cb.Build(context.Background(), "s1", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Included)
	assert.Contains(t, result.Text, "MEMORY SYSTEM:")
	assert.Contains(t, result.Text, "CURRENT_MESSAGE:\nhello")
	assert.NotContains(t, result.Text, "CONVERSATION HISTORY:")
}

func TestContextBuilderPrefersHigherTiers(t *testing.T) {
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	estimator := NewTokenEstimator(4)

	// One small old message promoted to full tier, then enough larger
	// tier-1 messages to fill the budget ahead of it.
	old, err := tm.StoreTurnMessage(context.Background(), "s1", "u1", entity.RoleUser,
		"Kyoto secret fact here now", "", "")
	require.NoError(t, err)
	require.NoError(t, tm.Promote(context.Background(), old.ID, 3))
	seedMessages(t, tm, "s1", 6, 40)

	// Budget fits roughly four recent tier-1 entries; the tier-3 message
	// must displace one of them.
	fixed := estimator.Estimate(tierSystemExplanation) + estimator.Estimate("CURRENT_MESSAGE:\nq")
	cb := NewContextBuilder(estimator, store, fixed+100)

	result, err := cb.Build(context.Background(), "s1", "q", nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, old.ID, "tier-3 message should survive budget pressure")
	assert.Contains(t, result.Text, "(Tier 3,")
	assert.Greater(t, result.Evicted, 0)
}

func TestContextBuilderChronologicalOrder(t *testing.T) {
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	cb := NewContextBuilder(NewTokenEstimator(4), store, 100000)

	msgs := seedMessages(t, tm, "s1", 6, 10)

	result, err := cb.Build(context.Background(), "s1", "q", nil)
	require.NoError(t, err)

	last := -1
	for _, msg := range msgs {
		idx := strings.Index(result.Text, msg.ID)
		require.GreaterOrEqual(t, idx, 0, "message %s missing", msg.ID)
		assert.Greater(t, idx, last, "messages must appear in chronological order")
		last = idx
	}
}

func TestContextBuilderRecalledBlock(t *testing.T) {
	store := inmemory.NewMessageStore()
	cb := NewContextBuilder(NewTokenEstimator(4), store, 4000)

	result, err := cb.Build(context.Background(), "s1", "q", []string{"User: old\nAssistant: older"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "RECALLED_EPISODE:\nUser: old")
}
