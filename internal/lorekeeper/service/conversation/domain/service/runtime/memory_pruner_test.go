package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/store/inmemory"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/episodic"
)

func newPrunerFixture(t *testing.T, cfg PrunerConfig) (*MemoryPruner, *inmemory.MessageStore, *TierManager, *episodic.Store) {
	t.Helper()
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	archive := episodic.NewStore(t.TempDir(), nil)
	t.Cleanup(archive.Close)
	pruner := NewMemoryPruner(NewTokenEstimator(4), store, tm, archive, cfg)
	return pruner, store, tm, archive
}

func TestPrunerNoopUnderCeiling(t *testing.T) {
	pruner, _, tm, _ := newPrunerFixture(t, PrunerConfig{TokenCeiling: 30000, Headroom: 5000, MinRetained: 5})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := tm.StoreTurnMessage(ctx, "s1", "u1", entity.RoleUser, "short message", "", "")
		require.NoError(t, err)
	}

	result, err := pruner.CheckAndPrune(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, result.Pruned)
}

func TestPrunerArchivesOldestAndRespectsFloor(t *testing.T) {
	pruner, store, tm, archive := newPrunerFixture(t, PrunerConfig{TokenCeiling: 500, Headroom: 100, MinRetained: 5})
	ctx := context.Background()

	content := strings.Repeat("alpha beta gamma delta ", 10) // ~230 chars, ~58 tokens full
	var all []*entity.Message
	for i := 0; i < 30; i++ {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		msg, err := tm.StoreTurnMessage(ctx, "s1", "u1", role, content, "", content)
		require.NoError(t, err)
		all = append(all, msg)
	}

	result, err := pruner.CheckAndPrune(ctx, "u1", "s1")
	require.NoError(t, err)
	require.True(t, result.Pruned)
	assert.Greater(t, result.PrunedCount, 0)

	contextual, err := store.ListByStatus(ctx, "s1", entity.MemoryStatusContextual)
	require.NoError(t, err)
	archived, err := store.ListByStatus(ctx, "s1", entity.MemoryStatusEpisodic)
	require.NoError(t, err)

	// Ceiling honored, floor honored, and exactly the oldest messages moved.
	estimator := NewTokenEstimator(4)
	assert.LessOrEqual(t, estimator.EstimateContextual(contextual), 500)
	assert.GreaterOrEqual(t, len(contextual), 5)
	assert.Len(t, archived, result.PrunedCount)
	for i, msg := range archived {
		assert.Equal(t, all[i].ID, msg.ID, "pruned set must be the chronological prefix")
	}

	// Full content is recoverable from the archive.
	chunk, err := archive.FetchRaw(ctx, "u1", result.ChunkID)
	require.NoError(t, err)
	require.NotEmpty(t, chunk.RawTurns)
	assert.Equal(t, content, chunk.RawTurns[0].UserInput)
	assert.Len(t, chunk.MessageIDs, result.PrunedCount)

	// Every archived chunk without a summarizer still gets indexed with the
	// placeholder and remains retrievable by raw content.
	hits, err := archive.Retrieve(ctx, "u1", "alpha beta gamma", episodic.RetrieveOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, episodic.PlaceholderSummary, hits[0].Summary)
}

func TestPrunerSkipsAtFloor(t *testing.T) {
	pruner, _, tm, _ := newPrunerFixture(t, PrunerConfig{TokenCeiling: 10, Headroom: 5, MinRetained: 5})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tm.StoreTurnMessage(ctx, "s1", "u1", entity.RoleUser,
			strings.Repeat("over the ceiling ", 20), "", "")
		require.NoError(t, err)
	}

	result, err := pruner.CheckAndPrune(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, result.Pruned, "retention floor must block pruning")
}
