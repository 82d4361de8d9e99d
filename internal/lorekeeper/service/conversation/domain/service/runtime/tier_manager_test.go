package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/store/inmemory"
)

func TestDeriveShortContent(t *testing.T) {
	short := DeriveShortContent("one two three four five six seven eight nine ten eleven twelve")
	assert.Equal(t, "one two three four five six seven eight nine ten...", short)

	assert.Equal(t, "hello", DeriveShortContent("hello"))
}

func TestDeriveMediumContent(t *testing.T) {
	medium := DeriveMediumContent("a b c d e f")
	assert.Equal(t, "a b c...", medium)

	assert.Equal(t, "solo", DeriveMediumContent("solo"))
}

func TestStoreTurnMessageDefaultsTiers(t *testing.T) {
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	ctx := context.Background()

	full := strings.Repeat("lorem ipsum dolor sit amet ", 10)
	msg, err := tm.StoreTurnMessage(ctx, "s1", "u1", entity.RoleUser, full, "", "")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ContentShort)
	assert.NotEmpty(t, msg.ContentMedium)
	assert.LessOrEqual(t, len(msg.ContentShort), len(msg.ContentMedium))
	assert.LessOrEqual(t, len(msg.ContentMedium), len(msg.ContentFull))
	assert.Equal(t, entity.TierShort, msg.RequiredTier)
	assert.Equal(t, entity.MemoryStatusContextual, msg.MemoryStatus)
}

func TestStoreTurnMessageRejectsEmpty(t *testing.T) {
	tm := NewTierManager(inmemory.NewMessageStore())
	_, err := tm.StoreTurnMessage(context.Background(), "s1", "u1", entity.RoleUser, "   ", "", "")
	assert.ErrorIs(t, err, errno.ErrEmptyMessage)
}

func TestPromoteIsMonotonic(t *testing.T) {
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	ctx := context.Background()

	msg, err := tm.StoreTurnMessage(ctx, "s1", "u1", entity.RoleUser, "I live in Kyoto these days", "", "")
	require.NoError(t, err)

	require.NoError(t, tm.Promote(ctx, msg.ID, 3))
	got, err := store.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RequiredTier)

	// A downgrade attempt is swallowed; the stricter tier wins.
	require.NoError(t, tm.Promote(ctx, msg.ID, 1))
	got, err = store.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RequiredTier)
}

func TestRecall(t *testing.T) {
	store := inmemory.NewMessageStore()
	tm := NewTierManager(store)
	ctx := context.Background()

	msg, err := tm.StoreTurnMessage(ctx, "s1", "u1", entity.RoleUser, "archived thought", "", "")
	require.NoError(t, err)
	require.NoError(t, tm.ToEpisodic(ctx, []string{msg.ID}))

	got, err := store.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MemoryStatusEpisodic, got.MemoryStatus)

	require.NoError(t, tm.Recall(ctx, msg.ID))
	got, err = store.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MemoryStatusContextual, got.MemoryStatus)
	assert.True(t, got.WasRecalled)
	assert.GreaterOrEqual(t, got.ImportanceScore, 2)
}
