package facts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/store/inmemory"
)

func newStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	users := inmemory.NewUserStore()
	ctx := context.Background()
	require.NoError(t, users.EnsureUser(ctx, "u1", "ada"))
	return NewStore(users), ctx
}

func TestAddDeduplicatesAndKeepsOrder(t *testing.T) {
	store, ctx := newStore(t)

	require.NoError(t, store.Add(ctx, "u1", "User lives in Kyoto", "User enjoys hiking"))
	require.NoError(t, store.Add(ctx, "u1", "User lives in Kyoto", "User works as a baker"))

	facts, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"User lives in Kyoto", "User enjoys hiking", "User works as a baker"}, facts)
}

func TestAddRejectsJunk(t *testing.T) {
	store, ctx := newStore(t)

	require.NoError(t, store.Add(ctx, "u1", "  ", "ab", "[SEARCH: leak]", "real fact here"))

	facts, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"real fact here"}, facts)
}

func TestPersonaIsSingleAndPinned(t *testing.T) {
	store, ctx := newStore(t)

	require.NoError(t, store.Add(ctx, "u1", "User lives in Kyoto"))
	require.NoError(t, store.Add(ctx, "u1", PersonaPrefix+" You must consistently roleplay as Sherlock Holmes throughout the entire conversation until explicitly told to stop."))
	require.NoError(t, store.Add(ctx, "u1", PersonaPrefix+" You must consistently roleplay as Ada Lovelace throughout the entire conversation until explicitly told to stop."))

	facts, err := store.Load(ctx, "u1")
	require.NoError(t, err)

	personas := 0
	for _, f := range facts {
		if strings.HasPrefix(f, PersonaPrefix) {
			personas++
		}
	}
	assert.Equal(t, 1, personas)
	assert.True(t, strings.HasPrefix(facts[0], PersonaPrefix), "persona must be pinned at index 0")
	assert.Contains(t, facts[0], "Ada Lovelace")
}

func TestForgetMatchesSubstring(t *testing.T) {
	store, ctx := newStore(t)

	require.NoError(t, store.Add(ctx, "u1", "User lives in Kyoto.", "User enjoys hiking"))

	removed, err := store.Forget(ctx, "u1", "kyoto")
	require.NoError(t, err)
	assert.True(t, removed)

	facts, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"User enjoys hiking"}, facts)

	removed, err = store.Forget(ctx, "u1", "nonexistent")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFormatSections(t *testing.T) {
	assert.Empty(t, Format(nil))

	out := Format([]string{
		PersonaPrefix + " You must consistently roleplay as Sherlock Holmes throughout the entire conversation until explicitly told to stop.",
		"User lives in Kyoto",
	})
	assert.True(t, strings.HasPrefix(out, "CRITICAL CONTEXT"))
	assert.Contains(t, out, "Sherlock Holmes")
	assert.Contains(t, out, "- User lives in Kyoto")
}

func TestSanitizeFact(t *testing.T) {
	assert.Equal(t, "", SanitizeFact("ab"))
	assert.Equal(t, "", SanitizeFact("[REQUEST_TIER:3:msg_a]"))
	assert.Equal(t, "keeps text", SanitizeFact(" keeps text [SEARCH_EPISODIC:x] "))
}
