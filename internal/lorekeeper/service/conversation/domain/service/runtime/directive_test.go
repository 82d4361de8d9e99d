package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTierUpgrade(t *testing.T) {
	codec := NewDirectiveCodec()

	clean, dirs := codec.Parse("[REQUEST_TIER:3:msg_ab12cd34] Let me check.")
	require.Len(t, dirs, 1)
	assert.Equal(t, DirectiveTierUpgrade, dirs[0].Kind)
	assert.Equal(t, 3, dirs[0].Tier)
	assert.Equal(t, "msg_ab12cd34", dirs[0].MessageID)
	assert.Equal(t, "Let me check.", clean)
}

func TestParseTierVariants(t *testing.T) {
	codec := NewDirectiveCodec()

	// Space-separated form.
	_, dirs := codec.Parse("[REQUEST_TIER 2 msg_x1]")
	require.Len(t, dirs, 1)
	assert.Equal(t, 2, dirs[0].Tier)
	assert.Equal(t, "msg_x1", dirs[0].MessageID)

	// Unterminated form.
	_, dirs = codec.Parse("checking [REQUEST_TIER:3:msg_y2")
	require.Len(t, dirs, 1)
	assert.Equal(t, 3, dirs[0].Tier)
	assert.Equal(t, "msg_y2", dirs[0].MessageID)

	// Quoted id gets cleaned.
	_, dirs = codec.Parse(`[REQUEST_TIER:2:"msg_z3"]`)
	require.Len(t, dirs, 1)
	assert.Equal(t, "msg_z3", dirs[0].MessageID)
}

func TestParseInvalidTierIgnored(t *testing.T) {
	codec := NewDirectiveCodec()
	_, dirs := codec.Parse("[REQUEST_TIER:7:msg_a]")
	assert.Empty(t, dirs)
}

func TestParseMultipleDirectivesPreserveOrder(t *testing.T) {
	codec := NewDirectiveCodec()

	text := "[REQUEST_TIER:2:msg_a] then [SEARCH_EPISODIC:rust project] and [SEARCH: weather Paris today] [SEARCH_DEEPER_EPISODIC]"
	clean, dirs := codec.Parse(text)

	require.Len(t, dirs, 4)
	assert.Equal(t, DirectiveTierUpgrade, dirs[0].Kind)
	assert.Equal(t, DirectiveEpisodicSearch, dirs[1].Kind)
	assert.Equal(t, "rust project", dirs[1].Query)
	assert.Equal(t, DirectiveWebSearch, dirs[2].Kind)
	assert.Equal(t, "weather Paris today", dirs[2].Query)
	assert.Equal(t, DirectiveSearchDeeper, dirs[3].Kind)
	assert.NotContains(t, clean, "[")
}

func TestParseFetchEpisode(t *testing.T) {
	codec := NewDirectiveCodec()
	_, dirs := codec.Parse("[FETCH_EPISODE: chunk_12ab34cd ]")
	require.Len(t, dirs, 1)
	assert.Equal(t, DirectiveFetchEpisode, dirs[0].Kind)
	assert.Equal(t, "chunk_12ab34cd", dirs[0].ChunkID)
}

func TestParseEpisodicDedupAndMinLength(t *testing.T) {
	codec := NewDirectiveCodec()

	_, dirs := codec.Parse("[SEARCH_EPISODIC:project][SEARCH_EPISODIC:Project][SEARCH_EPISODIC:ab]")
	require.Len(t, dirs, 1)
	assert.Equal(t, "project", dirs[0].Query)
}

func TestParseNoDirectivesIsIdentity(t *testing.T) {
	codec := NewDirectiveCodec()

	text := "Just a normal reply.\nWith two lines."
	clean, dirs := codec.Parse(text)
	assert.Empty(t, dirs)
	assert.Equal(t, text, clean)
}

func TestStripIsIdempotent(t *testing.T) {
	codec := NewDirectiveCodec()

	text := "before [SEARCH: something] after"
	once := codec.Strip(text)
	twice := codec.Strip(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, "before  after", once)
}

func TestParseInsideFence(t *testing.T) {
	codec := NewDirectiveCodec()

	// Mixed content inside a fence is left alone.
	text := "```\nexample: [SEARCH: not real]\n```"
	clean, dirs := codec.Parse(text)
	assert.Empty(t, dirs)
	assert.Contains(t, clean, "[SEARCH: not real]")

	// A directive alone on a fenced line is honored.
	text = "```\n[SEARCH: real query]\n```"
	clean, dirs = codec.Parse(text)
	if assert.Len(t, dirs, 1) {
		assert.Equal(t, "real query", dirs[0].Query)
	}
	assert.NotContains(t, clean, "real query")
}
