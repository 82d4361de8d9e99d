package facts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDeterministicPatterns(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Hi, my name is Ada", "User's name is Ada"},
		{"I live in Kyoto", "User lives in Kyoto"},
		{"I'm from New Zealand", "User is from New Zealand"},
		{"I work as a software engineer.", "User works as a software engineer"},
		{"By the way, I work at Initech.", "User works at Initech"},
		{"I am working on a project called Orrery.", "User is working on Orrery"},
		{"I love hiking.", "User enjoys hiking"},
	}
	for _, tc := range cases {
		got := ExtractDeterministic(tc.input)
		require.NotEmpty(t, got, "no facts for %q", tc.input)
		assert.Contains(t, got, tc.want, "input %q", tc.input)
	}
}

func TestExtractDeterministicRoleplay(t *testing.T) {
	got := ExtractDeterministic("Please roleplay as Sherlock Holmes.")
	require.NotEmpty(t, got)
	assert.Contains(t, got[0], PersonaPrefix)
	assert.Contains(t, got[0], "Sherlock Holmes")
}

func TestExtractDeterministicNoFacts(t *testing.T) {
	assert.Empty(t, ExtractDeterministic("What's the weather like?"))
	assert.Empty(t, ExtractDeterministic(""))
}

func TestDetectForgetCommand(t *testing.T) {
	pattern, ok := DetectForgetCommand("forget that I live in Kyoto")
	require.True(t, ok)
	assert.Equal(t, "kyoto", pattern)

	pattern, ok = DetectForgetCommand("don't remember that my deadline is Friday")
	require.True(t, ok)
	assert.Contains(t, pattern, "deadline")

	pattern, ok = DetectForgetCommand("remove my address from your memory")
	require.True(t, ok)
	assert.Contains(t, pattern, "address")

	_, ok = DetectForgetCommand("tell me about Kyoto")
	assert.False(t, ok)
}

type scriptedModel struct {
	content string
	err     error
}

func (m *scriptedModel) Generate(_ context.Context, _ []*schema.Message) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.content}, nil
}

func TestExtractWithLLM(t *testing.T) {
	model := &scriptedModel{content: `["User's dog is named Max.", "User prefers short summaries."]`}
	got := ExtractWithLLM(context.Background(), model, "in", "out")
	assert.Equal(t, []string{"User's dog is named Max.", "User prefers short summaries."}, got)
}

func TestExtractWithLLMUnwrapsFence(t *testing.T) {
	model := &scriptedModel{content: "```json\n[\"User uses Go for work.\"]\n```"}
	got := ExtractWithLLM(context.Background(), model, "in", "out")
	assert.Equal(t, []string{"User uses Go for work."}, got)
}

func TestExtractWithLLMToleratesGarbage(t *testing.T) {
	model := &scriptedModel{content: "I could not find any facts."}
	assert.Empty(t, ExtractWithLLM(context.Background(), model, "in", "out"))

	assert.Empty(t, ExtractWithLLM(context.Background(), nil, "in", "out"))
}
