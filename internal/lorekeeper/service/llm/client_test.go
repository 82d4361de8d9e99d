package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyModel struct {
	failures int
	calls    int
}

func (m *flakyModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, errors.New("connection reset")
	}
	return &schema.Message{Role: schema.Assistant, Content: "ok"}, nil
}

func (m *flakyModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestClientRetriesTransientFailures(t *testing.T) {
	fm := &flakyModel{failures: 2}
	client := &Client{chatModel: fm, maxRetries: 3, backoff: time.Millisecond}

	resp, err := client.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, fm.calls)
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	fm := &flakyModel{failures: 10}
	client := &Client{chatModel: fm, maxRetries: 3, backoff: time.Millisecond}

	_, err := client.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 3, fm.calls)
}

func TestNormalizeReplyPlainText(t *testing.T) {
	reply := NormalizeReply("Just an answer.")
	assert.Equal(t, "Just an answer.", reply.Content)
	assert.Empty(t, reply.Tier3)
}

func TestNormalizeReplyFencedTiers(t *testing.T) {
	raw := "```json\n" +
		`{"llm_response": {"response_tiers": {"tier1": "short", "tier2": "medium length", "tier3": "the full detailed answer"}}}` +
		"\n```"
	reply := NormalizeReply(raw)
	assert.Equal(t, "the full detailed answer", reply.Content)
	assert.Equal(t, "short", reply.Tier1)
	assert.Equal(t, "medium length", reply.Tier2)
}

func TestNormalizeReplyBareJSONResponse(t *testing.T) {
	reply := NormalizeReply(`{"llm_response": {"response": "inner text"}}`)
	assert.Equal(t, "inner text", reply.Content)
}

func TestNormalizeReplyNonJSONFence(t *testing.T) {
	reply := NormalizeReply("```\nplain code\n```")
	// A fenced non-JSON body stays as the original text; unwrapping only
	// applies to structured payloads.
	assert.Contains(t, reply.Content, "plain code")
}
