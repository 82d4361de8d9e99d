package prompt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineSectionOrder(t *testing.T) {
	p := NewDefaultPipeline()

	out := p.Assemble(context.Background(), &PromptContext{
		SessionID:         "s1",
		Now:               time.Now(),
		ContextBlock:      "history goes here",
		Summary:           "they talked about travel",
		EpisodicSummaries: []string{"an older trip discussion"},
		WebResults:        "1. A result",
		FactsBlock:        "- User lives in Kyoto",
	})

	markers := []string{
		"CONTEXTUAL_MEMORY:",
		"CURRENT_CONTEXT_SUMMARY:",
		"RELATED_PAST_CONVERSATIONS:",
		"WEB_SEARCH_RESULTS:",
		"REMEMBER_THIS:",
		"authoritative",
	}
	last := -1
	for _, marker := range markers {
		idx := strings.Index(out, marker)
		require.GreaterOrEqual(t, idx, 0, "missing %s", marker)
		assert.Greater(t, idx, last, "%s out of order", marker)
		last = idx
	}
}

func TestPipelineSkipsEmptySections(t *testing.T) {
	p := NewDefaultPipeline()

	out := p.Assemble(context.Background(), &PromptContext{
		ContextBlock: "history",
	})
	assert.Contains(t, out, "CONTEXTUAL_MEMORY:")
	assert.NotContains(t, out, "CURRENT_CONTEXT_SUMMARY:")
	assert.NotContains(t, out, "WEB_SEARCH_RESULTS:")
	assert.NotContains(t, out, "REMEMBER_THIS:")
}
