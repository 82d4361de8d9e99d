package episodic

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
)

// ChatCompleter is the narrow slice of the LLM gateway the summarizer needs.
type ChatCompleter interface {
	Generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)
}

// LLMSummarizer generates chunk summaries through the chat model.
type LLMSummarizer struct {
	model ChatCompleter
}

// NewLLMSummarizer creates an LLMSummarizer.
func NewLLMSummarizer(model ChatCompleter) *LLMSummarizer {
	return &LLMSummarizer{model: model}
}

// Summarize asks the model for a 3-5 sentence summary of the chunk's turns.
func (s *LLMSummarizer) Summarize(ctx context.Context, chunk *entity.EpisodicChunk) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize this conversation excerpt in 3-5 sentences. ")
	b.WriteString("Cover the topics discussed, decisions made, facts established, and the outcome. ")
	b.WriteString("Output only the summary.\n\n")
	for _, turn := range chunk.RawTurns {
		if turn.UserInput != "" {
			fmt.Fprintf(&b, "User: %s\n", turn.UserInput)
		}
		if turn.AssistantOutput != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", turn.AssistantOutput)
		}
	}

	resp, err := s.model.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: "You are a precise conversation summarizer."},
		{Role: schema.User, Content: b.String()},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
