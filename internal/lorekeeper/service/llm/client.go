// Package llm is the narrow gateway to the external chat model. The rest of
// the system depends on the Client; provider construction is confined to
// this package.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wyrdlab/reverie/pkg/logger"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// Reply is a normalized model response. Content is always populated; the
// tier fields are set when the model returned structured tiered output.
type Reply struct {
	Content string
	Tier1   string
	Tier2   string
	Tier3   string
}

// Client wraps a chat model with retry and response normalization. Network
// failures are retried with a fixed backoff; context cancellation is not.
type Client struct {
	chatModel  model.BaseChatModel
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a Client with the standard retry policy (3 attempts,
// 2 s backoff).
func NewClient(chatModel model.BaseChatModel) *Client {
	return &Client{
		chatModel:  chatModel,
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
}

// Generate sends messages to the model, retrying transient failures.
func (c *Client) Generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.chatModel.Generate(ctx, msgs)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		logger.Warn("[LLMClient] generate attempt %d/%d failed: %v", attempt, c.maxRetries, err)

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Complete sends messages and normalizes the reply: a fenced JSON body is
// unwrapped and structured tier fields are extracted when present.
func (c *Client) Complete(ctx context.Context, msgs []*schema.Message) (*Reply, error) {
	resp, err := c.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return NormalizeReply(resp.Content), nil
}

// tieredResponse mirrors the structured shape some models emit when asked
// for tiered output.
type tieredResponse struct {
	LLMResponse struct {
		Response      string `json:"response"`
		ResponseTiers struct {
			Tier1 string `json:"tier1"`
			Tier2 string `json:"tier2"`
			Tier3 string `json:"tier3"`
		} `json:"response_tiers"`
	} `json:"llm_response"`
	Response string `json:"response"`
}

// NormalizeReply unwraps a fenced code block and extracts the innermost
// response text, plus tier fields if the model returned them. Plain text
// passes through untouched.
func NormalizeReply(content string) *Reply {
	text := strings.TrimSpace(content)
	unwrapped := unwrapFence(text)

	if strings.HasPrefix(unwrapped, "{") {
		var tr tieredResponse
		if err := json.Unmarshal([]byte(unwrapped), &tr); err == nil {
			tiers := tr.LLMResponse.ResponseTiers
			switch {
			case tiers.Tier3 != "":
				return &Reply{
					Content: tiers.Tier3,
					Tier1:   tiers.Tier1,
					Tier2:   tiers.Tier2,
					Tier3:   tiers.Tier3,
				}
			case tr.LLMResponse.Response != "":
				return &Reply{Content: tr.LLMResponse.Response}
			case tr.Response != "":
				return &Reply{Content: tr.Response}
			}
		}
	}
	return &Reply{Content: text}
}

// unwrapFence strips one level of markdown code fencing.
func unwrapFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		return text
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
