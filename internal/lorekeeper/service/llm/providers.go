package llm

import (
	"context"

	"github.com/bytedance/gg/gptr"
	einoClaude "github.com/cloudwego/eino-ext/components/model/claude"
	einoOllama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	genericoptions "github.com/wyrdlab/reverie/internal/pkg/options"
)

// buildOpenAIChatModel covers OpenAI itself and any OpenAI-compatible
// endpoint via the base-url override.
func buildOpenAIChatModel(ctx context.Context, opts *genericoptions.ModelOptions) (model.BaseChatModel, error) {
	cfg := &einoOpenAI.ChatModelConfig{
		Model:       opts.Model,
		APIKey:      opts.ResolveAPIKey(),
		Temperature: gptr.Of(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxTokens = gptr.Of(opts.MaxTokens)
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return einoOpenAI.NewChatModel(ctx, cfg)
}

func buildClaudeChatModel(ctx context.Context, opts *genericoptions.ModelOptions) (model.BaseChatModel, error) {
	cfg := &einoClaude.Config{
		APIKey:      opts.ResolveAPIKey(),
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: gptr.Of(opts.Temperature),
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = gptr.Of(opts.BaseURL)
	}
	return einoClaude.NewChatModel(ctx, cfg)
}

func buildOllamaChatModel(ctx context.Context, opts *genericoptions.ModelOptions) (model.BaseChatModel, error) {
	cfg := &einoOllama.ChatModelConfig{
		BaseURL: "http://127.0.0.1:11434",
		Model:   opts.Model,
		Options: &einoOllama.Options{
			Temperature: opts.Temperature,
		},
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return einoOllama.NewChatModel(ctx, cfg)
}
