package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	genericoptions "github.com/wyrdlab/reverie/internal/pkg/options"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// Config configures the LLM module.
type Config struct {
	ModelOptions *genericoptions.ModelOptions
}

// CompletedConfig is a Config with defaults applied.
type CompletedConfig struct {
	*Config
}

// Complete fills defaults.
func (c *Config) Complete() *CompletedConfig {
	if c.ModelOptions == nil {
		c.ModelOptions = genericoptions.NewModelOptions()
	}
	return &CompletedConfig{c}
}

// Module owns the configured chat model and its client wrapper.
type Module struct {
	Client *Client
}

// New builds the chat model for the configured provider.
func (c *CompletedConfig) New(ctx context.Context) (*Module, error) {
	chatModel, err := buildChatModel(ctx, c.ModelOptions)
	if err != nil {
		return nil, fmt.Errorf("build %s chat model: %w", c.ModelOptions.Provider, err)
	}
	logger.Info("[LLM] using provider %s model %s", c.ModelOptions.Provider, c.ModelOptions.Model)
	return &Module{Client: NewClient(chatModel)}, nil
}

func buildChatModel(ctx context.Context, opts *genericoptions.ModelOptions) (model.BaseChatModel, error) {
	switch opts.Provider {
	case "openai":
		return buildOpenAIChatModel(ctx, opts)
	case "claude":
		return buildClaudeChatModel(ctx, opts)
	case "ollama":
		return buildOllamaChatModel(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Provider)
	}
}
