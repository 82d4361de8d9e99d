package options

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// ModelOptions selects and configures the single chat model the assistant
// talks to. The provider is fixed at startup; there is no per-request
// routing.
type ModelOptions struct {
	Provider    string  `json:"provider"    mapstructure:"provider"`
	Model       string  `json:"model"       mapstructure:"model"`
	APIKey      string  `json:"api-key"     mapstructure:"api-key"`
	BaseURL     string  `json:"base-url"    mapstructure:"base-url"`
	Temperature float32 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max-tokens"  mapstructure:"max-tokens"`
}

// NewModelOptions returns defaults.
func NewModelOptions() *ModelOptions {
	return &ModelOptions{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		APIKey:      "${OPENAI_API_KEY}",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// ResolveAPIKey expands a ${VAR} placeholder against the environment.
func (o *ModelOptions) ResolveAPIKey() string {
	key := o.APIKey
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(key, "${"), "}"))
	}
	return key
}

// Validate checks the option values.
func (o *ModelOptions) Validate() []error {
	var errs []error
	switch o.Provider {
	case "openai", "claude", "ollama":
	default:
		errs = append(errs, fmt.Errorf("--models.provider %q must be one of openai, claude, ollama", o.Provider))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("--models.model must not be empty"))
	}
	return errs
}

// AddFlags registers the flags for this group.
func (o *ModelOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Provider, "models.provider", o.Provider,
		"Chat model provider: openai, claude or ollama.")
	fs.StringVar(&o.Model, "models.model", o.Model,
		"Model identifier passed to the provider.")
	fs.StringVar(&o.APIKey, "models.api-key", o.APIKey,
		"API key, or a ${ENV_VAR} placeholder resolved at startup.")
	fs.StringVar(&o.BaseURL, "models.base-url", o.BaseURL,
		"Override the provider endpoint (e.g. an OpenAI-compatible proxy).")
	fs.Float32Var(&o.Temperature, "models.temperature", o.Temperature,
		"Sampling temperature.")
	fs.IntVar(&o.MaxTokens, "models.max-tokens", o.MaxTokens,
		"Maximum completion tokens per call.")
}
