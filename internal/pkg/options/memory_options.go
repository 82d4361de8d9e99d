package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

// MemoryOptions tunes the tiered conversation memory: the per-prompt context
// budget, the per-session contextual ceiling that triggers pruning, and the
// episodic retrieval knobs.
type MemoryOptions struct {
	ContextTokenBudget  int     `json:"context-token-budget"  mapstructure:"context-token-budget"`
	SessionTokenCeiling int     `json:"session-token-ceiling" mapstructure:"session-token-ceiling"`
	PruneHeadroom       int     `json:"prune-headroom"        mapstructure:"prune-headroom"`
	MinRetainedMessages int     `json:"min-retained-messages" mapstructure:"min-retained-messages"`
	RetrievalLimit      int     `json:"retrieval-limit"       mapstructure:"retrieval-limit"`
	CharsPerToken       float64 `json:"chars-per-token"       mapstructure:"chars-per-token"`
}

// NewMemoryOptions returns defaults.
func NewMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		ContextTokenBudget:  4000,
		SessionTokenCeiling: 30000,
		PruneHeadroom:       5000,
		MinRetainedMessages: 5,
		RetrievalLimit:      5,
		CharsPerToken:       4.0,
	}
}

// Validate checks the option values.
func (o *MemoryOptions) Validate() []error {
	var errs []error
	if o.ContextTokenBudget < 0 {
		errs = append(errs, fmt.Errorf("--memory.context-token-budget must be >= 0"))
	}
	if o.SessionTokenCeiling <= o.PruneHeadroom {
		errs = append(errs, fmt.Errorf("--memory.session-token-ceiling must exceed --memory.prune-headroom"))
	}
	if o.MinRetainedMessages < 1 {
		errs = append(errs, fmt.Errorf("--memory.min-retained-messages must be >= 1"))
	}
	return errs
}

// AddFlags registers the flags for this group.
func (o *MemoryOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.ContextTokenBudget, "memory.context-token-budget", o.ContextTokenBudget,
		"Token budget for the contextual-memory block of each prompt.")
	fs.IntVar(&o.SessionTokenCeiling, "memory.session-token-ceiling", o.SessionTokenCeiling,
		"Contextual token ceiling per session; exceeding it triggers pruning.")
	fs.IntVar(&o.PruneHeadroom, "memory.prune-headroom", o.PruneHeadroom,
		"Extra tokens pruned beyond the ceiling to avoid prune thrashing.")
	fs.IntVar(&o.MinRetainedMessages, "memory.min-retained-messages", o.MinRetainedMessages,
		"Messages always kept contextual regardless of token pressure.")
	fs.IntVar(&o.RetrievalLimit, "memory.retrieval-limit", o.RetrievalLimit,
		"Maximum episodic summaries returned per search.")
	fs.Float64Var(&o.CharsPerToken, "memory.chars-per-token", o.CharsPerToken,
		"Characters-per-token ratio used by the estimator.")
}
