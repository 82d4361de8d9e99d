package prompt

import (
	"context"
	"fmt"
	"strings"
)

// Section priorities. Order matters: instructions first, cap last.
const (
	PriorityInstructions     = 10
	PriorityContextualMemory = 20
	PrioritySessionSummary   = 30
	PriorityEpisodicRecall   = 40
	PriorityWebSearch        = 50
	PriorityRememberThis     = 60
	PriorityTierAuthority    = 70
)

// defaultInstructions is the base instruction block. A workspace override
// named "instructions" replaces it (see WorkspaceLoader).
const defaultInstructions = `You are a helpful conversational assistant with tiered long-term memory.
Answer naturally and directly. When the provided history lacks detail you
need, use the memory directives described in the MEMORY SYSTEM block instead
of guessing. When a CRITICAL CONTEXT persona is present you must stay in that
persona for the entire conversation until explicitly told to stop.`

// InstructionsSection renders the base instruction block.
type InstructionsSection struct {
	// Override replaces the default text when non-empty. The workspace
	// loader sets it from prompts/instructions.md.
	Override string
}

func (s *InstructionsSection) Name() string  { return "instructions" }
func (s *InstructionsSection) Priority() int { return PriorityInstructions }

func (s *InstructionsSection) Render(_ context.Context, pc *PromptContext) (string, error) {
	text := defaultInstructions
	if s.Override != "" {
		text = s.Override
	}
	if !pc.Now.IsZero() {
		text = fmt.Sprintf("Current time: %s\n\n%s", pc.Now.Format("2006-01-02 15:04:05"), text)
	}
	return text, nil
}

// ContextualMemorySection renders the tiered context block.
type ContextualMemorySection struct{}

func (s *ContextualMemorySection) Name() string  { return "contextual_memory" }
func (s *ContextualMemorySection) Priority() int { return PriorityContextualMemory }

func (s *ContextualMemorySection) Render(_ context.Context, pc *PromptContext) (string, error) {
	if pc.ContextBlock == "" {
		return "", nil
	}
	return "CONTEXTUAL_MEMORY:\n" + pc.ContextBlock, nil
}

// SessionSummarySection renders the rolling session summary.
type SessionSummarySection struct{}

func (s *SessionSummarySection) Name() string  { return "session_summary" }
func (s *SessionSummarySection) Priority() int { return PrioritySessionSummary }

func (s *SessionSummarySection) Render(_ context.Context, pc *PromptContext) (string, error) {
	if strings.TrimSpace(pc.Summary) == "" {
		return "", nil
	}
	return "CURRENT_CONTEXT_SUMMARY:\n" + pc.Summary, nil
}

// EpisodicRecallSection lists relevant archived-conversation summaries.
type EpisodicRecallSection struct{}

func (s *EpisodicRecallSection) Name() string  { return "episodic_recall" }
func (s *EpisodicRecallSection) Priority() int { return PriorityEpisodicRecall }

func (s *EpisodicRecallSection) Render(_ context.Context, pc *PromptContext) (string, error) {
	if len(pc.EpisodicSummaries) == 0 {
		return "", nil
	}
	lines := make([]string, 0, len(pc.EpisodicSummaries))
	for _, sum := range pc.EpisodicSummaries {
		lines = append(lines, "- "+sum)
	}
	return "RELATED_PAST_CONVERSATIONS:\n" + strings.Join(lines, "\n"), nil
}

// WebSearchSection renders web search output when a search ran this turn.
type WebSearchSection struct{}

func (s *WebSearchSection) Name() string  { return "web_search" }
func (s *WebSearchSection) Priority() int { return PriorityWebSearch }

func (s *WebSearchSection) Render(_ context.Context, pc *PromptContext) (string, error) {
	if pc.WebResults == "" {
		return "", nil
	}
	return "WEB_SEARCH_RESULTS:\n" + pc.WebResults, nil
}

// RememberThisSection renders the durable user facts.
type RememberThisSection struct{}

func (s *RememberThisSection) Name() string  { return "remember_this" }
func (s *RememberThisSection) Priority() int { return PriorityRememberThis }

func (s *RememberThisSection) Render(_ context.Context, pc *PromptContext) (string, error) {
	if pc.FactsBlock == "" {
		return "", nil
	}
	return "REMEMBER_THIS:\n" + pc.FactsBlock, nil
}

// TierAuthoritySection closes the prompt with the authority reminder.
type TierAuthoritySection struct{}

func (s *TierAuthoritySection) Name() string  { return "tier_authority" }
func (s *TierAuthoritySection) Priority() int { return PriorityTierAuthority }

func (s *TierAuthoritySection) Render(_ context.Context, _ *PromptContext) (string, error) {
	return "Tier-upgraded message content above is authoritative; prefer it over " +
		"terser summaries of the same message.", nil
}
