// Package facts is the per-user durable memory: short natural-language
// facts extracted from conversation, with an optional pinned persona fact.
package facts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/repo"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// PersonaPrefix marks the single pinned roleplay fact. When present it is
// always at index 0.
const PersonaPrefix = "CRITICAL_PERSONA:"

// minFactLen rejects empty and near-empty facts.
const minFactLen = 3

// directiveTokenRe strips directive-like bracket tokens that models
// occasionally leak into extracted facts.
var directiveTokenRe = regexp.MustCompile(
	`\[(REQUEST_TIER|SEARCH_EPISODIC|SEARCH_DEEPER_EPISODIC|SEARCH|WEB_SEARCH|FETCH_EPISODE|REMEMBER|FORGET_THIS)[^\]]*\]`)

// Store manages remembered facts per user. Persistence is whole-list
// compare-and-set so concurrent turns from different sessions of one user
// merge instead of clobbering; a lost race is retried with a fresh read.
type Store struct {
	users repo.UserRepository
}

// NewStore creates a Store.
func NewStore(users repo.UserRepository) *Store {
	return &Store{users: users}
}

// Load returns the user's facts in stored order.
func (s *Store) Load(ctx context.Context, userID string) ([]string, error) {
	facts, err := s.users.LoadFacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	return facts, nil
}

// Add sanitizes and merges new facts into the user's list. A persona fact
// replaces any existing persona and is pinned to the front. Duplicates are
// dropped; insertion order is otherwise preserved.
func (s *Store) Add(ctx context.Context, userID string, newFacts ...string) error {
	if len(newFacts) == 0 {
		return nil
	}
	return s.update(ctx, userID, func(current []string) []string {
		return mergeFacts(current, newFacts)
	})
}

// Forget removes every fact whose lowercased form contains pattern.
// It reports whether anything was removed.
func (s *Store) Forget(ctx context.Context, userID, pattern string) (bool, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false, nil
	}

	removed := false
	err := s.update(ctx, userID, func(current []string) []string {
		var kept []string
		for _, f := range current {
			if strings.Contains(strings.ToLower(f), pattern) {
				removed = true
				continue
			}
			kept = append(kept, f)
		}
		return kept
	})
	if err != nil {
		return false, err
	}
	if removed {
		logger.Info("[FactStore] user %s forgot facts matching %q", userID, pattern)
	}
	return removed, nil
}

// Format renders the two-section prompt block: a CRITICAL CONTEXT block for
// the persona (if any), then plain facts as a bullet list. Empty when there
// is nothing to remember.
func Format(facts []string) string {
	if len(facts) == 0 {
		return ""
	}

	var persona string
	var plain []string
	for _, f := range facts {
		if strings.HasPrefix(f, PersonaPrefix) {
			persona = strings.TrimSpace(strings.TrimPrefix(f, PersonaPrefix))
			continue
		}
		plain = append(plain, f)
	}

	var b strings.Builder
	if persona != "" {
		b.WriteString("CRITICAL CONTEXT (absolute requirement, follow without exception):\n")
		b.WriteString(persona)
		b.WriteString("\n")
	}
	if len(plain) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		for _, f := range plain {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// update applies fn to a fresh copy of the fact list and saves it with
// compare-and-set, retrying lost races.
func (s *Store) update(ctx context.Context, userID string, fn func([]string) []string) error {
	for attempt := 0; attempt < 3; attempt++ {
		current, err := s.users.LoadFacts(ctx, userID)
		if err != nil {
			return fmt.Errorf("load facts: %w", err)
		}

		next := fn(append([]string(nil), current...))
		if equalLists(current, next) {
			return nil
		}

		err = s.users.SaveFacts(ctx, userID, current, next)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errno.ErrFactsConflict) {
			return fmt.Errorf("save facts: %w", err)
		}
		logger.Debug("[FactStore] facts of %s changed concurrently, retrying", userID)
	}
	return fmt.Errorf("save facts of %q: %w", userID, errno.ErrFactsConflict)
}

// mergeFacts sanitizes and appends newFacts to current, enforcing the
// single-pinned-persona rule and dropping duplicates.
func mergeFacts(current []string, newFacts []string) []string {
	out := append([]string(nil), current...)

	for _, raw := range newFacts {
		fact := SanitizeFact(raw)
		if fact == "" {
			continue
		}

		if strings.HasPrefix(fact, PersonaPrefix) {
			// A new persona displaces any previous one and moves to front.
			var kept []string
			for _, f := range out {
				if !strings.HasPrefix(f, PersonaPrefix) {
					kept = append(kept, f)
				}
			}
			out = append([]string{fact}, kept...)
			continue
		}

		if containsFact(out, fact) {
			continue
		}
		out = append(out, fact)
	}
	return out
}

// SanitizeFact trims the fact, strips leaked directive tokens and rejects
// near-empty results.
func SanitizeFact(fact string) string {
	fact = directiveTokenRe.ReplaceAllString(fact, "")
	fact = strings.TrimSpace(fact)
	if len(fact) < minFactLen {
		return ""
	}
	return fact
}

func containsFact(facts []string, fact string) bool {
	for _, f := range facts {
		if f == fact {
			return true
		}
	}
	return false
}

func equalLists(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
