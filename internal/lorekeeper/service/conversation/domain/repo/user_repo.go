package repo

import (
	"context"
)

// UserRepository persists per-user durable state. Fact writes are
// compare-and-set on the full list so concurrent turns from different
// sessions of one user cannot silently drop each other's updates;
// a lost race returns errno.ErrFactsConflict.
type UserRepository interface {
	// EnsureUser creates the user row if absent.
	EnsureUser(ctx context.Context, userID, username string) error

	// LoadFacts returns the user's remembered facts in stored order.
	LoadFacts(ctx context.Context, userID string) ([]string, error)

	// SaveFacts replaces the fact list if it still equals prev.
	SaveFacts(ctx context.Context, userID string, prev, next []string) error
}
