package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
)

// UserStore implements repo.UserRepository in memory.
type UserStore struct {
	mu    sync.Mutex
	facts map[string][]string
	names map[string]string
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		facts: map[string][]string{},
		names: map[string]string{},
	}
}

func (s *UserStore) EnsureUser(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facts[userID]; !ok {
		s.facts[userID] = []string{}
		s.names[userID] = username
	}
	return nil
}

func (s *UserStore) LoadFacts(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	facts, ok := s.facts[userID]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", userID, errno.ErrUserNotFound)
	}
	return append([]string(nil), facts...), nil
}

func (s *UserStore) SaveFacts(_ context.Context, userID string, prev, next []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.facts[userID]
	if !ok {
		return fmt.Errorf("user %q: %w", userID, errno.ErrUserNotFound)
	}
	if !equalFacts(current, prev) {
		return fmt.Errorf("facts of %q: %w", userID, errno.ErrFactsConflict)
	}
	s.facts[userID] = append([]string(nil), next...)
	return nil
}

func equalFacts(a, b []string) bool {
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
