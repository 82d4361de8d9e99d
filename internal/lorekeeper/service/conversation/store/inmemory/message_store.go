// Package inmemory implements the conversation repositories in process
// memory. It backs tests and single-shot tooling; entities are deep-copied
// on the way in and out so callers never alias store state.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jinzhu/copier"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
)

// MessageStore implements repo.MessageRepository in memory.
type MessageStore struct {
	mu   sync.RWMutex
	byID map[string]*entity.Message
	seq  map[string]int // insert order tie-breaker for equal timestamps
	next int
}

// NewMessageStore creates an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID: map[string]*entity.Message{},
		seq:  map[string]int{},
	}
}

func (s *MessageStore) Insert(_ context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[msg.ID]; ok {
		return fmt.Errorf("message %q already exists", msg.ID)
	}
	s.byID[msg.ID] = copyMessage(msg)
	s.seq[msg.ID] = s.next
	s.next++
	return nil
}

func (s *MessageStore) Get(_ context.Context, id string) (*entity.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
	}
	return copyMessage(msg), nil
}

func (s *MessageStore) ListContextual(_ context.Context, sessionID string, limit int) ([]*entity.Message, error) {
	msgs := s.collect(sessionID, entity.MemoryStatusContextual)
	// Newest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *MessageStore) ListByStatus(_ context.Context, sessionID string, status entity.MemoryStatus) ([]*entity.Message, error) {
	return s.collect(sessionID, status), nil
}

func (s *MessageStore) UpdateRequiredTier(_ context.Context, id string, tier int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
	}
	if tier < msg.RequiredTier {
		return fmt.Errorf("message %q at tier %d: %w", id, msg.RequiredTier, errno.ErrTierDowngrade)
	}
	msg.RequiredTier = tier
	msg.ImportanceScore++
	return nil
}

func (s *MessageStore) UpdateMemoryStatus(_ context.Context, ids []string, status entity.MemoryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Validate first so the bulk update stays atomic.
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
		}
	}
	for _, id := range ids {
		s.byID[id].MemoryStatus = status
	}
	return nil
}

func (s *MessageStore) UpdateImportance(_ context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
	}
	msg.ImportanceScore += delta
	if msg.ImportanceScore < 0 {
		msg.ImportanceScore = 0
	}
	return nil
}

func (s *MessageStore) MarkRecalled(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
	}
	msg.WasRecalled = true
	if msg.RequiredTier < entity.TierFull {
		msg.RequiredTier = entity.TierFull
	}
	if msg.ImportanceScore < 2 {
		msg.ImportanceScore = 2
	}
	return nil
}

func (s *MessageStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, msg := range s.byID {
		if msg.SessionID == sessionID {
			delete(s.byID, id)
			delete(s.seq, id)
		}
	}
	return nil
}

// collect returns copies in chronological order.
func (s *MessageStore) collect(sessionID string, status entity.MemoryStatus) []*entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []*entity.Message
	for _, msg := range s.byID {
		if msg.SessionID == sessionID && msg.MemoryStatus == status {
			msgs = append(msgs, copyMessage(msg))
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return s.seq[msgs[i].ID] < s.seq[msgs[j].ID]
	})
	return msgs
}

func copyMessage(msg *entity.Message) *entity.Message {
	var cp entity.Message
	_ = copier.Copy(&cp, msg)
	return &cp
}
