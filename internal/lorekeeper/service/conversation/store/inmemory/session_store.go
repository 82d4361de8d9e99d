package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
)

// SessionStore implements repo.SessionRepository in memory.
type SessionStore struct {
	mu   sync.RWMutex
	byID map[string]*entity.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{byID: map[string]*entity.Session{}}
}

func (s *SessionStore) Create(_ context.Context, session *entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[session.ID]; ok {
		return fmt.Errorf("session %q already exists", session.ID)
	}
	s.byID[session.ID] = copySession(session)
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, errno.ErrSessionNotFound)
	}
	return copySession(session), nil
}

func (s *SessionStore) ListByUser(_ context.Context, userID string) ([]*entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*entity.Session
	for _, session := range s.byID {
		if session.UserID == userID {
			sessions = append(sessions, copySession(session))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivityAt.After(sessions[j].LastActivityAt)
	})
	return sessions, nil
}

func (s *SessionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, errno.ErrSessionNotFound)
	}
	session.LastActivityAt = at
	return nil
}

func (s *SessionStore) UpdateTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, errno.ErrSessionNotFound)
	}
	session.Title = title
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func copySession(session *entity.Session) *entity.Session {
	var cp entity.Session
	_ = copier.CopyWithOption(&cp, session, copier.Option{DeepCopy: true})
	return &cp
}
