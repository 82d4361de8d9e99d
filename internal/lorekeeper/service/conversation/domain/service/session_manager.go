package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/repo"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime/prompt"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/episodic"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/facts"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/search"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// Dependencies bundles everything an orchestrator needs. The process root
// owns these and hands them to the manager by reference.
type Dependencies struct {
	Sessions       repo.SessionRepository
	Messages       repo.MessageRepository
	Users          repo.UserRepository
	Tiers          *runtime.TierManager
	ContextBuilder *runtime.ContextBuilder
	Pruner         *runtime.MemoryPruner
	Archive        *episodic.Store
	Facts          *facts.Store
	Chat           ChatClient
	Search         search.Gateway
	Snapshots      *Snapshotter
	Pipeline       *prompt.Pipeline
}

// ManagerConfig tunes the session manager.
type ManagerConfig struct {
	// MaxConcurrentPerUser caps simultaneous turns per user.
	MaxConcurrentPerUser int

	// AcquireTimeout is the fail-fast wait for a concurrency slot.
	AcquireTimeout time.Duration

	// IdleTimeout evicts orchestrators idle beyond it.
	IdleTimeout time.Duration

	// MaxActive is the LRU cap on cached orchestrators.
	MaxActive int

	// Orchestrator configures the per-turn behavior.
	Orchestrator OrchestratorConfig
}

func (c *ManagerConfig) applyDefaults() {
	if c.MaxConcurrentPerUser <= 0 {
		c.MaxConcurrentPerUser = 8
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = time.Hour
	}
	if c.MaxActive <= 0 {
		c.MaxActive = 256
	}
	c.Orchestrator.applyDefaults()
}

type managedSession struct {
	orch         *Orchestrator
	userID       string
	lastActivity time.Time
}

// Manager is the factory and cache of orchestrators keyed by session.
// Underlying persistent data is unaffected by cache eviction.
type Manager struct {
	deps Dependencies
	cfg  ManagerConfig

	mu     sync.Mutex
	active map[string]*managedSession
	slots  map[string]chan struct{} // per-user turn semaphores

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts its idle-eviction loop.
func NewManager(deps Dependencies, cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		deps:   deps,
		cfg:    cfg,
		active: map[string]*managedSession{},
		slots:  map[string]chan struct{}{},
		stop:   make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Close stops the eviction loop.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Acquire returns the session's orchestrator, minting a new session when
// sessionID is empty. The orchestrator is cached; a user may hold several
// sessions but each session has at most one orchestrator.
func (m *Manager) Acquire(ctx context.Context, userID, username, sessionID string) (string, *Orchestrator, error) {
	if err := m.deps.Users.EnsureUser(ctx, userID, username); err != nil {
		return "", nil, fmt.Errorf("ensure user: %w", err)
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
		now := time.Now()
		err := m.deps.Sessions.Create(ctx, &entity.Session{
			ID:             sessionID,
			UserID:         userID,
			CreatedAt:      now,
			LastActivityAt: now,
		})
		if err != nil {
			return "", nil, fmt.Errorf("create session: %w", err)
		}
		logger.Info("[SessionManager] minted session %s for user %s", sessionID, userID)
	} else {
		session, err := m.deps.Sessions.Get(ctx, sessionID)
		if err != nil {
			return "", nil, err
		}
		if session.UserID != userID {
			// Foreign sessions are indistinguishable from missing ones.
			return "", nil, fmt.Errorf("session %q: %w", sessionID, errno.ErrSessionNotFound)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.active[sessionID]; ok {
		entry.lastActivity = time.Now()
		return sessionID, entry.orch, nil
	}

	m.evictOverflowLocked()

	orch := m.buildOrchestrator(userID, username, sessionID)
	m.active[sessionID] = &managedSession{
		orch:         orch,
		userID:       userID,
		lastActivity: time.Now(),
	}
	return sessionID, orch, nil
}

// buildOrchestrator wires a new orchestrator for one session.
// Callers hold m.mu.
func (m *Manager) buildOrchestrator(userID, username, sessionID string) *Orchestrator {
	slots, ok := m.slots[userID]
	if !ok {
		slots = make(chan struct{}, m.cfg.MaxConcurrentPerUser)
		m.slots[userID] = slots
	}

	return &Orchestrator{
		userID:         userID,
		username:       username,
		sessionID:      sessionID,
		sessions:       m.deps.Sessions,
		tiers:          m.deps.Tiers,
		contextBuilder: m.deps.ContextBuilder,
		pruner:         m.deps.Pruner,
		codec:          runtime.NewDirectiveCodec(),
		pipeline:       m.deps.Pipeline,
		archive:        m.deps.Archive,
		factStore:      m.deps.Facts,
		chat:           m.deps.Chat,
		searchGW:       m.deps.Search,
		snapshots:      m.deps.Snapshots,
		cfg:            m.cfg.Orchestrator,
		userSlots:      slots,
		slotTimeout:    m.cfg.AcquireTimeout,
		currentSummary: m.deps.Snapshots.LoadContext(userID, sessionID),
	}
}

// EvictIdle drops orchestrators idle beyond maxIdle and returns how many
// were removed.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	evicted := 0
	for id, entry := range m.active {
		if entry.lastActivity.Before(cutoff) {
			delete(m.active, id)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Info("[SessionManager] evicted %d idle orchestrators", evicted)
	}
	return evicted
}

// evictOverflowLocked enforces the LRU size cap. Callers hold m.mu.
func (m *Manager) evictOverflowLocked() {
	if len(m.active) < m.cfg.MaxActive {
		return
	}

	type aged struct {
		id string
		at time.Time
	}
	entries := make([]aged, 0, len(m.active))
	for id, e := range m.active {
		entries = append(entries, aged{id: id, at: e.lastActivity})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	// Drop the oldest tenth so the cap is not hit on every acquire.
	drop := len(m.active) - m.cfg.MaxActive + m.cfg.MaxActive/10 + 1
	for i := 0; i < drop && i < len(entries); i++ {
		delete(m.active, entries[i].id)
	}
	logger.Info("[SessionManager] LRU-evicted %d orchestrators (cap %d)", drop, m.cfg.MaxActive)
}

// Delete tears down the in-memory orchestrator (if any) and removes the
// session's persistent data: messages, session row, episodic archives and
// the on-disk mirror.
func (m *Manager) Delete(ctx context.Context, userID, sessionID string) error {
	session, err := m.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return fmt.Errorf("session %q: %w", sessionID, errno.ErrSessionNotFound)
	}

	m.mu.Lock()
	delete(m.active, sessionID)
	m.mu.Unlock()

	if err := m.deps.Messages.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := m.deps.Archive.DeleteSession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("delete archives: %w", err)
	}
	if err := m.deps.Snapshots.DeleteSession(userID, sessionID); err != nil {
		logger.Warn("[SessionManager] delete session mirror: %v", err)
	}
	if err := m.deps.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	logger.Info("[SessionManager] deleted session %s of user %s", sessionID, userID)
	return nil
}

// ListSessions returns the user's sessions, most recently active first.
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]*entity.Session, error) {
	return m.deps.Sessions.ListByUser(ctx, userID)
}

// History returns the session transcript in chronological order, both
// contextual and episodic messages included.
func (m *Manager) History(ctx context.Context, userID, sessionID string) ([]*entity.Message, error) {
	session, err := m.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("session %q: %w", sessionID, errno.ErrSessionNotFound)
	}

	contextual, err := m.deps.Messages.ListByStatus(ctx, sessionID, entity.MemoryStatusContextual)
	if err != nil {
		return nil, err
	}
	archived, err := m.deps.Messages.ListByStatus(ctx, sessionID, entity.MemoryStatusEpisodic)
	if err != nil {
		return nil, err
	}

	all := append(contextual, archived...)
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	return all, nil
}

// UserFacts returns the user's remembered facts.
func (m *Manager) UserFacts(ctx context.Context, userID string) ([]string, error) {
	return m.deps.Facts.Load(ctx, userID)
}

func (m *Manager) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.EvictIdle(m.cfg.IdleTimeout)
		}
	}
}
