package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime/prompt"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/store/inmemory"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/episodic"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/facts"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/llm"
)

// fakeChat scripts Complete replies in order and answers Generate with a
// fixed sentence. An optional gate blocks the first Complete call until
// released, which the serialization test uses.
type fakeChat struct {
	mu            sync.Mutex
	replies       []*llm.Reply
	completeCalls [][]*schema.Message
	gate          chan struct{}
	gated         bool
}

func (f *fakeChat) Complete(ctx context.Context, msgs []*schema.Message) (*llm.Reply, error) {
	f.mu.Lock()
	first := len(f.completeCalls) == 0
	f.completeCalls = append(f.completeCalls, msgs)
	var reply *llm.Reply
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	} else {
		reply = &llm.Reply{Content: "fallback reply"}
	}
	gate := f.gate
	gated := f.gated && first
	f.mu.Unlock()

	if gated {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return reply, nil
}

func (f *fakeChat) Generate(_ context.Context, _ []*schema.Message) (*schema.Message, error) {
	return &schema.Message{Role: schema.Assistant, Content: "A one sentence summary."}, nil
}

func (f *fakeChat) calls() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*schema.Message(nil), f.completeCalls...)
}

// fakeSearch records queries and returns canned results.
type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	result  string
	err     error
}

func (f *fakeSearch) Search(_ context.Context, query string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type testEnv struct {
	manager  *Manager
	messages *inmemory.MessageStore
	sessions *inmemory.SessionStore
	users    *inmemory.UserStore
	tiers    *runtime.TierManager
	archive  *episodic.Store
	facts    *facts.Store
	chat     *fakeChat
	search   *fakeSearch
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	messages := inmemory.NewMessageStore()
	sessions := inmemory.NewSessionStore()
	users := inmemory.NewUserStore()

	estimator := runtime.NewTokenEstimator(4)
	tiers := runtime.NewTierManager(messages)
	archive := episodic.NewStore(t.TempDir(), nil)
	t.Cleanup(archive.Close)

	chat := &fakeChat{}
	search := &fakeSearch{result: "1. Example\n   https://example.com\n   An excerpt."}
	factStore := facts.NewStore(users)

	manager := NewManager(Dependencies{
		Sessions:       sessions,
		Messages:       messages,
		Users:          users,
		Tiers:          tiers,
		ContextBuilder: runtime.NewContextBuilder(estimator, messages, 4000),
		Pruner: runtime.NewMemoryPruner(estimator, messages, tiers, archive,
			runtime.DefaultPrunerConfig()),
		Archive:   archive,
		Facts:     factStore,
		Chat:      chat,
		Search:    search,
		Snapshots: NewSnapshotter(t.TempDir()),
		Pipeline:  prompt.NewDefaultPipeline(),
	}, ManagerConfig{})
	t.Cleanup(manager.Close)

	return &testEnv{
		manager:  manager,
		messages: messages,
		sessions: sessions,
		users:    users,
		tiers:    tiers,
		archive:  archive,
		facts:    factStore,
		chat:     chat,
		search:   search,
	}
}

func drain(t *testing.T, ch <-chan *entity.Event) []*entity.Event {
	t.Helper()
	var events []*entity.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out draining events")
		}
	}
}

func terminal(t *testing.T, events []*entity.Event) *entity.Event {
	t.Helper()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Contains(t, []entity.EventKind{entity.EventFinal, entity.EventError}, last.Kind)
	return last
}

func TestFreshSessionSimpleReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.chat.replies = []*llm.Reply{{Content: "Hello there! How can I help?"}}

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	events := drain(t, orch.ProcessTurn(ctx, "Hello"))
	final := terminal(t, events)
	assert.Equal(t, entity.EventFinal, final.Kind)
	assert.Equal(t, "Hello there! How can I help?", final.Content)
	assert.Equal(t, sessionID, final.SessionID)

	msgs, err := env.messages.ListByStatus(ctx, sessionID, entity.MemoryStatusContextual)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, entity.RoleUser, msgs[0].Role)
	assert.Equal(t, entity.RoleAssistant, msgs[1].Role)
	for _, m := range msgs {
		assert.Equal(t, entity.TierShort, m.RequiredTier)
		assert.Equal(t, entity.MemoryStatusContextual, m.MemoryStatus)
	}
}

func TestTierUpgradeTriggersRerun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	m7, err := env.tiers.StoreTurnMessage(ctx, sessionID, "u1", entity.RoleUser,
		"I live in Kyoto", "", "User lives Kyoto")
	require.NoError(t, err)

	env.chat.replies = []*llm.Reply{
		{Content: fmt.Sprintf("[REQUEST_TIER:3:%s] Let me check.", m7.ID)},
		{Content: "You live in Kyoto."},
	}

	events := drain(t, orch.ProcessTurn(ctx, "Where do I live?"))
	final := terminal(t, events)
	assert.Equal(t, entity.EventFinal, final.Kind)
	assert.Contains(t, final.Content, "Kyoto")

	got, err := env.messages.Get(ctx, m7.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TierFull, got.RequiredTier)

	calls := env.chat.calls()
	require.Len(t, calls, 2, "directive must trigger exactly one re-run")
	// The enriched prompt carries the full tier-3 content.
	assert.Contains(t, calls[1][0].Content, "I live in Kyoto")
}

func TestWebSearchEmitsStatusEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	env.chat.replies = []*llm.Reply{
		{Content: "[SEARCH: weather Paris today]"},
		{Content: "It is sunny in Paris today."},
	}

	events := drain(t, orch.ProcessTurn(ctx, "What's the weather in Paris?"))
	require.GreaterOrEqual(t, len(events), 3)

	assert.Equal(t, entity.EventSystem, events[0].Kind)
	assert.Equal(t, entity.ActionWebSearch, events[0].Action)
	assert.Equal(t, entity.PhaseActive, events[0].Phase)
	assert.Equal(t, "weather Paris today", events[0].Query)

	assert.Equal(t, entity.PhaseComplete, events[1].Phase)
	assert.Equal(t, events[0].ID, events[1].ID)

	final := terminal(t, events)
	assert.Equal(t, entity.EventFinal, final.Kind)
	assert.Contains(t, final.Content, "sunny")

	env.search.mu.Lock()
	defer env.search.mu.Unlock()
	assert.Equal(t, []string{"weather Paris today"}, env.search.queries)
}

func TestWebSearchFailureStillFinalizes(t *testing.T) {
	env := newTestEnv(t)
	env.search.err = fmt.Errorf("upstream down")
	ctx := context.Background()

	_, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	env.chat.replies = []*llm.Reply{
		{Content: "[SEARCH: anything]"},
		{Content: "I couldn't reach the web, but here's what I know."},
	}

	events := drain(t, orch.ProcessTurn(ctx, "look this up"))
	var sawError bool
	for _, ev := range events {
		if ev.Kind == entity.EventSystem && ev.Phase == entity.PhaseError {
			sawError = true
		}
	}
	assert.True(t, sawError, "a failed search must surface a status event")

	final := terminal(t, events)
	assert.Equal(t, entity.EventFinal, final.Kind, "search failure must not fail the turn")
}

func TestForgetCommandShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.EnsureUser(ctx, "u1", "ada"))
	require.NoError(t, env.facts.Add(ctx, "u1", "User lives in Kyoto."))

	_, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	events := drain(t, orch.ProcessTurn(ctx, "forget that I live in Kyoto"))
	final := terminal(t, events)
	assert.Equal(t, entity.EventFinal, final.Kind)
	assert.Contains(t, final.Content, "forgotten")

	assert.Empty(t, env.chat.calls(), "forget commands must not call the model")

	remaining, err := env.facts.Load(ctx, "u1")
	require.NoError(t, err)
	for _, f := range remaining {
		assert.NotContains(t, f, "Kyoto")
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	events := drain(t, orch.ProcessTurn(ctx, "   "))
	final := terminal(t, events)
	assert.Equal(t, entity.EventError, final.Kind)
	assert.Empty(t, env.chat.calls())
}

func TestConcurrentTurnsSerialize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.chat.gate = make(chan struct{})
	env.chat.gated = true
	env.chat.replies = []*llm.Reply{
		{Content: "first reply"},
		{Content: "second reply"},
	}

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	chA := orch.ProcessTurn(ctx, "first message")

	// Wait for turn A to reach the model call.
	require.Eventually(t, func() bool { return len(env.chat.calls()) == 1 },
		2*time.Second, 10*time.Millisecond)

	chB := orch.ProcessTurn(ctx, "second message")

	// Turn B must not reach the model while A holds the session.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, env.chat.calls(), 1)

	close(env.chat.gate)
	eventsA := drain(t, chA)
	eventsB := drain(t, chB)
	assert.Equal(t, "first reply", terminal(t, eventsA).Content)
	assert.Equal(t, "second reply", terminal(t, eventsB).Content)

	// Persisted order equals arrival order.
	msgs, err := env.messages.ListByStatus(ctx, sessionID, entity.MemoryStatusContextual)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "first message", msgs[0].ContentFull)
	assert.Equal(t, "first reply", msgs[1].ContentFull)
	assert.Equal(t, "second message", msgs[2].ContentFull)
	assert.Equal(t, "second reply", msgs[3].ContentFull)
}
