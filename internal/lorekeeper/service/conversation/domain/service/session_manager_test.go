package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/llm"
)

func TestAcquireMintsAndCaches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, orch1, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	session, err := env.sessions.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)

	// Same session returns the cached orchestrator.
	again, orch2, err := env.manager.Acquire(ctx, "u1", "ada", sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, again)
	assert.Same(t, orch1, orch2)
}

func TestAcquireForeignSessionLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, _, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	_, _, err = env.manager.Acquire(ctx, "u2", "eve", sessionID)
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)
}

func TestAcquireUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.manager.Acquire(context.Background(), "u1", "ada", "no-such-session")
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)
}

func TestDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.chat.replies = []*llm.Reply{{Content: "noted"}}

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)
	drain(t, orch.ProcessTurn(ctx, "remember this exchange"))

	require.NoError(t, env.manager.Delete(ctx, "u1", sessionID))

	_, err = env.sessions.Get(ctx, sessionID)
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)

	msgs, err := env.messages.ListByStatus(ctx, sessionID, entity.MemoryStatusContextual)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDeleteForeignSessionDenied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, _, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	err = env.manager.Delete(ctx, "u2", sessionID)
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)

	_, err = env.sessions.Get(ctx, sessionID)
	assert.NoError(t, err, "foreign delete must not remove the session")
}

func TestEvictIdle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, _, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	assert.Equal(t, 0, env.manager.EvictIdle(time.Hour))
	assert.Equal(t, 1, env.manager.EvictIdle(0))

	// Eviction only drops the in-memory orchestrator; data survives and the
	// session can be re-acquired.
	again, orch, err := env.manager.Acquire(ctx, "u1", "ada", sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, again)
	assert.NotNil(t, orch)
}

func TestHistoryReturnsChronologicalTranscript(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.chat.replies = []*llm.Reply{{Content: "reply one"}, {Content: "reply two"}}

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)
	drain(t, orch.ProcessTurn(ctx, "message one"))
	drain(t, orch.ProcessTurn(ctx, "message two"))

	history, err := env.manager.History(ctx, "u1", sessionID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "message one", history[0].ContentFull)
	assert.Equal(t, "reply one", history[1].ContentFull)
	assert.Equal(t, "message two", history[2].ContentFull)
	assert.Equal(t, "reply two", history[3].ContentFull)
}
