package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/llm"
)

func TestTierRequestsCoalesceToMax(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	msg, err := env.tiers.StoreTurnMessage(ctx, sessionID, "u1", entity.RoleUser,
		"a detail heavy message about the launch plan", "", "")
	require.NoError(t, err)

	env.chat.replies = []*llm.Reply{
		{Content: fmt.Sprintf("[REQUEST_TIER:2:%s] [REQUEST_TIER:3:%s] checking", msg.ID, msg.ID)},
		{Content: "final answer"},
	}

	drain(t, orch.ProcessTurn(ctx, "what was the plan?"))

	got, err := env.messages.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TierFull, got.RequiredTier, "coalesced upgrade must use the maximum tier")
}

func TestEpisodicSearchDeeperRelaxation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	// The current session has an unrelated archived chunk, so the strict
	// search stays scoped to it and finds nothing.
	require.NoError(t, env.archive.Archive(ctx, &entity.EpisodicChunk{
		ID:        "chunk_own",
		SessionID: sessionID,
		UserID:    "u1",
		CreatedAt: time.Now(),
		RawTurns:  []entity.Turn{{TurnID: "t0", UserInput: "we talked about gardening"}},
	}))

	// The matching chunk lives in a DIFFERENT session: only the deeper pass,
	// which drops the session scope, can find it.
	chunk := &entity.EpisodicChunk{
		ID:        "chunk_other",
		SessionID: "other-session",
		UserID:    "u1",
		CreatedAt: time.Now(),
		RawTurns: []entity.Turn{{
			TurnID:    "t1",
			UserInput: "we compared brokers for the pipeline",
		}},
	}
	require.NoError(t, env.archive.Archive(ctx, chunk))

	env.chat.replies = []*llm.Reply{
		{Content: "[SEARCH_EPISODIC:brokers pipeline] [SEARCH_DEEPER_EPISODIC]"},
		{Content: "You compared brokers for the pipeline."},
	}

	events := drain(t, orch.ProcessTurn(ctx, "what did we compare?"))
	final := terminal(t, events)
	assert.Equal(t, entity.EventFinal, final.Kind)

	var sawEpisodic bool
	for _, ev := range events {
		if ev.Action == entity.ActionEpisodicSearch && ev.Phase == entity.PhaseComplete {
			sawEpisodic = true
		}
	}
	assert.True(t, sawEpisodic)
	assert.Len(t, env.chat.calls(), 2, "episodic hits must trigger a re-run")
}

func TestFetchEpisodeRecallsMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, orch, err := env.manager.Acquire(ctx, "u1", "ada", "")
	require.NoError(t, err)

	// Store a message, archive it manually, then have the model fetch it.
	msg, err := env.tiers.StoreTurnMessage(ctx, sessionID, "u1", entity.RoleUser,
		"the archived secret of the garden", "", "")
	require.NoError(t, err)
	require.NoError(t, env.tiers.ToEpisodic(ctx, []string{msg.ID}))

	chunk := &entity.EpisodicChunk{
		ID:        "chunk_fetch",
		SessionID: sessionID,
		UserID:    "u1",
		CreatedAt: time.Now(),
		RawTurns: []entity.Turn{{
			TurnID:    msg.ID,
			UserInput: "the archived secret of the garden",
		}},
		MessageIDs: []string{msg.ID},
	}
	require.NoError(t, env.archive.Archive(ctx, chunk))

	env.chat.replies = []*llm.Reply{
		{Content: "[FETCH_EPISODE:chunk_fetch]"},
		{Content: "It was about the garden."},
	}

	events := drain(t, orch.ProcessTurn(ctx, "what was that secret?"))
	final := terminal(t, events)
	assert.Contains(t, final.Content, "garden")

	got, err := env.messages.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MemoryStatusContextual, got.MemoryStatus)
	assert.True(t, got.WasRecalled)
	assert.Equal(t, entity.TierFull, got.RequiredTier)

	// The re-run prompt carries the recalled raw turns.
	calls := env.chat.calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1][0].Content, "RECALLED_EPISODE:")
	assert.Contains(t, calls[1][0].Content, "the archived secret of the garden")
}
