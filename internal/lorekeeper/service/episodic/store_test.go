package episodic

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
)

type fixedSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fixedSummarizer) Summarize(_ context.Context, _ *entity.EpisodicChunk) (string, error) {
	f.calls++
	return f.summary, f.err
}

func chunkWith(id, sessionID, userInput, assistantOutput string) *entity.EpisodicChunk {
	return &entity.EpisodicChunk{
		ID:        id,
		SessionID: sessionID,
		UserID:    "u1",
		CreatedAt: time.Now(),
		RawTurns: []entity.Turn{{
			TurnID: "t1",
			// UTC with no monotonic reading: the form a timestamp has after
			// the JSON archive round trip.
			Timestamp:       time.Now().UTC(),
			UserInput:       userInput,
			AssistantOutput: assistantOutput,
		}},
		MessageIDs: []string{"m1", "m2"},
	}
}

func TestArchiveAndFetchRaw(t *testing.T) {
	store := NewStore(t.TempDir(), &fixedSummarizer{summary: "Talked about the Kyoto trip plans."})
	defer store.Close()
	ctx := context.Background()

	chunk := chunkWith("chunk_aa", "s1", "planning my Kyoto trip", "sounds lovely")
	require.NoError(t, store.Archive(ctx, chunk))
	assert.Equal(t, "Talked about the Kyoto trip plans.", chunk.Summary)

	got, err := store.FetchRaw(ctx, "u1", "chunk_aa")
	require.NoError(t, err)
	assert.Equal(t, chunk.RawTurns, got.RawTurns)
	assert.Equal(t, chunk.MessageIDs, got.MessageIDs)
}

func TestArchiveRejectsEmptyChunk(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	defer store.Close()

	err := store.Archive(context.Background(), &entity.EpisodicChunk{ID: "c", SessionID: "s", UserID: "u1"})
	assert.Error(t, err)
}

func TestSummarizerFailureDegradesToPlaceholder(t *testing.T) {
	summarizer := &fixedSummarizer{err: errors.New("model down")}
	store := NewStore(t.TempDir(), summarizer)
	defer store.Close()

	chunk := chunkWith("chunk_bb", "s1", "irrecoverable content words", "reply")
	require.NoError(t, store.Archive(context.Background(), chunk))
	assert.Equal(t, PlaceholderSummary, chunk.Summary)
	assert.Equal(t, 3, summarizer.calls, "summarization retries three times")

	// Still retrievable via raw content.
	hits, err := store.Retrieve(context.Background(), "u1", "irrecoverable content", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk_bb", hits[0].ChunkID)
}

func TestRetrieveScoringAndThresholds(t *testing.T) {
	store := NewStore(t.TempDir(), &fixedSummarizer{summary: "Discussed rust compiler internals and borrow checking."})
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Archive(ctx, chunkWith("chunk_1", "s1", "a", "b")))

	// Two-word query: threshold 0.2; one of two words present = 0.5.
	hits, err := store.Retrieve(ctx, "u1", "rust gardening", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.5, hits[0].Score, 1e-9)

	// No overlap at all: empty slice, not nil, not an error.
	hits, err = store.Retrieve(ctx, "u1", "quantum baking", RetrieveOptions{})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	// Six-word query: threshold 0.1; one of six words present = 0.167, which
	// still passes.
	hits, err = store.Retrieve(ctx, "u1", "rust a b c d e", RetrieveOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRetrieveOrderingAndLimit(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		chunk := chunkWith(fmt.Sprintf("chunk_%d", i), "s1",
			"shared topic words here", "reply")
		chunk.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Archive(ctx, chunk))
	}

	hits, err := store.Retrieve(ctx, "u1", "shared topic", RetrieveOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// Equal scores: most recent first.
	assert.True(t, hits[0].CreatedAt.After(hits[1].CreatedAt))
	assert.True(t, hits[1].CreatedAt.After(hits[2].CreatedAt))
}

func TestRetrieveUnknownSessionFallsBackToAll(t *testing.T) {
	store := NewStore(t.TempDir(), &fixedSummarizer{summary: "Budget planning for the launch."})
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Archive(ctx, chunkWith("chunk_x", "s1", "a", "b")))

	hits, err := store.Retrieve(ctx, "u1", "budget planning", RetrieveOptions{SessionID: "missing-session"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestDeleteSessionRemovesChunks(t *testing.T) {
	store := NewStore(t.TempDir(), &fixedSummarizer{summary: "Session one chatter."})
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Archive(ctx, chunkWith("chunk_d1", "s1", "a", "b")))
	require.NoError(t, store.Archive(ctx, chunkWith("chunk_d2", "s2", "a", "b")))

	require.NoError(t, store.DeleteSession(ctx, "u1", "s1"))

	_, err := store.FetchRaw(ctx, "u1", "chunk_d1")
	assert.ErrorIs(t, err, errno.ErrChunkNotFound)

	_, err = store.FetchRaw(ctx, "u1", "chunk_d2")
	assert.NoError(t, err)
}
