// Package episodic is the append-only archive of pruned conversation
// chunks. Raw turns are persisted as JSON files under the per-user data
// tree; a per-user BoltDB indexes the generated summaries for keyword
// retrieval. Index writes are serialized by the Bolt handle.
package episodic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/boltdb/bolt"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/pkg/logger"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// PlaceholderSummary marks chunks whose summarization failed. Such chunks
// stay retrievable through their raw content.
const PlaceholderSummary = "[Summary unavailable - archived conversation]"

// rawPreviewLimit bounds the raw-content excerpt kept in the index for
// fallback scoring of placeholder-summary chunks.
const rawPreviewLimit = 2000

var bucketSummaries = []byte("summaries")

// Summarizer produces the 3-5 sentence chunk summary. The LLM-backed
// implementation lives in this package; tests inject fakes.
type Summarizer interface {
	Summarize(ctx context.Context, chunk *entity.EpisodicChunk) (string, error)
}

// Store is the episodic archive for all users.
type Store struct {
	baseDir    string
	summarizer Summarizer

	mu      sync.Mutex
	indexes map[string]*bolt.DB // user id -> index handle
}

// NewStore creates a Store rooted at baseDir. summarizer may be nil, in
// which case every chunk gets the placeholder summary.
func NewStore(baseDir string, summarizer Summarizer) *Store {
	return &Store{
		baseDir:    baseDir,
		summarizer: summarizer,
		indexes:    map[string]*bolt.DB{},
	}
}

// Close closes all open index handles.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, db := range s.indexes {
		if err := db.Close(); err != nil {
			logger.Warn("[EpisodicStore] close index of %s: %v", userID, err)
		}
		delete(s.indexes, userID)
	}
}

// indexEntry is the value stored per chunk in the summary index.
type indexEntry struct {
	ChunkID     string    `json:"chunk_id"`
	SessionID   string    `json:"session_id"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
	ArchivePath string    `json:"archive_path"`
	RawPreview  string    `json:"raw_preview"`
}

// Archive persists the chunk's raw turns, generates its summary (with retry
// and backoff), and indexes it. Summary failure degrades to the placeholder;
// archival itself still succeeds.
func (s *Store) Archive(ctx context.Context, chunk *entity.EpisodicChunk) error {
	if len(chunk.RawTurns) == 0 {
		return fmt.Errorf("chunk %q has no turns", chunk.ID)
	}

	archivePath := s.archivePath(chunk.UserID, chunk.SessionID, chunk.ID)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	data, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk %q: %w", chunk.ID, err)
	}
	if err := os.WriteFile(archivePath, data, 0644); err != nil {
		return fmt.Errorf("write chunk %q: %w", chunk.ID, err)
	}

	chunk.Summary = s.summarize(ctx, chunk)

	raw := chunk.RawText()
	if len(raw) > rawPreviewLimit {
		raw = raw[:rawPreviewLimit]
	}
	entry := indexEntry{
		ChunkID:     chunk.ID,
		SessionID:   chunk.SessionID,
		Summary:     chunk.Summary,
		CreatedAt:   chunk.CreatedAt,
		ArchivePath: archivePath,
		RawPreview:  raw,
	}
	if err := s.putIndexEntry(chunk.UserID, entry); err != nil {
		return fmt.Errorf("index chunk %q: %w", chunk.ID, err)
	}

	logger.Info("[EpisodicStore] archived chunk %s (%d turns) for session %s",
		chunk.ID, len(chunk.RawTurns), chunk.SessionID)
	return nil
}

// summarize runs the summarizer with up to three attempts and exponential
// backoff, degrading to the placeholder on exhaustion.
func (s *Store) summarize(ctx context.Context, chunk *entity.EpisodicChunk) string {
	if s.summarizer == nil {
		return PlaceholderSummary
	}

	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= 3; attempt++ {
		summary, err := s.summarizer.Summarize(ctx, chunk)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		logger.Warn("[EpisodicStore] summarize chunk %s attempt %d/3 failed: %v", chunk.ID, attempt, err)

		select {
		case <-ctx.Done():
			return PlaceholderSummary
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return PlaceholderSummary
}

// FetchRaw loads the full raw turns of one chunk.
func (s *Store) FetchRaw(_ context.Context, userID, chunkID string) (*entity.EpisodicChunk, error) {
	entry, err := s.findEntry(userID, chunkID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(entry.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("read archive of chunk %q: %w", chunkID, err)
	}
	var chunk entity.EpisodicChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("decode archive of chunk %q: %w", chunkID, err)
	}
	return &chunk, nil
}

// DeleteSession removes the session's archive files and index entries.
func (s *Store) DeleteSession(_ context.Context, userID, sessionID string) error {
	db, err := s.index(userID)
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSummaries)
		c := b.Cursor()
		prefix := []byte(sessionID + "/")
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var entry indexEntry
			if err := json.Unmarshal(v, &entry); err == nil {
				if err := os.Remove(entry.ArchivePath); err != nil && !os.IsNotExist(err) {
					logger.Warn("[EpisodicStore] remove archive %s: %v", entry.ArchivePath, err)
				}
			}
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %q archives: %w", sessionID, err)
	}
	return nil
}

func (s *Store) archivePath(userID, sessionID, chunkID string) string {
	return filepath.Join(s.baseDir, userID, "episodic", "archive",
		fmt.Sprintf("%s_%s.json", sessionID, chunkID))
}

func (s *Store) putIndexEntry(userID string, entry indexEntry) error {
	db, err := s.index(userID)
	if err != nil {
		return err
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode index entry: %w", err)
	}
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSummaries).Put([]byte(entry.SessionID+"/"+entry.ChunkID), value)
	})
}

func (s *Store) findEntry(userID, chunkID string) (*indexEntry, error) {
	db, err := s.index(userID)
	if err != nil {
		return nil, err
	}

	var found *indexEntry
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSummaries).ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			if strings.HasSuffix(string(k), "/"+chunkID) {
				var entry indexEntry
				if err := json.Unmarshal(v, &entry); err != nil {
					return err
				}
				found = &entry
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan index of %q: %w", userID, err)
	}
	if found == nil {
		return nil, fmt.Errorf("chunk %q: %w", chunkID, errno.ErrChunkNotFound)
	}
	return found, nil
}

// index returns (opening on first use) the user's index handle.
func (s *Store) index(userID string) (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.indexes[userID]; ok {
		return db, nil
	}

	path := filepath.Join(s.baseDir, userID, "episodic", "index.db")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open summary index of %q: %w", userID, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSummaries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create summary bucket: %w", err)
	}
	s.indexes[userID] = db
	return db, nil
}
