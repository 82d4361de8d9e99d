package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// Snapshotter maintains the per-session on-disk mirror: a transcript.json
// with the completed turns and a context.json runtime snapshot. The mirror
// is convenience output for tooling and session reloads; the relational
// store stays authoritative.
type Snapshotter struct {
	baseDir string
}

// NewSnapshotter creates a Snapshotter rooted at baseDir.
func NewSnapshotter(baseDir string) *Snapshotter {
	return &Snapshotter{baseDir: baseDir}
}

type contextSnapshot struct {
	CurrentSummary string    `json:"current_summary"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *Snapshotter) sessionDir(userID, sessionID string) string {
	return filepath.Join(s.baseDir, userID, sessionID)
}

// AppendTurn appends one completed turn to the session transcript.
func (s *Snapshotter) AppendTurn(userID, sessionID string, turn entity.Turn) error {
	dir := s.sessionDir(userID, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	path := filepath.Join(dir, "transcript.json")
	var turns []entity.Turn
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &turns)
	}
	turns = append(turns, turn)

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// SaveContext writes the runtime snapshot.
func (s *Snapshotter) SaveContext(userID, sessionID, summary string) error {
	dir := s.sessionDir(userID, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(contextSnapshot{
		CurrentSummary: summary,
		UpdatedAt:      time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode context snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "context.json"), data, 0644); err != nil {
		return fmt.Errorf("write context snapshot: %w", err)
	}
	return nil
}

// LoadContext restores the runtime snapshot; a missing file yields an empty
// summary.
func (s *Snapshotter) LoadContext(userID, sessionID string) string {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(userID, sessionID), "context.json"))
	if err != nil {
		return ""
	}
	var snap contextSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ""
	}
	return snap.CurrentSummary
}

// DeleteSession removes the session's on-disk mirror.
func (s *Snapshotter) DeleteSession(userID, sessionID string) error {
	if err := os.RemoveAll(s.sessionDir(userID, sessionID)); err != nil {
		return fmt.Errorf("remove session directory: %w", err)
	}
	return nil
}
