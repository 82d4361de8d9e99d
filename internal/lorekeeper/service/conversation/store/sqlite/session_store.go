package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
)

// SessionStore implements repo.SessionRepository on SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db.SQL()}
}

func (s *SessionStore) Create(ctx context.Context, session *entity.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, title, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Title, session.CreatedAt, session.LastActivityAt)
	if err != nil {
		return fmt.Errorf("insert session %q: %w", session.ID, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*entity.Session, error) {
	var session entity.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, title, created_at, last_activity_at
		FROM sessions WHERE session_id = ?`, id).
		Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", id, errno.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}
	return &session, nil
}

func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]*entity.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_id, title, created_at, last_activity_at
		FROM sessions WHERE user_id = ?
		ORDER BY last_activity_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions of user %q: %w", userID, err)
	}
	defer rows.Close()

	var sessions []*entity.Session
	for rows.Next() {
		var session entity.Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.Title,
			&session.CreatedAt, &session.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

func (s *SessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ? WHERE session_id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch session %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %q: %w", id, errno.ErrSessionNotFound)
	}
	return nil
}

func (s *SessionStore) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ? WHERE session_id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("retitle session %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %q: %w", id, errno.ErrSessionNotFound)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session %q: %w", id, err)
	}
	return nil
}
