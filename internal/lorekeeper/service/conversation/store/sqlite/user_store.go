package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// UserStore implements repo.UserRepository on SQLite. Remembered facts live
// in a JSON column; writes are compare-and-set on the serialized list so
// concurrent turns from different sessions of one user cannot clobber each
// other.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db.SQL()}
}

func (s *UserStore) EnsureUser(ctx context.Context, userID, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username) VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING`, userID, username)
	if err != nil {
		return fmt.Errorf("ensure user %q: %w", userID, err)
	}
	return nil
}

func (s *UserStore) LoadFacts(ctx context.Context, userID string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT remembered_facts FROM users WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", userID, errno.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load facts of %q: %w", userID, err)
	}

	var facts []string
	if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, fmt.Errorf("decode facts of %q: %w", userID, err)
	}
	return facts, nil
}

func (s *UserStore) SaveFacts(ctx context.Context, userID string, prev, next []string) error {
	prevRaw, err := encodeFacts(prev)
	if err != nil {
		return err
	}
	nextRaw, err := encodeFacts(next)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET remembered_facts = ?
		WHERE user_id = ? AND remembered_facts = ?`,
		nextRaw, userID, prevRaw)
	if err != nil {
		return fmt.Errorf("save facts of %q: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM users WHERE user_id = ?`, userID).Scan(&exists); err == nil && exists == 0 {
			return fmt.Errorf("user %q: %w", userID, errno.ErrUserNotFound)
		}
		return fmt.Errorf("facts of %q: %w", userID, errno.ErrFactsConflict)
	}
	return nil
}

func encodeFacts(facts []string) (string, error) {
	if facts == nil {
		facts = []string{}
	}
	data, err := json.Marshal(facts)
	if err != nil {
		return "", fmt.Errorf("encode facts: %w", err)
	}
	return string(data), nil
}
