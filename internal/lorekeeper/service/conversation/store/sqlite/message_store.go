package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
)

// MessageStore implements repo.MessageRepository on SQLite.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a MessageStore.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db.SQL()}
}

const messageColumns = `id, session_id, user_id, role, timestamp,
	content_full, content_medium, content_short,
	required_tier, memory_status, importance_score, was_recalled`

func (s *MessageStore) Insert(ctx context.Context, msg *entity.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.UserID, string(msg.Role), msg.Timestamp,
		msg.ContentFull, msg.ContentMedium, msg.ContentShort,
		msg.RequiredTier, string(msg.MemoryStatus), msg.ImportanceScore, msg.WasRecalled,
	)
	if err != nil {
		return fmt.Errorf("insert message %q: %w", msg.ID, err)
	}
	return nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (*entity.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message %q: %w", id, err)
	}
	return msg, nil
}

func (s *MessageStore) ListContextual(ctx context.Context, sessionID string, limit int) ([]*entity.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE session_id = ? AND memory_status = 'contextual'
		ORDER BY timestamp DESC, id DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryMessages(ctx, query, args...)
}

func (s *MessageStore) ListByStatus(ctx context.Context, sessionID string, status entity.MemoryStatus) ([]*entity.Message, error) {
	return s.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE session_id = ? AND memory_status = ?
		ORDER BY timestamp ASC, id ASC`, sessionID, string(status))
}

func (s *MessageStore) UpdateRequiredTier(ctx context.Context, id string, tier int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET required_tier = ?,
			importance_score = importance_score + 1
		WHERE id = ? AND required_tier <= ?`, tier, id, tier)
	if err != nil {
		return fmt.Errorf("update tier of %q: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Either missing or a downgrade attempt; distinguish them.
		var current int
		err := s.db.QueryRowContext(ctx, `SELECT required_tier FROM messages WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
		}
		if err != nil {
			return fmt.Errorf("update tier of %q: %w", id, err)
		}
		return fmt.Errorf("message %q at tier %d: %w", id, current, errno.ErrTierDowngrade)
	}
	return nil
}

func (s *MessageStore) UpdateMemoryStatus(ctx context.Context, ids []string, status entity.MemoryStatus) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status transition: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE messages SET memory_status = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare status transition: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, string(status), id)
		if err != nil {
			return fmt.Errorf("transition %q: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
		}
	}
	return tx.Commit()
}

func (s *MessageStore) UpdateImportance(ctx context.Context, id string, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET importance_score = MAX(0, importance_score + ?) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("update importance of %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
	}
	return nil
}

func (s *MessageStore) MarkRecalled(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET was_recalled = 1,
			required_tier = MAX(required_tier, ?),
			importance_score = MAX(importance_score, 2)
		WHERE id = ?`,
		entity.TierFull, id)
	if err != nil {
		return fmt.Errorf("mark recalled %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %q: %w", id, errno.ErrMessageNotFound)
	}
	return nil
}

func (s *MessageStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages of session %q: %w", sessionID, err)
	}
	return nil
}

func (s *MessageStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*entity.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*entity.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*entity.Message, error) {
	var (
		msg    entity.Message
		role   string
		status string
	)
	err := row.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &role, &msg.Timestamp,
		&msg.ContentFull, &msg.ContentMedium, &msg.ContentShort,
		&msg.RequiredTier, &status, &msg.ImportanceScore, &msg.WasRecalled)
	if err != nil {
		return nil, err
	}
	msg.Role = entity.Role(role)
	msg.MemoryStatus = entity.MemoryStatus(status)
	return &msg, nil
}
