package conversation

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists conversation records with database/sql (pgx driver).
//
// Assumed table:
//   conversations(call_id PK, user_phone, agent_id, outcome, messages JSONB,
//                 duration_seconds, created_at, updated_at)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

var ErrNotFound = errors.New("conversation: not found")

func (r *PostgresStore) CreateConversation(ctx context.Context, callID, userPhone, agentID string) error {
	const q = `
INSERT INTO conversations (call_id, user_phone, agent_id, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (call_id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q, callID, userPhone, agentID)
	return err
}

func (r *PostgresStore) UpdateConversationOutcome(ctx context.Context, callID string, outcome Outcome, messagesJSON string, durationSeconds int) error {
	const q = `
UPDATE conversations
SET outcome = $2, messages = $3, duration_seconds = $4, updated_at = NOW()
WHERE call_id = $1
`
	res, err := r.db.ExecContext(ctx, q, callID, string(outcome), messagesJSON, durationSeconds)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
