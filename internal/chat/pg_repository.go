package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderType,
		&m.SenderID,
		&m.SenderName,
		&m.Text,
		&m.CreatedAt,
	)
	return m, err
}

func (r *PgRepository) Insert(ctx context.Context, m *Message) error {
	const q = `
		INSERT INTO messages (conversation_id, sender_type, sender_id, sender_name, message_text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING message_id, created_at
	`

	err := r.pool.QueryRow(ctx, q,
		m.ConversationID,
		string(m.SenderType),
		m.SenderID,
		m.SenderName,
		m.Text,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *PgRepository) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	const q = `
		SELECT message_id, conversation_id, sender_type, sender_id, sender_name, message_text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, message_id ASC
	`

	rows, err := r.pool.Query(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}
