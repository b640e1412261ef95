package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"silvery-chat/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error)
	CountByConversationID(ctx context.Context, conversationID string) (int, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.ConversationID,
		message.Role,
		message.Content,
		message.CreatedAt,
	)
	return err
}

func (r *PgMessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		err = rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *PgMessageRepository) CountByConversationID(ctx context.Context, conversationID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`
	var count int
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(&count)
	return count, err
}
