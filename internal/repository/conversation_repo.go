package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"silvery-chat/internal/domain"
)

// ConversationRepository define el contrato de persistencia para conversaciones.
// El borrado es lógico: SoftDelete marca deleted_at y los listados lo excluyen.
type ConversationRepository interface {
	Create(ctx context.Context, conv domain.Conversation) error
	Ensure(ctx context.Context, id, userID string) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.Conversation, error)
	SetTitle(ctx context.Context, id, title string) error
	Touch(ctx context.Context, id string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, conv domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	return err
}

// Ensure crea la fila si no existe; idempotente para ids elegidos por el cliente.
func (r *PgConversationRepository) Ensure(ctx context.Context, id, userID string) error {
	const query = `
		INSERT INTO conversations (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, id, userID)
	return err
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	const query = `
		SELECT id, user_id, COALESCE(title, ''), created_at, updated_at, deleted_at
		FROM conversations
		WHERE id = $1
	`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, err
	}
	return conv, err
}

func (r *PgConversationRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
		SELECT id, user_id, COALESCE(title, ''), created_at, updated_at, deleted_at
		FROM conversations
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		err = rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
			&conv.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return convs, nil
}

func (r *PgConversationRepository) SetTitle(ctx context.Context, id, title string) error {
	const query = `UPDATE conversations SET title = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, title)
	return err
}

func (r *PgConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

func (r *PgConversationRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE conversations SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}
