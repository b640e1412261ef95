package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"silvery-chat/internal/domain"
)

// ProfileRepository define el contrato de persistencia para perfiles.
type ProfileRepository interface {
	Ensure(ctx context.Context, userID string) error
	GetByUserID(ctx context.Context, userID string) (domain.Profile, error)
	// IncrementFreeUsage suma uno al contador en el store y devuelve el valor
	// nuevo. El incremento es atómico: sin read-modify-write en la aplicación.
	IncrementFreeUsage(ctx context.Context, userID string) (int, error)
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

func (r *PgProfileRepository) Ensure(ctx context.Context, userID string) error {
	const query = `
		INSERT INTO profiles (user_id, free_messages_used, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *PgProfileRepository) GetByUserID(ctx context.Context, userID string) (domain.Profile, error) {
	const query = `
		SELECT user_id, COALESCE(display_name, ''), free_messages_used, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.DisplayName,
		&p.FreeMessagesUsed,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, err
	}
	return p, err
}

func (r *PgProfileRepository) IncrementFreeUsage(ctx context.Context, userID string) (int, error) {
	const query = `
		UPDATE profiles
		SET free_messages_used = free_messages_used + 1, updated_at = NOW()
		WHERE user_id = $1
		RETURNING free_messages_used
	`
	var count int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}
