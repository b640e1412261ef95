package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"silvery-chat/internal/domain"
)

// EntitlementRepository define el contrato de persistencia para entitlements.
// Las filas nunca se borran: Deactivate marca active=false.
type EntitlementRepository interface {
	Create(ctx context.Context, ent domain.Entitlement) error
	GetLatestActiveByUserID(ctx context.Context, userID string) (domain.Entitlement, error)
	Deactivate(ctx context.Context, id string) error
}

type PgEntitlementRepository struct {
	pool *pgxpool.Pool
}

func NewPgEntitlementRepository(pool *pgxpool.Pool) *PgEntitlementRepository {
	return &PgEntitlementRepository{pool: pool}
}

func (r *PgEntitlementRepository) Create(ctx context.Context, ent domain.Entitlement) error {
	const query = `
		INSERT INTO entitlements (id, user_id, type, active, source, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		ent.ID,
		ent.UserID,
		ent.Type,
		ent.Active,
		ent.Source,
		ent.ExpiresAt,
		ent.CreatedAt,
	)
	return err
}

// GetLatestActiveByUserID devuelve el entitlement activo más reciente del
// usuario. La expiración no se evalúa aquí: el predicado de acceso la
// verifica en cada lectura (expiración perezosa).
func (r *PgEntitlementRepository) GetLatestActiveByUserID(ctx context.Context, userID string) (domain.Entitlement, error) {
	const query = `
		SELECT id, user_id, type, active, source, expires_at, created_at
		FROM entitlements
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`
	var ent domain.Entitlement
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&ent.ID,
		&ent.UserID,
		&ent.Type,
		&ent.Active,
		&ent.Source,
		&ent.ExpiresAt,
		&ent.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entitlement{}, err
	}
	return ent, err
}

func (r *PgEntitlementRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE entitlements SET active = FALSE WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
