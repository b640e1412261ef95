package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConfigRepository lee el store clave→valor de configuración dinámica.
type ConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
}

type PgConfigRepository struct {
	pool *pgxpool.Pool
}

func NewPgConfigRepository(pool *pgxpool.Pool) *PgConfigRepository {
	return &PgConfigRepository{pool: pool}
}

func (r *PgConfigRepository) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM config WHERE key = $1`
	var value string
	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	return value, err
}
