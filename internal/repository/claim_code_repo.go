package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"silvery-chat/internal/domain"
)

// ClaimCodeRepository define el contrato de persistencia para códigos de canje.
type ClaimCodeRepository interface {
	GetByCode(ctx context.Context, code string) (domain.ClaimCode, error)
	// Redeem marca el código como canjeado y crea el entitlement en una sola
	// transacción. Devuelve false sin error si otro canje ganó la carrera.
	Redeem(ctx context.Context, code string, ent domain.Entitlement) (bool, error)
	CreateBatch(ctx context.Context, codes []domain.ClaimCode) error
}

type PgClaimCodeRepository struct {
	pool *pgxpool.Pool
}

func NewPgClaimCodeRepository(pool *pgxpool.Pool) *PgClaimCodeRepository {
	return &PgClaimCodeRepository{pool: pool}
}

func (r *PgClaimCodeRepository) GetByCode(ctx context.Context, code string) (domain.ClaimCode, error) {
	const query = `
		SELECT code, is_redeemed, COALESCE(redeemed_by, ''), redeemed_at, created_at
		FROM claim_codes
		WHERE code = $1
	`
	var cc domain.ClaimCode
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&cc.Code,
		&cc.IsRedeemed,
		&cc.RedeemedBy,
		&cc.RedeemedAt,
		&cc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ClaimCode{}, err
	}
	return cc, err
}

func (r *PgClaimCodeRepository) Redeem(ctx context.Context, code string, ent domain.Entitlement) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Compare-and-set: el update solo aplica si el código sigue sin canjear.
	const redeemQuery = `
		UPDATE claim_codes
		SET is_redeemed = TRUE, redeemed_by = $2, redeemed_at = $3
		WHERE code = $1 AND is_redeemed = FALSE
	`
	tag, err := tx.Exec(ctx, redeemQuery, code, ent.UserID, ent.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("redeem code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	const grantQuery = `
		INSERT INTO entitlements (id, user_id, type, active, source, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, grantQuery,
		ent.ID,
		ent.UserID,
		ent.Type,
		ent.Active,
		ent.Source,
		ent.ExpiresAt,
		ent.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("grant entitlement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

func (r *PgClaimCodeRepository) CreateBatch(ctx context.Context, codes []domain.ClaimCode) error {
	if len(codes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO claim_codes (code, is_redeemed, created_at)
		VALUES ($1, FALSE, $2)
	`
	for _, cc := range codes {
		batch.Queue(query, cc.Code, cc.CreatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range codes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert code: %w", err)
		}
	}
	return nil
}
