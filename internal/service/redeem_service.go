package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"silvery-chat/internal/domain"
	"silvery-chat/internal/repository"
)

const (
	codePrefix       = "SILVERY-"
	codeSuffixBytes  = 4 // 8 caracteres hex
	maxCodesPerBatch = 100

	sourceClaimCode = "claim_code"
)

var (
	ErrCodeNotFound        = errors.New("claim code not found")
	ErrCodeAlreadyRedeemed = errors.New("claim code already redeemed")
	ErrAlreadyEntitled     = errors.New("user already entitled")
	ErrRedeemInvalidInput  = errors.New("redeem invalid input")
	ErrBatchTooLarge       = errors.New("code batch too large")
)

// RedeemService valida y consume códigos de un solo uso, convirtiéndolos en
// un entitlement vitalicio.
type RedeemService struct {
	codes        repository.ClaimCodeRepository
	entitlements repository.EntitlementRepository
	logger       *zap.Logger
}

func NewRedeemService(
	codes repository.ClaimCodeRepository,
	entitlements repository.EntitlementRepository,
	logger *zap.Logger,
) *RedeemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedeemService{
		codes:        codes,
		entitlements: entitlements,
		logger:       logger,
	}
}

// Redeem canjea un código para el usuario. Dos canjes concurrentes del mismo
// código resultan en exactamente un éxito: el update condicionado en el store
// decide la carrera, no esta capa.
func (s *RedeemService) Redeem(ctx context.Context, userID, code string) (domain.Entitlement, error) {
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return domain.Entitlement{}, ErrRedeemInvalidInput
	}

	cc, err := s.codes.GetByCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entitlement{}, ErrCodeNotFound
	}
	if err != nil {
		return domain.Entitlement{}, fmt.Errorf("get code: %w", err)
	}
	if cc.IsRedeemed {
		return domain.Entitlement{}, ErrCodeAlreadyRedeemed
	}

	existing, err := s.entitlements.GetLatestActiveByUserID(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.Entitlement{}, fmt.Errorf("check entitlement: %w", err)
	}
	if err == nil && existing.Type == domain.EntitlementLifetime && existing.Active {
		return domain.Entitlement{}, ErrAlreadyEntitled
	}

	ent := domain.Entitlement{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      domain.EntitlementLifetime,
		Active:    true,
		Source:    sourceClaimCode,
		CreatedAt: time.Now().UTC(),
	}

	ok, err := s.codes.Redeem(ctx, code, ent)
	if err != nil {
		return domain.Entitlement{}, fmt.Errorf("redeem: %w", err)
	}
	if !ok {
		// Perdimos la carrera contra otro canje concurrente.
		return domain.Entitlement{}, ErrCodeAlreadyRedeemed
	}

	s.logger.Info("claim code redeemed",
		zap.String("user_id", userID),
		zap.String("code", code),
	)
	return ent, nil
}

// GenerateCodes crea un lote de hasta maxCodesPerBatch códigos en una sola
// inserción. Operación administrativa.
func (s *RedeemService) GenerateCodes(ctx context.Context, n int) ([]domain.ClaimCode, error) {
	if n <= 0 {
		return nil, ErrRedeemInvalidInput
	}
	if n > maxCodesPerBatch {
		return nil, ErrBatchTooLarge
	}

	now := time.Now().UTC()
	codes := make([]domain.ClaimCode, 0, n)
	for i := 0; i < n; i++ {
		suffix, err := randomCodeSuffix()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		codes = append(codes, domain.ClaimCode{
			Code:      codePrefix + suffix,
			CreatedAt: now,
		})
	}

	if err := s.codes.CreateBatch(ctx, codes); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.logger.Info("claim codes generated", zap.Int("count", n))
	return codes, nil
}

func randomCodeSuffix() (string, error) {
	buf := make([]byte, codeSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
