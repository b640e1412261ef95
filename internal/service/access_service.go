package service

import (
	"context"
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

var (
	ErrAccessInvalidInput = errors.New("access invalid input")
)

// AccessService es el libro mayor de acceso: responde si un usuario puede
// enviar otro mensaje, combinando entitlements y la cuota gratuita.
type AccessService struct {
	entitlements repository.EntitlementRepository
	profiles     repository.ProfileRepository
	logger       *zap.Logger
}

func NewAccessService(
	entitlements repository.EntitlementRepository,
	profiles repository.ProfileRepository,
	logger *zap.Logger,
) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{
		entitlements: entitlements,
		profiles:     profiles,
		logger:       logger,
	}
}

// HasAccess es el predicado puro de acceso: entitlement presente, activo y,
// para tipos con expiración, no vencido.
func HasAccess(ent domain.Entitlement, now time.Time) bool {
	if ent.ID == "" || !ent.Active {
		return false
	}
	if ent.Type == domain.EntitlementSubscriber {
		if ent.ExpiresAt == nil || ent.ExpiresAt.Before(now) {
			return false
		}
	}
	return true
}

// EffectiveEntitlement devuelve el entitlement activo más reciente del
// usuario, aplicando expiración perezosa: un SUBSCRIBER vencido se trata
// como ausente aunque siga marcado activo.
func (s *AccessService) EffectiveEntitlement(ctx context.Context, userID string) (domain.Entitlement, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Entitlement{}, false, ErrAccessInvalidInput
	}

	ent, err := s.entitlements.GetLatestActiveByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entitlement{}, false, nil
	}
	if err != nil {
		return domain.Entitlement{}, false, fmt.Errorf("get entitlement: %w", err)
	}

	if !HasAccess(ent, time.Now().UTC()) {
		return domain.Entitlement{}, false, nil
	}
	return ent, true, nil
}

// FreeUsage devuelve el contador de mensajes gratis del usuario, creando el
// perfil si aún no existe.
func (s *AccessService) FreeUsage(ctx context.Context, userID string) (int, error) {
	if err := s.profiles.Ensure(ctx, userID); err != nil {
		return 0, fmt.Errorf("ensure profile: %w", err)
	}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}
	return profile.FreeMessagesUsed, nil
}

// IncrementFreeUsage delega el incremento atómico al store y devuelve el
// valor nuevo.
func (s *AccessService) IncrementFreeUsage(ctx context.Context, userID string) (int, error) {
	count, err := s.profiles.IncrementFreeUsage(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("increment free usage: %w", err)
	}
	return count, nil
}

// Grant crea un entitlement administrativamente. No resetea el contador de
// mensajes gratis: el acceso pasa a decidirse por el entitlement.
func (s *AccessService) Grant(ctx context.Context, userID, entType, source string, expiresAt *time.Time) (domain.Entitlement, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Entitlement{}, ErrAccessInvalidInput
	}
	if entType != domain.EntitlementLifetime && entType != domain.EntitlementSubscriber {
		return domain.Entitlement{}, ErrAccessInvalidInput
	}

	ent := domain.Entitlement{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      entType,
		Active:    true,
		Source:    source,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.entitlements.Create(ctx, ent); err != nil {
		return domain.Entitlement{}, fmt.Errorf("create entitlement: %w", err)
	}

	s.logger.Info("entitlement granted",
		zap.String("user_id", userID),
		zap.String("type", entType),
		zap.String("source", source),
	)
	return ent, nil
}

// Revoke desactiva un entitlement; las filas nunca se borran.
func (s *AccessService) Revoke(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrAccessInvalidInput
	}
	if err := s.entitlements.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate entitlement: %w", err)
	}
	s.logger.Info("entitlement revoked", zap.String("entitlement_id", id))
	return nil
}
