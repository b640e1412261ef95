package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"silvery-chat/internal/domain"
)

type mockClaimCodeRepo struct {
	mu      sync.Mutex
	codes   map[string]*domain.ClaimCode
	granted []domain.Entitlement
	batches [][]domain.ClaimCode
}

func newMockClaimCodeRepo() *mockClaimCodeRepo {
	return &mockClaimCodeRepo{codes: make(map[string]*domain.ClaimCode)}
}

func (m *mockClaimCodeRepo) GetByCode(_ context.Context, code string) (domain.ClaimCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc, ok := m.codes[code]
	if !ok {
		return domain.ClaimCode{}, pgx.ErrNoRows
	}
	return *cc, nil
}

func (m *mockClaimCodeRepo) Redeem(_ context.Context, code string, ent domain.Entitlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc, ok := m.codes[code]
	if !ok || cc.IsRedeemed {
		return false, nil
	}
	now := time.Now().UTC()
	cc.IsRedeemed = true
	cc.RedeemedBy = ent.UserID
	cc.RedeemedAt = &now
	m.granted = append(m.granted, ent)
	return true, nil
}

func (m *mockClaimCodeRepo) CreateBatch(_ context.Context, codes []domain.ClaimCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range codes {
		cc := codes[i]
		m.codes[cc.Code] = &cc
	}
	m.batches = append(m.batches, codes)
	return nil
}

func TestRedeem_NotFound(t *testing.T) {
	svc := NewRedeemService(newMockClaimCodeRepo(), &mockEntitlementRepo{}, nil)

	_, err := svc.Redeem(context.Background(), "u1", "SILVERY-DEADBEEF")
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestRedeem_AlreadyRedeemed(t *testing.T) {
	repo := newMockClaimCodeRepo()
	repo.codes["SILVERY-AAAA1111"] = &domain.ClaimCode{Code: "SILVERY-AAAA1111", IsRedeemed: true}
	svc := NewRedeemService(repo, &mockEntitlementRepo{}, nil)

	_, err := svc.Redeem(context.Background(), "u1", "SILVERY-AAAA1111")
	if !errors.Is(err, ErrCodeAlreadyRedeemed) {
		t.Fatalf("expected ErrCodeAlreadyRedeemed, got %v", err)
	}
}

func TestRedeem_AlreadyEntitled(t *testing.T) {
	repo := newMockClaimCodeRepo()
	repo.codes["SILVERY-AAAA1111"] = &domain.ClaimCode{Code: "SILVERY-AAAA1111"}
	ents := &mockEntitlementRepo{
		hasLatest: true,
		latest:    domain.Entitlement{ID: "e1", Type: domain.EntitlementLifetime, Active: true},
	}
	svc := NewRedeemService(repo, ents, nil)

	_, err := svc.Redeem(context.Background(), "u1", "SILVERY-AAAA1111")
	if !errors.Is(err, ErrAlreadyEntitled) {
		t.Fatalf("expected ErrAlreadyEntitled, got %v", err)
	}
	if code := repo.codes["SILVERY-AAAA1111"]; code.IsRedeemed {
		t.Fatalf("expected code untouched when user already entitled")
	}
}

func TestRedeem_Success(t *testing.T) {
	repo := newMockClaimCodeRepo()
	repo.codes["SILVERY-AAAA1111"] = &domain.ClaimCode{Code: "SILVERY-AAAA1111"}
	svc := NewRedeemService(repo, &mockEntitlementRepo{}, nil)

	ent, err := svc.Redeem(context.Background(), "u1", " SILVERY-AAAA1111 ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ent.Type != domain.EntitlementLifetime || !ent.Active || ent.UserID != "u1" {
		t.Fatalf("unexpected entitlement %+v", ent)
	}
	if ent.Source != sourceClaimCode {
		t.Fatalf("expected source %q, got %q", sourceClaimCode, ent.Source)
	}
	if ent.ExpiresAt != nil {
		t.Fatalf("expected lifetime without expiry")
	}

	cc := repo.codes["SILVERY-AAAA1111"]
	if !cc.IsRedeemed || cc.RedeemedBy != "u1" || cc.RedeemedAt == nil {
		t.Fatalf("expected code marked redeemed with redeemer, got %+v", cc)
	}
}

func TestRedeem_ConcurrentSingleWinner(t *testing.T) {
	repo := newMockClaimCodeRepo()
	repo.codes["SILVERY-AAAA1111"] = &domain.ClaimCode{Code: "SILVERY-AAAA1111"}
	svc := NewRedeemService(repo, &mockEntitlementRepo{}, nil)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Redeem(context.Background(), "u"+string(rune('0'+n)), "SILVERY-AAAA1111")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins, losses := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrCodeAlreadyRedeemed):
			losses++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 || losses != attempts-1 {
		t.Fatalf("expected exactly one winner, got wins=%d losses=%d", wins, losses)
	}
	if len(repo.granted) != 1 {
		t.Fatalf("expected exactly one entitlement granted, got %d", len(repo.granted))
	}
}

func TestRedeem_InvalidInput(t *testing.T) {
	svc := NewRedeemService(newMockClaimCodeRepo(), &mockEntitlementRepo{}, nil)

	if _, err := svc.Redeem(context.Background(), "u1", "  "); !errors.Is(err, ErrRedeemInvalidInput) {
		t.Fatalf("expected ErrRedeemInvalidInput, got %v", err)
	}
	if _, err := svc.Redeem(context.Background(), "", "SILVERY-AAAA1111"); !errors.Is(err, ErrRedeemInvalidInput) {
		t.Fatalf("expected ErrRedeemInvalidInput, got %v", err)
	}
}

func TestGenerateCodes(t *testing.T) {
	repo := newMockClaimCodeRepo()
	svc := NewRedeemService(repo, &mockEntitlementRepo{}, nil)

	codes, err := svc.GenerateCodes(context.Background(), 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(codes) != 5 {
		t.Fatalf("expected 5 codes, got %d", len(codes))
	}

	pattern := regexp.MustCompile(`^SILVERY-[0-9A-F]{8}$`)
	seen := make(map[string]bool)
	for _, cc := range codes {
		if !pattern.MatchString(cc.Code) {
			t.Fatalf("unexpected code format %q", cc.Code)
		}
		if !strings.HasPrefix(cc.Code, codePrefix) {
			t.Fatalf("expected prefix %q, got %q", codePrefix, cc.Code)
		}
		if seen[cc.Code] {
			t.Fatalf("duplicate code %q in batch", cc.Code)
		}
		seen[cc.Code] = true
	}
	if len(repo.batches) != 1 {
		t.Fatalf("expected single batch insert, got %d", len(repo.batches))
	}
}

func TestGenerateCodes_Limits(t *testing.T) {
	svc := NewRedeemService(newMockClaimCodeRepo(), &mockEntitlementRepo{}, nil)

	if _, err := svc.GenerateCodes(context.Background(), 0); !errors.Is(err, ErrRedeemInvalidInput) {
		t.Fatalf("expected ErrRedeemInvalidInput for zero, got %v", err)
	}
	if _, err := svc.GenerateCodes(context.Background(), maxCodesPerBatch+1); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}
