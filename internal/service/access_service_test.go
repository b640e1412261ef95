package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"silvery-chat/internal/domain"
)

func TestHasAccess(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		ent  domain.Entitlement
		want bool
	}{
		{"absent", domain.Entitlement{}, false},
		{"inactive lifetime", domain.Entitlement{ID: "e1", Type: domain.EntitlementLifetime, Active: false}, false},
		{"active lifetime", domain.Entitlement{ID: "e1", Type: domain.EntitlementLifetime, Active: true}, true},
		{"expired subscriber still active", domain.Entitlement{ID: "e1", Type: domain.EntitlementSubscriber, Active: true, ExpiresAt: &past}, false},
		{"subscriber without expiry", domain.Entitlement{ID: "e1", Type: domain.EntitlementSubscriber, Active: true}, false},
		{"current subscriber", domain.Entitlement{ID: "e1", Type: domain.EntitlementSubscriber, Active: true, ExpiresAt: &future}, true},
	}
	for _, c := range cases {
		if got := HasAccess(c.ent, now); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestEffectiveEntitlement_LazyExpiry(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	repo := &mockEntitlementRepo{
		hasLatest: true,
		latest: domain.Entitlement{
			ID:        "e1",
			UserID:    "u1",
			Type:      domain.EntitlementSubscriber,
			Active:    true,
			ExpiresAt: &past,
		},
	}
	svc := NewAccessService(repo, newMockProfileRepo(), nil)

	_, ok, err := svc.EffectiveEntitlement(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatalf("expected expired subscriber treated as absent")
	}
}

func TestEffectiveEntitlement_NoRows(t *testing.T) {
	svc := NewAccessService(&mockEntitlementRepo{}, newMockProfileRepo(), nil)

	_, ok, err := svc.EffectiveEntitlement(context.Background(), "u1")
	if err != nil || ok {
		t.Fatalf("expected absent without error, got ok=%v err=%v", ok, err)
	}
}

func TestEffectiveEntitlement_InvalidInput(t *testing.T) {
	svc := NewAccessService(&mockEntitlementRepo{}, newMockProfileRepo(), nil)
	if _, _, err := svc.EffectiveEntitlement(context.Background(), "  "); !errors.Is(err, ErrAccessInvalidInput) {
		t.Fatalf("expected ErrAccessInvalidInput, got %v", err)
	}
}

func TestFreeUsage_ProvisionsProfile(t *testing.T) {
	profiles := newMockProfileRepo()
	svc := NewAccessService(&mockEntitlementRepo{}, profiles, nil)

	used, err := svc.FreeUsage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if used != 0 {
		t.Fatalf("expected fresh counter 0, got %d", used)
	}
	if _, ok := profiles.profiles["u1"]; !ok {
		t.Fatalf("expected profile provisioned")
	}
}

func TestIncrementFreeUsage_ReturnsNewCount(t *testing.T) {
	profiles := newMockProfileRepo()
	profiles.profiles["u1"] = &domain.Profile{UserID: "u1", FreeMessagesUsed: 2}
	svc := NewAccessService(&mockEntitlementRepo{}, profiles, nil)

	count, err := svc.IncrementFreeUsage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestGrant_Validation(t *testing.T) {
	svc := NewAccessService(&mockEntitlementRepo{}, newMockProfileRepo(), nil)

	if _, err := svc.Grant(context.Background(), "", domain.EntitlementLifetime, "admin", nil); !errors.Is(err, ErrAccessInvalidInput) {
		t.Fatalf("expected ErrAccessInvalidInput for empty user, got %v", err)
	}
	if _, err := svc.Grant(context.Background(), "u1", "GOLD", "admin", nil); !errors.Is(err, ErrAccessInvalidInput) {
		t.Fatalf("expected ErrAccessInvalidInput for unknown type, got %v", err)
	}
}

func TestGrant_CreatesActiveEntitlement(t *testing.T) {
	repo := &mockEntitlementRepo{}
	svc := NewAccessService(repo, newMockProfileRepo(), nil)

	ent, err := svc.Grant(context.Background(), "u1", domain.EntitlementLifetime, "admin", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ent.ID == "" || !ent.Active || ent.Type != domain.EntitlementLifetime {
		t.Fatalf("unexpected entitlement %+v", ent)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one created entitlement, got %d", len(repo.created))
	}
}

func TestRevoke(t *testing.T) {
	repo := &mockEntitlementRepo{}
	svc := NewAccessService(repo, newMockProfileRepo(), nil)

	if err := svc.Revoke(context.Background(), "e1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(repo.deactivated) != 1 || repo.deactivated[0] != "e1" {
		t.Fatalf("expected deactivation of e1, got %v", repo.deactivated)
	}
	if err := svc.Revoke(context.Background(), " "); !errors.Is(err, ErrAccessInvalidInput) {
		t.Fatalf("expected ErrAccessInvalidInput, got %v", err)
	}
}
