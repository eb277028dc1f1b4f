package usecase

import (
	"context"
	"errors"
	"testing"

	"certus/internal/domain"
)

// ownerAuthorizer lets admins act on anything and institutes on their own
// certificates.
type ownerAuthorizer struct{}

func (ownerAuthorizer) Authorize(_ context.Context, s domain.Session, _ string, owner string) error {
	if s.Role == domain.RoleAdmin || (s.Role == domain.RoleInstitute && s.Subject == owner) {
		return nil
	}
	return domain.ErrForbidden
}

func TestRevokeCertificate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rec := h.issue(t, adaFields())
	uc := NewRevokeCertificate(h.ledger, ownerAuthorizer{})

	stranger := domain.Session{Subject: "other@example.org", Role: domain.RoleInstitute}
	if _, err := uc.Execute(ctx, stranger, rec.CertificateID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if revoked, _ := h.ledger.IsRevoked(ctx, rec.CertificateID); revoked {
		t.Fatal("forbidden revoke must not change the ledger")
	}

	owner := domain.Session{Subject: testInstitute, Role: domain.RoleInstitute}
	got, err := uc.Execute(ctx, owner, rec.CertificateID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !got.Revoked {
		t.Fatal("expected revoked record")
	}

	if _, err := uc.Execute(ctx, owner, rec.CertificateID); err != nil {
		t.Fatalf("second revoke should succeed: %v", err)
	}

	res, err := h.verifier.Execute(ctx, rec.CertificateID, "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Verdict != domain.VerdictRevoked {
		t.Fatalf("expected revoked verdict, got %s", res.Verdict)
	}
}

func TestRevokeCertificate_Unknown(t *testing.T) {
	h := newHarness(t)
	uc := NewRevokeCertificate(h.ledger, nil)
	id := h.crypto.DeriveCertificateID(adaFields())
	if _, err := uc.Execute(context.Background(), domain.Session{}, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
