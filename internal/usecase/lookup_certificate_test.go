package usecase

import (
	"context"
	"errors"
	"testing"

	"certus/internal/domain"
)

func TestLookupCertificate_FindByIPFSHash(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rec := h.issue(t, adaFields())

	second := adaFields()
	second.UID = "1002"
	if _, err := h.signer.Issue(ctx, IssueRequest{InstituteEmail: testInstitute, Fields: second, IPFSHash: "QmSecond"}); err != nil {
		t.Fatalf("issue: %v", err)
	}

	uc := &LookupCertificate{Ledger: h.ledger}
	got, err := uc.FindByIPFSHash(ctx, "QmAda")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.CertificateID != rec.CertificateID {
		t.Fatalf("found wrong record %s", got.CertificateID)
	}

	if _, err := uc.FindByIPFSHash(ctx, "QmMissing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.FindByIPFSHash(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLookupCertificate_Get(t *testing.T) {
	h := newHarness(t)
	uc := &LookupCertificate{Ledger: h.ledger}
	if _, err := uc.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.Get(context.Background(), h.crypto.DeriveCertificateID(adaFields())); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
