package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"certus/internal/domain"
)

type InstituteService struct {
	Keys   CredentialStore
	Ledger domain.Ledger
}

func NewInstituteService(keys CredentialStore, ledger domain.Ledger) *InstituteService {
	return &InstituteService{Keys: keys, Ledger: ledger}
}

// Register creates the institute's key pair if needed and publishes its
// public key to the ledger.
func (s *InstituteService) Register(ctx context.Context, identity, name string) (*domain.InstituteRecord, error) {
	if s == nil || s.Keys == nil || s.Ledger == nil {
		return nil, errors.New("institute service is not configured")
	}
	identity = strings.TrimSpace(identity)
	if !domain.ValidIdentity(identity) {
		return nil, fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if _, _, err := s.Keys.Ensure(ctx, identity); err != nil {
		return nil, fmt.Errorf("ensure institute keys: %w", err)
	}
	pemText, err := s.Keys.PublicKeyPEM(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := s.Ledger.RegisterInstitute(ctx, identity, name, pemText); err != nil {
		return nil, ledgerError("register institute", err)
	}
	return s.Get(ctx, identity)
}

// Approve marks the institute as verified on the ledger.
func (s *InstituteService) Approve(ctx context.Context, identity string) error {
	if s == nil || s.Ledger == nil {
		return errors.New("institute service is not configured")
	}
	if !domain.ValidIdentity(identity) {
		return fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	return ledgerError("verify institute", s.Ledger.VerifyInstitute(ctx, identity))
}

func (s *InstituteService) Get(ctx context.Context, identity string) (*domain.InstituteRecord, error) {
	if s == nil || s.Ledger == nil {
		return nil, errors.New("institute service is not configured")
	}
	rec, err := s.Ledger.GetInstitute(ctx, identity)
	if err != nil {
		return nil, ledgerError("get institute", err)
	}
	return rec, nil
}

func (s *InstituteService) ExportCredentials(ctx context.Context, identity string) (domain.CredentialBundle, error) {
	if s == nil || s.Keys == nil {
		return domain.CredentialBundle{}, errors.New("institute service is not configured")
	}
	return s.Keys.ExportBundle(ctx, identity)
}

func (s *InstituteService) ImportCredentials(ctx context.Context, bundle domain.CredentialBundle) error {
	if s == nil || s.Keys == nil {
		return errors.New("institute service is not configured")
	}
	return s.Keys.ImportBundle(ctx, bundle)
}
