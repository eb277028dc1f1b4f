package usecase

import (
	"context"
	"errors"
	"fmt"

	"certus/internal/domain"
)

type RevokeCertificate struct {
	Ledger domain.Ledger
	Authz  domain.Authorizer
}

func NewRevokeCertificate(ledger domain.Ledger, authz domain.Authorizer) *RevokeCertificate {
	return &RevokeCertificate{Ledger: ledger, Authz: authz}
}

// Execute revokes id on behalf of session. Revocation cannot be undone.
func (uc *RevokeCertificate) Execute(ctx context.Context, session domain.Session, id domain.CertificateID) (*domain.CertificateRecord, error) {
	if uc == nil || uc.Ledger == nil {
		return nil, errors.New("revocation ledger is required")
	}
	if !domain.ValidCertificateID(string(id)) {
		return nil, fmt.Errorf("%w: certificate_id must be 64 lowercase hex characters", domain.ErrInvalidInput)
	}
	record, err := uc.Ledger.GetCertificate(ctx, id)
	if err != nil {
		return nil, ledgerError("get certificate", err)
	}
	if uc.Authz != nil {
		if err := uc.Authz.Authorize(ctx, session, domain.ActionRevokeCertificate, record.InstituteEmail); err != nil {
			return nil, err
		}
	}
	if record.Revoked {
		return record, nil
	}
	if err := uc.Ledger.RevokeCertificate(ctx, id); err != nil {
		return nil, ledgerError("revoke certificate", err)
	}
	record.Revoked = true
	return record, nil
}
