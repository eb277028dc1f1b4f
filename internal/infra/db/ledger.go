package db

import (
	"context"

	"certus/internal/domain"

	"gorm.io/gorm"
)

// Ledger adapts the postgres repositories to domain.Ledger.
type Ledger struct {
	Certificates *CertificateRepository
	Institutes   *InstituteRepository
}

var _ domain.Ledger = (*Ledger)(nil)

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		Certificates: NewCertificateRepository(db),
		Institutes:   NewInstituteRepository(db),
	}
}

func (l *Ledger) RegisterInstitute(ctx context.Context, identity, name, publicKeyPEM string) error {
	return l.Institutes.Upsert(ctx, identity, name, publicKeyPEM)
}

func (l *Ledger) VerifyInstitute(ctx context.Context, identity string) error {
	return l.Institutes.MarkVerified(ctx, identity)
}

func (l *Ledger) IssueCertificate(ctx context.Context, record domain.CertificateRecord) error {
	return l.Certificates.Create(ctx, record)
}

func (l *Ledger) RevokeCertificate(ctx context.Context, id domain.CertificateID) error {
	return l.Certificates.Revoke(ctx, id)
}

func (l *Ledger) GetCertificate(ctx context.Context, id domain.CertificateID) (*domain.CertificateRecord, error) {
	return l.Certificates.Get(ctx, id)
}

func (l *Ledger) IsRevoked(ctx context.Context, id domain.CertificateID) (bool, error) {
	rec, err := l.Certificates.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.Revoked, nil
}

func (l *Ledger) GetInstitute(ctx context.Context, identity string) (*domain.InstituteRecord, error) {
	return l.Institutes.Get(ctx, identity)
}

func (l *Ledger) ListCertificateIDs(ctx context.Context) ([]domain.CertificateID, error) {
	return l.Certificates.ListIDs(ctx)
}
