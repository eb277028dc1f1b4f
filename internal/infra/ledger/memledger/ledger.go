package memledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"certus/internal/domain"
)

// Ledger is an in-process ledger with the same semantics as the durable
// backends. It is meant for tests and single-process development.
type Ledger struct {
	mu           sync.RWMutex
	now          func() time.Time
	certificates map[domain.CertificateID]domain.CertificateRecord
	order        []domain.CertificateID
	institutes   map[string]domain.InstituteRecord
}

var _ domain.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		now:          now,
		certificates: make(map[domain.CertificateID]domain.CertificateRecord),
		institutes:   make(map[string]domain.InstituteRecord),
	}
}

// RegisterInstitute keeps the first registration. A repeat call refreshes the
// name and key but never clears the verified flag.
func (l *Ledger) RegisterInstitute(_ context.Context, identity, name, publicKeyPEM string) error {
	if !domain.ValidIdentity(identity) {
		return fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.institutes[identity]
	if !ok {
		rec = domain.InstituteRecord{Identity: identity, RegisteredAt: l.now().UTC()}
	}
	rec.Name = name
	rec.PublicKeyPEM = publicKeyPEM
	l.institutes[identity] = rec
	return nil
}

func (l *Ledger) VerifyInstitute(_ context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.institutes[identity]
	if !ok {
		return fmt.Errorf("institute %s: %w", identity, domain.ErrNotFound)
	}
	rec.IsVerified = true
	l.institutes[identity] = rec
	return nil
}

func (l *Ledger) IssueCertificate(_ context.Context, record domain.CertificateRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.certificates[record.CertificateID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrCertificateExists, record.CertificateID)
	}
	record.Revoked = false
	if record.IssuedAt.IsZero() {
		record.IssuedAt = l.now().UTC()
	}
	l.certificates[record.CertificateID] = record
	l.order = append(l.order, record.CertificateID)
	return nil
}

func (l *Ledger) RevokeCertificate(_ context.Context, id domain.CertificateID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.certificates[id]
	if !ok {
		return fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
	}
	rec.Revoked = true
	l.certificates[id] = rec
	return nil
}

func (l *Ledger) GetCertificate(_ context.Context, id domain.CertificateID) (*domain.CertificateRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.certificates[id]
	if !ok {
		return nil, fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
	}
	return &rec, nil
}

func (l *Ledger) IsRevoked(ctx context.Context, id domain.CertificateID) (bool, error) {
	rec, err := l.GetCertificate(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.Revoked, nil
}

func (l *Ledger) GetInstitute(_ context.Context, identity string) (*domain.InstituteRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.institutes[identity]
	if !ok {
		return nil, fmt.Errorf("institute %s: %w", identity, domain.ErrNotFound)
	}
	return &rec, nil
}

// ListCertificateIDs returns ids in issuance order.
func (l *Ledger) ListCertificateIDs(_ context.Context) ([]domain.CertificateID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.CertificateID(nil), l.order...), nil
}
