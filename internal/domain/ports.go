package domain

import (
	"context"
	"io"
	"time"
)

// Ledger is the external append-only store that is authoritative for
// certificate existence, revocation and institute registration. A call returns
// nil only after the mutation is durably recorded.
type Ledger interface {
	RegisterInstitute(ctx context.Context, identity, name, publicKeyPEM string) error
	VerifyInstitute(ctx context.Context, identity string) error
	// IssueCertificate fails with ErrCertificateExists when the id is taken.
	IssueCertificate(ctx context.Context, record CertificateRecord) error
	// RevokeCertificate is irreversible. Revoking twice succeeds.
	RevokeCertificate(ctx context.Context, id CertificateID) error
	GetCertificate(ctx context.Context, id CertificateID) (*CertificateRecord, error)
	IsRevoked(ctx context.Context, id CertificateID) (bool, error)
	GetInstitute(ctx context.Context, identity string) (*InstituteRecord, error)
	ListCertificateIDs(ctx context.Context) ([]CertificateID, error)
}

// UIDAllocator hands out sequential certificate UIDs. Reserve never returns
// the same value twice for one institute.
type UIDAllocator interface {
	Reserve(ctx context.Context, institute string) (string, error)
}

// Pinner stores certificate files in a content-addressed store.
type Pinner interface {
	Pin(ctx context.Context, name string, content io.Reader) (string, error)
	Unpin(ctx context.Context, contentAddress string) error
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
