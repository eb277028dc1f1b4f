package usecase

import (
	"context"
	"crypto/rsa"

	"certus/internal/domain"
)

type CryptoService interface {
	DeriveCertificateID(fields domain.CertificateFields) domain.CertificateID
	EncodePayload(fields map[string]string) ([]byte, error)
	EncodeDocument(doc map[string]any) ([]byte, error)
	Sign(key *rsa.PrivateKey, payload []byte) (string, error)
	VerifySignature(key *rsa.PublicKey, payload []byte, signature string) error
}

// KeyProvider is the signing side of the key store.
type KeyProvider interface {
	Ensure(ctx context.Context, identity string) (domain.KeyPair, bool, error)
	LoadPrivate(ctx context.Context, identity string) (*rsa.PrivateKey, error)
}

// PublicKeyProvider returns domain.ErrKeyNotFound when no key is on file.
type PublicKeyProvider interface {
	LoadPublic(ctx context.Context, identity string) (*rsa.PublicKey, error)
}

type CredentialStore interface {
	KeyProvider
	PublicKeyPEM(ctx context.Context, identity string) (string, error)
	ExportBundle(ctx context.Context, identity string) (domain.CredentialBundle, error)
	ImportBundle(ctx context.Context, bundle domain.CredentialBundle) error
}

// CertificateRenderer produces the printable form of a certificate.
type CertificateRenderer interface {
	Render(institute string, fields domain.CertificateFields) (string, error)
}
