package domain

import "crypto/rsa"

const (
	KeyBits     = 2048
	KeyExponent = 65537
)

// KeyPair is one institute's RSA key pair. The private half never leaves the
// key store that created it.
type KeyPair struct {
	Identity   string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// CredentialBundle is the exported public credential consumed by a separate
// verifying party.
type CredentialBundle struct {
	InstituteEmail string `json:"institute_email"`
	PublicKey      string `json:"public_key"`
	ExportedAt     int64  `json:"exported_at"`
}
