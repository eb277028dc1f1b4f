package domain

import (
	"strings"
	"time"
)

type InstituteRecord struct {
	Identity     string    `json:"identity"`
	Name         string    `json:"name"`
	PublicKeyPEM string    `json:"public_key_pem"`
	IsVerified   bool      `json:"is_verified"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ValidIdentity reports whether identity can be used as a key-store and ledger
// namespace. Identities are email-shaped but only path safety is enforced.
func ValidIdentity(identity string) bool {
	identity = strings.TrimSpace(identity)
	if identity == "" || identity == "." || identity == ".." {
		return false
	}
	return !strings.ContainsAny(identity, `/\`+"\x00")
}
