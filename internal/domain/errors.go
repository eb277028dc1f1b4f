package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrKeyNotFound       = errors.New("key not found")
	ErrKeyExists         = errors.New("key already exists")
	ErrKeyInvalid        = errors.New("key invalid")
	ErrSignatureInvalid  = errors.New("signature invalid")
	ErrCertificateExists = errors.New("certificate already exists")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrInstituteMismatch = errors.New("institute mismatch")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrSessionExpired    = errors.New("session expired")
)
