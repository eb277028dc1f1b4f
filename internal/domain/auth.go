package domain

import (
	"context"
	"time"
)

type Role string

const (
	RoleInstitute Role = "institute"
	RoleVerifier  Role = "verifier"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleInstitute, RoleVerifier, RoleAdmin:
		return true
	}
	return false
}

// Session is an explicit, caller-held authentication token. Nothing in the
// core reads session state from anywhere else.
type Session struct {
	Subject   string    `json:"sub"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

func (s Session) Valid(now time.Time) error {
	if s.Subject == "" || !s.Role.Valid() {
		return ErrUnauthorized
	}
	if s.IssuedAt.After(now) {
		return ErrUnauthorized
	}
	if !now.Before(s.ExpiresAt) {
		return ErrSessionExpired
	}
	return nil
}

type SessionCodec interface {
	Issue(subject string, role Role, now time.Time) (string, Session, error)
	Decode(token string, now time.Time) (Session, error)
}

// Actions checked by an Authorizer.
const (
	ActionIssueCertificate  = "certificate:issue"
	ActionRevokeCertificate = "certificate:revoke"
	ActionApproveInstitute  = "institute:approve"
	ActionExportCredentials = "credentials:export"
	ActionImportCredentials = "credentials:import"
	ActionRegisterInstitute = "institute:register"
)

// Authorizer returns ErrForbidden when session may not perform action on a
// resource owned by resourceOwner.
type Authorizer interface {
	Authorize(ctx context.Context, session Session, action string, resourceOwner string) error
}
