// Package session issues and checks the bearer tokens that carry a
// domain.Session between requests. Tokens are compact JWS values signed with
// HMAC-SHA256.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"certus/internal/domain"
)

const MinSecretLen = 32

var encodedHeader = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

type claims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type Codec struct {
	secret []byte
	ttl    time.Duration
}

var _ domain.SessionCodec = (*Codec)(nil)

func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLen)
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Codec{secret: key, ttl: ttl}, nil
}

// Issue signs a session for subject valid from now for the codec's ttl.
// Times are truncated to whole seconds.
func (c *Codec) Issue(subject string, role domain.Role, now time.Time) (string, domain.Session, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", domain.Session{}, fmt.Errorf("%w: subject is required", domain.ErrInvalidInput)
	}
	if !role.Valid() {
		return "", domain.Session{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	issued := now.UTC().Truncate(time.Second)
	s := domain.Session{
		Subject:   subject,
		Role:      role,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(c.ttl),
	}
	payload, err := json.Marshal(claims{
		Subject:   s.Subject,
		Role:      string(s.Role),
		IssuedAt:  s.IssuedAt.Unix(),
		ExpiresAt: s.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", domain.Session{}, err
	}
	signingInput := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	token := signingInput + "." + base64.RawURLEncoding.EncodeToString(c.sign(signingInput))
	return token, s, nil
}

// Decode returns ErrUnauthorized for any malformed or forged token and
// ErrSessionExpired once now reaches the expiry.
func (c *Codec) Decode(token string, now time.Time) (domain.Session, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 || parts[0] != encodedHeader {
		return domain.Session{}, domain.ErrUnauthorized
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return domain.Session{}, domain.ErrUnauthorized
	}
	if !hmac.Equal(signature, c.sign(parts[0]+"."+parts[1])) {
		return domain.Session{}, domain.ErrUnauthorized
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return domain.Session{}, domain.ErrUnauthorized
	}
	var cl claims
	if err := json.Unmarshal(payload, &cl); err != nil {
		return domain.Session{}, domain.ErrUnauthorized
	}
	s := domain.Session{
		Subject:   cl.Subject,
		Role:      domain.Role(cl.Role),
		IssuedAt:  time.Unix(cl.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(cl.ExpiresAt, 0).UTC(),
	}
	if err := s.Valid(now); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func (c *Codec) sign(signingInput string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}
