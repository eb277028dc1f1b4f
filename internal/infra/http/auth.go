package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"certus/internal/config"
	"certus/internal/domain"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "session"

// requireSession authenticates the caller and checks that the session may
// perform action on a resource owned by owner.
func (s *Server) requireSession(c *gin.Context, action, owner string) (domain.Session, bool) {
	session, ok := s.authenticate(c)
	if !ok {
		return domain.Session{}, false
	}
	return session, s.authorize(c, session, action, owner)
}

// authenticate resolves the caller's session. With AUTH_MODE=none every
// caller acts as an administrator.
func (s *Server) authenticate(c *gin.Context) (domain.Session, bool) {
	if s.authDisabled() {
		now := s.now().UTC()
		session := domain.Session{
			Subject:   "anonymous",
			Role:      domain.RoleAdmin,
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		}
		c.Set(sessionContextKey, session)
		return session, true
	}
	if s.authInitErr != nil || s.sessions == nil {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "auth configuration error")
		return domain.Session{}, false
	}
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return domain.Session{}, false
	}
	session, err := s.sessions.Decode(token, s.now())
	if err != nil {
		writeAuthError(c, err)
		return domain.Session{}, false
	}
	c.Set(sessionContextKey, session)
	return session, true
}

func (s *Server) authorize(c *gin.Context, session domain.Session, action, owner string) bool {
	if s.authDisabled() || s.authorizer == nil {
		return true
	}
	if err := s.authorizer.Authorize(c.Request.Context(), session, action, owner); err != nil {
		writeAuthError(c, err)
		return false
	}
	return true
}

func (s *Server) authDisabled() bool {
	return s.cfg.AuthMode == "" || s.cfg.AuthMode == config.AuthModeNone
}

func (s *Server) validAdminKey(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		return false
	}
	key := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
	return key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) == 1
}

func extractBearerToken(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return ""
	}
	return strings.TrimSpace(value[len("bearer "):])
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		writeErrorCode(c, http.StatusUnauthorized, "SESSION_EXPIRED", "session expired")
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
	case errors.Is(err, domain.ErrForbidden):
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
	default:
		writeError(c, err)
	}
}
