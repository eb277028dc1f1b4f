package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"certus/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background())
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	return e
}

func session(sub string, role domain.Role) domain.Session {
	return domain.Session{
		Subject:   sub,
		Role:      role,
		IssuedAt:  testNow.Add(-time.Minute),
		ExpiresAt: testNow.Add(time.Hour),
	}
}

func TestAuthorizeMatrix(t *testing.T) {
	e := newTestEngine(t)
	acme := session("acme@example.org", domain.RoleInstitute)
	cases := []struct {
		name    string
		session domain.Session
		action  string
		owner   string
		allowed bool
	}{
		{"institute revokes own", acme, domain.ActionRevokeCertificate, "acme@example.org", true},
		{"owner match ignores case", acme, domain.ActionIssueCertificate, "ACME@example.org", true},
		{"institute revokes other", acme, domain.ActionRevokeCertificate, "other@example.org", false},
		{"institute cannot approve", acme, domain.ActionApproveInstitute, "acme@example.org", false},
		{"admin approves", session("root@example.org", domain.RoleAdmin), domain.ActionApproveInstitute, "acme@example.org", true},
		{"admin revokes any", session("root@example.org", domain.RoleAdmin), domain.ActionRevokeCertificate, "acme@example.org", true},
		{"verifier imports", session("v@example.org", domain.RoleVerifier), domain.ActionImportCredentials, "", true},
		{"verifier cannot issue", session("v@example.org", domain.RoleVerifier), domain.ActionIssueCertificate, "v@example.org", false},
		{"unknown action", acme, "certificate:burn", "acme@example.org", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.Authorize(context.Background(), tc.session, tc.action, tc.owner)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrForbidden)
			}
		})
	}
}

func TestAuthorizeRejectsBadSessions(t *testing.T) {
	e := newTestEngine(t)
	expired := session("root@example.org", domain.RoleAdmin)
	expired.ExpiresAt = testNow
	assert.ErrorIs(t, e.Authorize(context.Background(), expired, domain.ActionApproveInstitute, ""), domain.ErrSessionExpired)

	assert.ErrorIs(t, e.Authorize(context.Background(), domain.Session{}, domain.ActionImportCredentials, ""), domain.ErrUnauthorized)
}

func TestNewEngineFromPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "open.rego"), []byte(`package certus.authz

default allow := true
`), 0o600))
	e, err := NewEngineFromPath(context.Background(), dir)
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	assert.NoError(t, e.Authorize(context.Background(), session("v@example.org", domain.RoleVerifier), domain.ActionApproveInstitute, ""))
}

func TestNewEngineRejectsForbiddenBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "net.rego"), []byte(`package certus.authz

allow {
	http.send({"method": "get", "url": "http://example.org"}).status_code == 200
}
`), 0o600))
	_, err := NewEngineFromPath(context.Background(), dir)
	require.Error(t, err)
}
