// Package ledgertest holds the behavioural contract every domain.Ledger
// backend must satisfy.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"certus/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises newLedger against the shared contract. newLedger must return
// an empty ledger on every call.
func Run(t *testing.T, newLedger func(t *testing.T) domain.Ledger) {
	t.Run("IssueAndGet", func(t *testing.T) { testIssueAndGet(t, newLedger(t)) })
	t.Run("DuplicateIssueRejected", func(t *testing.T) { testDuplicateIssue(t, newLedger(t)) })
	t.Run("RevokeIsPermanent", func(t *testing.T) { testRevoke(t, newLedger(t)) })
	t.Run("MissingRecords", func(t *testing.T) { testMissing(t, newLedger(t)) })
	t.Run("InstituteLifecycle", func(t *testing.T) { testInstitute(t, newLedger(t)) })
	t.Run("ListCertificateIDs", func(t *testing.T) { testList(t, newLedger(t)) })
}

// Record builds a valid record whose id is derived from uid.
func Record(uid string) domain.CertificateRecord {
	fields := domain.CertificateFields{
		UID:           uid,
		CandidateName: "Ada Lovelace",
		CourseName:    "Systems Design",
		OrgName:       "Acme Institute",
	}
	sum := sha256.Sum256([]byte(fields.UID + fields.CandidateName + fields.CourseName + fields.OrgName))
	return domain.CertificateRecord{
		CertificateFields: fields,
		CertificateID:     domain.CertificateID(hex.EncodeToString(sum[:])),
		IPFSHash:          "QmHash" + uid,
		InstituteEmail:    "acme@example.org",
		DigitalSignature:  "c2lnbmF0dXJl",
	}
}

func testIssueAndGet(t *testing.T, ledger domain.Ledger) {
	ctx := context.Background()
	rec := Record("1001")
	require.NoError(t, ledger.IssueCertificate(ctx, rec))

	got, err := ledger.GetCertificate(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.Equal(t, rec.CertificateFields, got.CertificateFields)
	assert.Equal(t, rec.CertificateID, got.CertificateID)
	assert.Equal(t, rec.IPFSHash, got.IPFSHash)
	assert.Equal(t, rec.InstituteEmail, got.InstituteEmail)
	assert.Equal(t, rec.DigitalSignature, got.DigitalSignature)
	assert.False(t, got.Revoked)

	revoked, err := ledger.IsRevoked(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func testDuplicateIssue(t *testing.T, ledger domain.Ledger) {
	ctx := context.Background()
	rec := Record("1001")
	require.NoError(t, ledger.IssueCertificate(ctx, rec))

	dup := rec
	dup.IPFSHash = "QmOther"
	dup.DigitalSignature = "b3RoZXI="
	require.ErrorIs(t, ledger.IssueCertificate(ctx, dup), domain.ErrCertificateExists)

	got, err := ledger.GetCertificate(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.Equal(t, rec.IPFSHash, got.IPFSHash, "duplicate issue must not change content")
}

func testRevoke(t *testing.T, ledger domain.Ledger) {
	ctx := context.Background()
	rec := Record("1002")
	require.NoError(t, ledger.IssueCertificate(ctx, rec))
	require.NoError(t, ledger.RevokeCertificate(ctx, rec.CertificateID))
	require.NoError(t, ledger.RevokeCertificate(ctx, rec.CertificateID), "second revoke is a no-op")

	revoked, err := ledger.IsRevoked(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.True(t, revoked)

	got, err := ledger.GetCertificate(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.True(t, got.Revoked)

	require.ErrorIs(t, ledger.IssueCertificate(ctx, rec), domain.ErrCertificateExists, "reissue cannot clear revocation")
	revoked, err = ledger.IsRevoked(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func testMissing(t *testing.T, ledger domain.Ledger) {
	ctx := context.Background()
	missing := Record("404").CertificateID

	_, err := ledger.GetCertificate(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = ledger.IsRevoked(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, ledger.RevokeCertificate(ctx, missing), domain.ErrNotFound)
	_, err = ledger.GetInstitute(ctx, "nobody@example.org")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, ledger.VerifyInstitute(ctx, "nobody@example.org"), domain.ErrNotFound)
}

func testInstitute(t *testing.T, ledger domain.Ledger) {
	ctx := context.Background()
	require.NoError(t, ledger.RegisterInstitute(ctx, "acme@example.org", "Acme Institute", "PEM"))

	got, err := ledger.GetInstitute(ctx, "acme@example.org")
	require.NoError(t, err)
	assert.Equal(t, "Acme Institute", got.Name)
	assert.Equal(t, "PEM", got.PublicKeyPEM)
	assert.False(t, got.IsVerified)
	assert.False(t, got.RegisteredAt.IsZero())

	require.NoError(t, ledger.VerifyInstitute(ctx, "acme@example.org"))
	got, err = ledger.GetInstitute(ctx, "acme@example.org")
	require.NoError(t, err)
	assert.True(t, got.IsVerified)

	require.NoError(t, ledger.RegisterInstitute(ctx, "acme@example.org", "Acme Institute", "PEM"))
	got, err = ledger.GetInstitute(ctx, "acme@example.org")
	require.NoError(t, err)
	assert.True(t, got.IsVerified, "re-registration keeps the verified flag")
}

func testList(t *testing.T, ledger domain.Ledger) {
	ctx := context.Background()
	ids, err := ledger.ListCertificateIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	a, b := Record("1"), Record("2")
	require.NoError(t, ledger.IssueCertificate(ctx, a))
	require.NoError(t, ledger.IssueCertificate(ctx, b))

	ids, err = ledger.ListCertificateIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.CertificateID{a.CertificateID, b.CertificateID}, ids)
}
