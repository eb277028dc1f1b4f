package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/crypto"
	"certus/internal/infra/keys/pemstore"
	"certus/internal/infra/ledger/memledger"
)

const testInstitute = "acme@example.org"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	keys     *pemstore.Store
	ledger   *memledger.Ledger
	crypto   *crypto.Service
	signer   *SignCertificate
	verifier *VerifyCertificate
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	keys, err := pemstore.NewStore(filepath.Join(t.TempDir(), "keys"))
	if err != nil {
		t.Fatalf("new key store: %v", err)
	}
	ledger := memledger.NewWithClock(func() time.Time { return fixedNow })
	svc := crypto.NewService(crypto.FormatLegacy)
	signer := NewSignCertificate(keys, svc, ledger)
	signer.Now = func() time.Time { return fixedNow }
	verifier := NewVerifyCertificate(ledger, keys, svc)
	verifier.Now = func() time.Time { return fixedNow }
	return &harness{keys: keys, ledger: ledger, crypto: svc, signer: signer, verifier: verifier}
}

func adaFields() domain.CertificateFields {
	return domain.CertificateFields{
		UID:           "1001",
		CandidateName: "Ada Lovelace",
		CourseName:    "Systems Design",
		OrgName:       "Acme Institute",
	}
}

func (h *harness) issue(t *testing.T, fields domain.CertificateFields) *domain.CertificateRecord {
	t.Helper()
	rec, err := h.signer.Issue(context.Background(), IssueRequest{
		InstituteEmail: testInstitute,
		Fields:         fields,
		IPFSHash:       "QmAda",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return rec
}

var errLedgerDown = errors.New("dial tcp: connection refused")

// flakyLedger fails the selected calls and delegates the rest.
type flakyLedger struct {
	domain.Ledger
	failGetCertificate bool
	failGetInstitute   bool
	failIssue          bool
}

func (f *flakyLedger) GetCertificate(ctx context.Context, id domain.CertificateID) (*domain.CertificateRecord, error) {
	if f.failGetCertificate {
		return nil, errLedgerDown
	}
	return f.Ledger.GetCertificate(ctx, id)
}

func (f *flakyLedger) GetInstitute(ctx context.Context, identity string) (*domain.InstituteRecord, error) {
	if f.failGetInstitute {
		return nil, errLedgerDown
	}
	return f.Ledger.GetInstitute(ctx, identity)
}

func (f *flakyLedger) IssueCertificate(ctx context.Context, rec domain.CertificateRecord) error {
	if f.failIssue {
		return errLedgerDown
	}
	return f.Ledger.IssueCertificate(ctx, rec)
}

type counterUIDs struct {
	mu   sync.Mutex
	next int64
}

func (c *counterUIDs) Reserve(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return strconv.FormatInt(c.next, 10), nil
}
