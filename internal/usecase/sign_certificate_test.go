package usecase

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"certus/internal/domain"
	"certus/internal/infra/certtext"
	"certus/internal/infra/keys/pemstore"
)

func TestSign_GeneratesKeyOnFirstUse(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.keys.LoadPublic(ctx, testInstitute); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected no key before signing, got %v", err)
	}
	rec := domain.CertificateRecord{CertificateFields: adaFields(), IPFSHash: "QmAda"}
	rec.CertificateID = h.crypto.DeriveCertificateID(rec.CertificateFields)

	first, err := h.signer.Sign(ctx, testInstitute, rec.PayloadFields())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, err := h.signer.Sign(ctx, testInstitute, rec.PayloadFields())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if first == second {
		t.Fatal("expected probabilistic signatures to differ")
	}

	pub, err := h.keys.LoadPublic(ctx, testInstitute)
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	payload, err := h.crypto.EncodePayload(rec.PayloadFields())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, sig := range []string{first, second} {
		if err := h.crypto.VerifySignature(pub, payload, sig); err != nil {
			t.Fatalf("verify: %v", err)
		}
	}
}

func TestSign_RejectsIncompletePayload(t *testing.T) {
	h := newHarness(t)
	_, err := h.signer.Sign(context.Background(), testInstitute, map[string]string{"uid": "1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := h.keys.LoadPublic(context.Background(), testInstitute); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("input errors must be raised before key generation, got %v", err)
	}
}

func TestIssue_RecordsSignedCertificate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rec := h.issue(t, adaFields())

	stored, err := h.ledger.GetCertificate(ctx, rec.CertificateID)
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if stored.DigitalSignature == "" || stored.InstituteEmail != testInstitute {
		t.Fatalf("unexpected stored record %+v", stored)
	}
	if !stored.IssuedAt.Equal(fixedNow) {
		t.Fatalf("unexpected issued_at %v", stored.IssuedAt)
	}
}

func TestIssue_DuplicateContentRejected(t *testing.T) {
	h := newHarness(t)
	h.issue(t, adaFields())
	_, err := h.signer.Issue(context.Background(), IssueRequest{
		InstituteEmail: testInstitute,
		Fields:         adaFields(),
		IPFSHash:       "QmOther",
	})
	if !errors.Is(err, domain.ErrCertificateExists) {
		t.Fatalf("expected certificate exists, got %v", err)
	}
}

func TestIssue_InputErrorsBeforeAnyWork(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cases := []IssueRequest{
		{InstituteEmail: "", Fields: adaFields(), IPFSHash: "Qm"},
		{InstituteEmail: testInstitute, Fields: adaFields(), IPFSHash: " "},
		{InstituteEmail: testInstitute, Fields: domain.CertificateFields{UID: "1", CourseName: "c", OrgName: "o"}, IPFSHash: "Qm"},
		{InstituteEmail: testInstitute, Fields: domain.CertificateFields{CandidateName: "a", CourseName: "c", OrgName: "o"}, IPFSHash: "Qm"},
	}
	for i, req := range cases {
		if _, err := h.signer.Issue(ctx, req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
	ids, _ := h.ledger.ListCertificateIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("expected nothing on the ledger, got %d records", len(ids))
	}
}

func TestIssue_ReservesUIDWhenBlank(t *testing.T) {
	h := newHarness(t)
	h.signer.UIDs = &counterUIDs{next: 1000}

	fields := adaFields()
	fields.UID = ""
	first, err := h.signer.Issue(context.Background(), IssueRequest{InstituteEmail: testInstitute, Fields: fields, IPFSHash: "Qm1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := h.signer.Issue(context.Background(), IssueRequest{InstituteEmail: testInstitute, Fields: fields, IPFSHash: "Qm2"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.UID != "1001" || second.UID != "1002" {
		t.Fatalf("unexpected uids %s %s", first.UID, second.UID)
	}
	if first.CertificateID == second.CertificateID {
		t.Fatal("reserved uids must give distinct certificate ids")
	}
}

func TestIssue_LedgerUnavailable(t *testing.T) {
	h := newHarness(t)
	h.signer.Ledger = &flakyLedger{Ledger: h.ledger, failIssue: true}
	_, err := h.signer.Issue(context.Background(), IssueRequest{InstituteEmail: testInstitute, Fields: adaFields(), IPFSHash: "Qm"})
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable, got %v", err)
	}
}

type memPinner struct {
	files    map[string]string
	unpinned []string
	fail     bool
	unpinErr error
}

func (p *memPinner) Pin(_ context.Context, name string, content io.Reader) (string, error) {
	if p.fail {
		return "", errors.New("pinning service down")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	if p.files == nil {
		p.files = make(map[string]string)
	}
	cid := "Qm" + name
	p.files[cid] = string(data)
	return cid, nil
}

func (p *memPinner) Unpin(_ context.Context, cid string) error {
	p.unpinned = append(p.unpinned, cid)
	if p.unpinErr != nil {
		return p.unpinErr
	}
	delete(p.files, cid)
	return nil
}

func TestIssue_PinsRenderedCertificateWithoutIPFSHash(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pinner := &memPinner{}
	h.signer.Pinner = pinner
	h.signer.Renderer = certtext.Renderer{}

	rec, err := h.signer.Issue(ctx, IssueRequest{InstituteEmail: testInstitute, Fields: adaFields()})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec.IPFSHash != "Qm1001_ada_lovelace.txt" {
		t.Fatalf("unexpected ipfs hash %q", rec.IPFSHash)
	}
	parsed, err := certtext.Parse(pinner.files[rec.IPFSHash])
	if err != nil {
		t.Fatalf("parse pinned file: %v", err)
	}
	if parsed.CertificateFields != adaFields() || parsed.InstituteEmail != testInstitute {
		t.Fatalf("pinned file does not match certificate: %+v", parsed)
	}
	res, err := h.verifier.Execute(ctx, rec.CertificateID, "")
	if err != nil || !res.Verdict.SignatureValid() {
		t.Fatalf("verify pinned certificate: %v %+v", err, res)
	}

	// A duplicate issue releases the file it just pinned.
	if _, err := h.signer.Issue(ctx, IssueRequest{InstituteEmail: testInstitute, Fields: adaFields()}); !errors.Is(err, domain.ErrCertificateExists) {
		t.Fatalf("expected certificate exists, got %v", err)
	}
	if len(pinner.unpinned) != 1 {
		t.Fatalf("expected the duplicate's file to be unpinned, got %v", pinner.unpinned)
	}
}

func TestIssue_PinFailureStopsIssue(t *testing.T) {
	h := newHarness(t)
	h.signer.Pinner = &memPinner{fail: true}
	h.signer.Renderer = certtext.Renderer{}

	if _, err := h.signer.Issue(context.Background(), IssueRequest{InstituteEmail: testInstitute, Fields: adaFields()}); err == nil {
		t.Fatal("expected pin failure")
	}
	ids, _ := h.ledger.ListCertificateIDs(context.Background())
	if len(ids) != 0 {
		t.Fatalf("nothing may reach the ledger when pinning fails, got %v", ids)
	}
}

func TestIssue_UnpinFailureIsReported(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	unpinErr := errors.New("gateway timeout")
	pinner := &memPinner{unpinErr: unpinErr}
	h.signer.Pinner = pinner
	h.signer.Renderer = certtext.Renderer{}

	if _, err := h.signer.Issue(ctx, IssueRequest{InstituteEmail: testInstitute, Fields: adaFields()}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err := h.signer.Issue(ctx, IssueRequest{InstituteEmail: testInstitute, Fields: adaFields()})
	if !errors.Is(err, domain.ErrCertificateExists) {
		t.Fatalf("expected certificate exists, got %v", err)
	}
	if !errors.Is(err, unpinErr) || !strings.Contains(err.Error(), "unpin Qm1001_ada_lovelace.txt") {
		t.Fatalf("expected the unpin failure to be reported, got %v", err)
	}
}

func TestSign_TrimsIdentity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rec := domain.CertificateRecord{CertificateFields: adaFields(), IPFSHash: "QmAda"}
	rec.CertificateID = h.crypto.DeriveCertificateID(rec.CertificateFields)

	sig, err := h.signer.Sign(ctx, " "+testInstitute+"\n", rec.PayloadFields())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	verdict, err := h.verifier.VerifyDetached(ctx, testInstitute, rec.PayloadFields(), sig)
	if err != nil || verdict != domain.VerdictValidInstituteUnverified {
		t.Fatalf("expected the trimmed identity's key, got %s %v", verdict, err)
	}
	keyFiles, err := filepath.Glob(filepath.Join(h.keys.Root(), "*", pemstore.PublicKeyFile))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(keyFiles) != 1 || filepath.Base(filepath.Dir(keyFiles[0])) != testInstitute {
		t.Fatalf("expected a single key directory, got %v", keyFiles)
	}
}
