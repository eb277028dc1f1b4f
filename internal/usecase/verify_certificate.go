package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"certus/internal/domain"
)

// VerifyCertificate reconciles the ledger's view of a certificate with a
// cryptographic check of its signature.
//
//	lookup -> not found | revoked | signature check
//	signature check -> unverifiable | invalid | valid -> institute trust check
type VerifyCertificate struct {
	Ledger domain.Ledger
	Keys   PublicKeyProvider
	Crypto CryptoService
	Now    func() time.Time
}

func NewVerifyCertificate(ledger domain.Ledger, keys PublicKeyProvider, crypto CryptoService) *VerifyCertificate {
	return &VerifyCertificate{
		Ledger: ledger,
		Keys:   keys,
		Crypto: crypto,
		Now:    time.Now,
	}
}

// Execute verifies the certificate stored under id. instituteHint names the
// expected issuer; it must match the record's issuer when the record carries
// one and selects the verification key when it does not.
func (uc *VerifyCertificate) Execute(ctx context.Context, id domain.CertificateID, instituteHint string) (*domain.VerifyResult, error) {
	if uc == nil || uc.Ledger == nil || uc.Keys == nil || uc.Crypto == nil {
		return nil, errors.New("verifier is not configured")
	}
	id = domain.CertificateID(strings.TrimSpace(string(id)))
	if !domain.ValidCertificateID(string(id)) {
		return nil, fmt.Errorf("%w: certificate_id must be 64 lowercase hex characters", domain.ErrInvalidInput)
	}
	result := &domain.VerifyResult{CertificateID: id, CheckedAt: uc.now().UTC()}

	record, err := uc.Ledger.GetCertificate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			result.Verdict = domain.VerdictNotFound
			return result, nil
		}
		return nil, ledgerError("get certificate", err)
	}
	result.Record = record
	if record.Revoked {
		result.Verdict = domain.VerdictRevoked
		return result, nil
	}

	issuer, err := resolveIssuer(record.InstituteEmail, instituteHint)
	if err != nil {
		return nil, err
	}

	verdict, err := uc.checkSignature(ctx, issuer, record.PayloadFields(), record.DigitalSignature)
	if err != nil {
		return nil, err
	}
	result.Verdict = verdict
	if verdict != domain.VerdictValidInstituteUnverified {
		return result, nil
	}

	institute, verified, err := uc.instituteTrust(ctx, issuer)
	if err != nil {
		return nil, err
	}
	result.Institute = institute
	if verified {
		result.Verdict = domain.VerdictValidInstituteVerified
	}
	return result, nil
}

// VerifyByContent derives the certificate id from fields read off a
// certificate document and verifies the ledger record under that id.
func (uc *VerifyCertificate) VerifyByContent(ctx context.Context, fields domain.CertificateFields, instituteHint string) (*domain.VerifyResult, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	return uc.Execute(ctx, uc.Crypto.DeriveCertificateID(fields), instituteHint)
}

// VerifyDetached checks a signature over caller-held certificate data
// without consulting the certificate ledger. The institute trust flag still
// comes from the ledger.
func (uc *VerifyCertificate) VerifyDetached(ctx context.Context, identity string, data map[string]string, signature string) (domain.Verdict, error) {
	identity, err := uc.detachedIdentity(identity)
	if err != nil {
		return 0, err
	}
	verdict, err := uc.checkSignature(ctx, identity, data, signature)
	if err != nil {
		return 0, err
	}
	return uc.withTrust(ctx, identity, verdict)
}

// VerifyDigitalCertificate checks a holder's DigitalCertificate. The
// signature is recomputed over the whole wrapper, so edits to the issuer,
// timestamp or version are caught as well as edits to the data. A non-empty
// instituteHint must name the wrapper's issuer.
func (uc *VerifyCertificate) VerifyDigitalCertificate(ctx context.Context, cert domain.DigitalCertificate, instituteHint string) (domain.Verdict, error) {
	issuer, err := resolveIssuer(cert.InstituteEmail, instituteHint)
	if err != nil {
		return 0, err
	}
	identity, err := uc.detachedIdentity(issuer)
	if err != nil {
		return 0, err
	}
	if _, err := uc.Crypto.EncodePayload(cert.CertificateData); err != nil {
		return 0, err
	}
	payload, err := uc.Crypto.EncodeDocument(cert.SignedContent())
	if err != nil {
		return 0, err
	}
	verdict, err := uc.checkPayload(ctx, identity, payload, cert.DigitalSignature)
	if err != nil {
		return 0, err
	}
	return uc.withTrust(ctx, identity, verdict)
}

func (uc *VerifyCertificate) detachedIdentity(identity string) (string, error) {
	if uc == nil || uc.Keys == nil || uc.Crypto == nil {
		return "", errors.New("verifier is not configured")
	}
	trimmed := strings.TrimSpace(identity)
	if !domain.ValidIdentity(trimmed) {
		return "", fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	return trimmed, nil
}

// withTrust upgrades a valid signature when the institute is verified.
func (uc *VerifyCertificate) withTrust(ctx context.Context, identity string, verdict domain.Verdict) (domain.Verdict, error) {
	if verdict != domain.VerdictValidInstituteUnverified || uc.Ledger == nil {
		return verdict, nil
	}
	_, verified, err := uc.instituteTrust(ctx, identity)
	if err != nil {
		return 0, err
	}
	if verified {
		return domain.VerdictValidInstituteVerified, nil
	}
	return verdict, nil
}

// checkSignature reports VerdictValidInstituteUnverified for a good signature;
// the caller upgrades it after the trust check.
func (uc *VerifyCertificate) checkSignature(ctx context.Context, identity string, data map[string]string, signature string) (domain.Verdict, error) {
	payload, err := uc.Crypto.EncodePayload(data)
	if err != nil {
		return 0, err
	}
	return uc.checkPayload(ctx, identity, payload, signature)
}

func (uc *VerifyCertificate) checkPayload(ctx context.Context, identity string, payload []byte, signature string) (domain.Verdict, error) {
	pub, err := uc.Keys.LoadPublic(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.VerdictUnverifiable, nil
		}
		return 0, fmt.Errorf("load public key: %w", err)
	}
	if err := uc.Crypto.VerifySignature(pub, payload, signature); err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			return domain.VerdictSignatureInvalid, nil
		}
		return 0, err
	}
	return domain.VerdictValidInstituteUnverified, nil
}

// instituteTrust treats an institute missing from the ledger as unverified.
func (uc *VerifyCertificate) instituteTrust(ctx context.Context, identity string) (*domain.InstituteRecord, bool, error) {
	institute, err := uc.Ledger.GetInstitute(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, ledgerError("get institute", err)
	}
	return institute, institute.IsVerified, nil
}

func (uc *VerifyCertificate) now() time.Time {
	if uc.Now == nil {
		return time.Now()
	}
	return uc.Now()
}

func resolveIssuer(recorded, hint string) (string, error) {
	recorded = strings.TrimSpace(recorded)
	hint = strings.TrimSpace(hint)
	switch {
	case recorded != "" && hint != "" && !strings.EqualFold(recorded, hint):
		return "", fmt.Errorf("%w: certificate was issued by %s", domain.ErrInstituteMismatch, recorded)
	case recorded != "":
		return recorded, nil
	case hint != "":
		return hint, nil
	default:
		return "", fmt.Errorf("%w: record has no issuer and no institute was given", domain.ErrInvalidInput)
	}
}
