package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"certus/internal/domain"
)

type IssueRequest struct {
	InstituteEmail string
	Fields         domain.CertificateFields
	IPFSHash       string
}

// SignCertificate signs certificate payloads with the institute's key,
// creating the key on first use, and submits issued records to the ledger.
type SignCertificate struct {
	Keys   KeyProvider
	Crypto CryptoService
	Ledger domain.Ledger
	UIDs   domain.UIDAllocator
	Now    func() time.Time

	// Pinner and Renderer, when both set, store a rendered copy of the
	// certificate for requests that arrive without an ipfs_hash.
	Pinner   domain.Pinner
	Renderer CertificateRenderer
}

func NewSignCertificate(keys KeyProvider, crypto CryptoService, ledger domain.Ledger) *SignCertificate {
	return &SignCertificate{
		Keys:   keys,
		Crypto: crypto,
		Ledger: ledger,
		Now:    time.Now,
	}
}

func (uc *SignCertificate) Sign(ctx context.Context, identity string, data map[string]string) (string, error) {
	identity, err := uc.signingIdentity(identity)
	if err != nil {
		return "", err
	}
	payload, err := uc.Crypto.EncodePayload(data)
	if err != nil {
		return "", err
	}
	return uc.signPayload(ctx, identity, payload)
}

// signingIdentity trims identity so that one institute always maps to one
// key directory.
func (uc *SignCertificate) signingIdentity(identity string) (string, error) {
	if uc == nil || uc.Keys == nil || uc.Crypto == nil {
		return "", errors.New("signer is not configured")
	}
	trimmed := strings.TrimSpace(identity)
	if !domain.ValidIdentity(trimmed) {
		return "", fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	return trimmed, nil
}

func (uc *SignCertificate) signPayload(ctx context.Context, identity string, payload []byte) (string, error) {
	pair, _, err := uc.Keys.Ensure(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("load signing key: %w", err)
	}
	return uc.Crypto.Sign(pair.PrivateKey, payload)
}

// Issue derives the certificate id, signs the canonical payload and records
// the result on the ledger. A blank UID is reserved from UIDs when set.
func (uc *SignCertificate) Issue(ctx context.Context, req IssueRequest) (*domain.CertificateRecord, error) {
	if uc == nil || uc.Ledger == nil {
		return nil, errors.New("signer ledger is required")
	}
	identity := strings.TrimSpace(req.InstituteEmail)
	if !domain.ValidIdentity(identity) {
		return nil, fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, req.InstituteEmail)
	}
	pinFile := strings.TrimSpace(req.IPFSHash) == ""
	if pinFile && (uc.Pinner == nil || uc.Renderer == nil) {
		return nil, fmt.Errorf("%w: ipfs_hash is required", domain.ErrInvalidInput)
	}
	fields := req.Fields
	if strings.TrimSpace(fields.UID) == "" && uc.UIDs != nil {
		draft := fields
		draft.UID = "-"
		if err := draft.Validate(); err != nil {
			return nil, err
		}
		uid, err := uc.UIDs.Reserve(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("reserve uid: %w", err)
		}
		fields.UID = uid
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	ipfsHash := req.IPFSHash
	if pinFile {
		pinned, err := uc.pin(ctx, identity, fields)
		if err != nil {
			return nil, err
		}
		ipfsHash = pinned
	}

	record := domain.CertificateRecord{
		CertificateFields: fields,
		CertificateID:     uc.Crypto.DeriveCertificateID(fields),
		IPFSHash:          ipfsHash,
		InstituteEmail:    identity,
		IssuedAt:          uc.now().UTC(),
	}
	sig, err := uc.Sign(ctx, identity, record.PayloadFields())
	if err == nil {
		record.DigitalSignature = sig
		err = uc.Ledger.IssueCertificate(ctx, record)
		if err != nil {
			err = ledgerError("issue certificate", err)
		}
	}
	if err != nil {
		if pinFile {
			// The pinned copy belongs to no certificate now.
			if unpinErr := uc.Pinner.Unpin(context.WithoutCancel(ctx), ipfsHash); unpinErr != nil {
				err = errors.Join(err, fmt.Errorf("unpin %s: %w", ipfsHash, unpinErr))
			}
		}
		return nil, err
	}
	return &record, nil
}

func (uc *SignCertificate) pin(ctx context.Context, identity string, fields domain.CertificateFields) (string, error) {
	text, err := uc.Renderer.Render(identity, fields)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.txt", fields.UID, strings.ToLower(strings.ReplaceAll(strings.TrimSpace(fields.CandidateName), " ", "_")))
	hash, err := uc.Pinner.Pin(ctx, name, strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("pin certificate file: %w", err)
	}
	return hash, nil
}

// CreateDigitalCertificate returns a self-contained signed certificate for a
// holder without touching the ledger. The signature covers the whole wrapper,
// so the issuer, timestamp and version cannot be altered either.
func (uc *SignCertificate) CreateDigitalCertificate(ctx context.Context, identity string, fields domain.CertificateFields, ipfsHash string) (*domain.DigitalCertificate, error) {
	identity, err := uc.signingIdentity(identity)
	if err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	record := domain.CertificateRecord{
		CertificateFields: fields,
		CertificateID:     uc.Crypto.DeriveCertificateID(fields),
		IPFSHash:          ipfsHash,
	}
	data := record.PayloadFields()
	if _, err := uc.Crypto.EncodePayload(data); err != nil {
		return nil, err
	}
	cert := &domain.DigitalCertificate{
		CertificateData: data,
		InstituteEmail:  identity,
		Timestamp:       uc.now().Unix(),
		Version:         domain.DigitalCertificateVersion,
	}
	payload, err := uc.Crypto.EncodeDocument(cert.SignedContent())
	if err != nil {
		return nil, err
	}
	if cert.DigitalSignature, err = uc.signPayload(ctx, identity, payload); err != nil {
		return nil, err
	}
	return cert, nil
}

func (uc *SignCertificate) now() time.Time {
	if uc.Now == nil {
		return time.Now()
	}
	return uc.Now()
}
