package usecase

import (
	"context"
	"fmt"
	"strings"

	"certus/internal/domain"
)

type LookupCertificate struct {
	Ledger domain.Ledger
}

func (uc *LookupCertificate) Get(ctx context.Context, id domain.CertificateID) (*domain.CertificateRecord, error) {
	if !domain.ValidCertificateID(string(id)) {
		return nil, fmt.Errorf("%w: certificate_id must be 64 lowercase hex characters", domain.ErrInvalidInput)
	}
	rec, err := uc.Ledger.GetCertificate(ctx, id)
	if err != nil {
		return nil, ledgerError("get certificate", err)
	}
	return rec, nil
}

// FindByIPFSHash scans every certificate on the ledger for one whose file has
// the given content address.
func (uc *LookupCertificate) FindByIPFSHash(ctx context.Context, ipfsHash string) (*domain.CertificateRecord, error) {
	ipfsHash = strings.TrimSpace(ipfsHash)
	if ipfsHash == "" {
		return nil, fmt.Errorf("%w: ipfs_hash is required", domain.ErrInvalidInput)
	}
	ids, err := uc.Ledger.ListCertificateIDs(ctx)
	if err != nil {
		return nil, ledgerError("list certificates", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := uc.Ledger.GetCertificate(ctx, id)
		if err != nil {
			return nil, ledgerError("get certificate", err)
		}
		if rec.IPFSHash == ipfsHash {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("certificate with ipfs_hash %s: %w", ipfsHash, domain.ErrNotFound)
}
