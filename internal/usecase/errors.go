package usecase

import (
	"errors"
	"fmt"

	"certus/internal/domain"
)

var passthroughLedgerErrors = []error{
	domain.ErrNotFound,
	domain.ErrCertificateExists,
	domain.ErrInvalidInput,
	domain.ErrLedgerUnavailable,
	domain.ErrForbidden,
}

// ledgerError keeps the ledger's own domain errors and classifies anything
// else as the ledger being unavailable.
func ledgerError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range passthroughLedgerErrors {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrLedgerUnavailable, err)
}
