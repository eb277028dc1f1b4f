package db

import (
	"errors"
	"fmt"

	"certus/internal/domain"

	"gorm.io/gorm"
)

var errDBUnavailable = fmt.Errorf("db unavailable: %w", domain.ErrLedgerUnavailable)

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return unavailable(what, err)
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrLedgerUnavailable, err)
}
