package db

import (
	"context"
	"os"
	"testing"

	"certus/internal/config"
	"certus/internal/domain"
	"certus/internal/infra/ledger/ledgertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_NoDatabase(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)

	_, err := l.GetCertificate(ctx, ledgertest.Record("1").CertificateID)
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	assert.ErrorIs(t, l.IssueCertificate(ctx, ledgertest.Record("1")), domain.ErrLedgerUnavailable)
	assert.ErrorIs(t, l.RegisterInstitute(ctx, "acme@example.org", "Acme", "PEM"), domain.ErrLedgerUnavailable)
}

func TestNewStore_RequiresDSN(t *testing.T) {
	_, err := NewStore(config.Config{})
	require.Error(t, err)
}

func TestLedgerContract_Postgres(t *testing.T) {
	dsn := os.Getenv("CERTUS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CERTUS_TEST_POSTGRES_DSN not set")
	}
	store, err := NewStore(config.Config{PostgresDSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate())

	ledgertest.Run(t, func(t *testing.T) domain.Ledger {
		require.NoError(t, store.DB.Exec("TRUNCATE certificates, certificate_revocations, institutes RESTART IDENTITY").Error)
		return store.Ledger()
	})
}
