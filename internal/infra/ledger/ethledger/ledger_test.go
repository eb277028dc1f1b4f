package ethledger

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/ledger/ledgertest"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(certificationABI))
	require.NoError(t, err)
	return parsed
}

func TestABIHasContractMethods(t *testing.T) {
	parsed := parsedABI(t)
	for _, name := range []string{
		"generateCertificate", "getCertificate", "isVerified", "isRevoked",
		"revokeCertificate", "getAllCertificateIds", "registerInstitute",
		"verifyInstitute", "getInstitute",
	} {
		_, ok := parsed.Methods[name]
		assert.True(t, ok, "missing method %s", name)
	}
}

func TestDecodeCertificate(t *testing.T) {
	parsed := parsedABI(t)
	outputs := parsed.Methods["getCertificate"].Outputs
	data, err := outputs.Pack("1001", "Ada Lovelace", "Systems Design", "Acme Institute",
		"QmHash", "acme@example.org", "c2ln", true, big.NewInt(1700000000))
	require.NoError(t, err)
	values, err := outputs.Unpack(data)
	require.NoError(t, err)

	id := domain.CertificateID(strings.Repeat("a", 64))
	rec, err := decodeCertificate(id, values)
	require.NoError(t, err)
	assert.Equal(t, id, rec.CertificateID)
	assert.Equal(t, "1001", rec.UID)
	assert.Equal(t, "Ada Lovelace", rec.CandidateName)
	assert.Equal(t, "Acme Institute", rec.OrgName)
	assert.Equal(t, "QmHash", rec.IPFSHash)
	assert.Equal(t, "acme@example.org", rec.InstituteEmail)
	assert.True(t, rec.Revoked)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rec.IssuedAt)
}

func TestDecodeInstitute(t *testing.T) {
	parsed := parsedABI(t)
	outputs := parsed.Methods["getInstitute"].Outputs

	data, err := outputs.Pack("Acme", "PEM", true, big.NewInt(42), true)
	require.NoError(t, err)
	values, err := outputs.Unpack(data)
	require.NoError(t, err)
	rec, err := decodeInstitute("acme@example.org", values)
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec.Name)
	assert.Equal(t, "PEM", rec.PublicKeyPEM)
	assert.True(t, rec.IsVerified)

	data, err = outputs.Pack("", "", false, big.NewInt(0), false)
	require.NoError(t, err)
	values, err = outputs.Unpack(data)
	require.NoError(t, err)
	_, err = decodeInstitute("nobody@example.org", values)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecodeRejectsWrongArity(t *testing.T) {
	_, err := decodeCertificate("x", []any{"only"})
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	_, err = singleBool(nil)
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestLoadDeploymentConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployment_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Certification": "0x5FbDB2315678afecb367f032d93F642f64180aa3"}`), 0o644))

	addr, err := LoadDeploymentConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", addr.Hex())

	require.NoError(t, os.WriteFile(path, []byte(`{"Other": "0x01"}`), 0o644))
	_, err = LoadDeploymentConfig(path)
	assert.Error(t, err)

	_, err = LoadDeploymentConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	require.Error(t, err)
	_, err = Dial(context.Background(), Config{RPCURL: "http://127.0.0.1:8545"})
	require.Error(t, err)
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New(nil, [20]byte{}, Config{PrivateKeyHex: "not-hex"})
	require.Error(t, err)
}

func TestReadOnlyLedgerRefusesWrites(t *testing.T) {
	l, err := New(nil, [20]byte{}, Config{})
	require.NoError(t, err)
	err = l.transact(context.Background(), "verifyInstitute", "acme@example.org")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

// TestContractLedger runs against a node with the contract deployed, e.g. a
// local anvil chain. Chain state persists, so it uses a fresh uid.
func TestContractLedger(t *testing.T) {
	rpc := os.Getenv("CERTUS_TEST_ETH_RPC")
	if rpc == "" {
		t.Skip("CERTUS_TEST_ETH_RPC not set")
	}
	ctx := context.Background()
	l, err := Dial(ctx, Config{
		RPCURL:          rpc,
		ContractAddress: os.Getenv("CERTUS_TEST_ETH_CONTRACT"),
		PrivateKeyHex:   os.Getenv("CERTUS_TEST_ETH_KEY"),
	})
	require.NoError(t, err)
	defer l.Close()

	rec := ledgertest.Record(strconv.FormatInt(time.Now().UnixNano(), 10))
	require.NoError(t, l.IssueCertificate(ctx, rec))
	require.ErrorIs(t, l.IssueCertificate(ctx, rec), domain.ErrCertificateExists)

	got, err := l.GetCertificate(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.Equal(t, rec.CertificateFields, got.CertificateFields)

	require.NoError(t, l.RevokeCertificate(ctx, rec.CertificateID))
	revoked, err := l.IsRevoked(ctx, rec.CertificateID)
	require.NoError(t, err)
	assert.True(t, revoked)
}
