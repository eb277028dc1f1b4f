// Package ethledger talks to the Certification smart contract on an
// Ethereum-compatible chain.
package ethledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"certus/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is what the ledger needs from a node connection. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Config struct {
	RPCURL           string
	ContractAddress  string
	DeploymentConfig string
	PrivateKeyHex    string
	ChainID          int64
	Timeout          time.Duration
}

type Ledger struct {
	backend  Backend
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
	signer   *ecdsa.PrivateKey
	chainID  *big.Int
	timeout  time.Duration
	closeFn  func()
}

var _ domain.Ledger = (*Ledger)(nil)

// Dial connects to cfg.RPCURL and binds the Certification contract. Without a
// private key the ledger is read-only and every mutation fails.
func Dial(ctx context.Context, cfg Config) (*Ledger, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("ETH_RPC_URL is required for the ethereum ledger")
	}
	address, err := resolveAddress(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum node: %w", err)
	}
	l, err := New(client, address, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	l.closeFn = client.Close
	if l.chainID == nil && l.signer != nil {
		id, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
		l.chainID = id
	}
	return l, nil
}

func New(backend Backend, address common.Address, cfg Config) (*Ledger, error) {
	parsed, err := abi.JSON(strings.NewReader(certificationABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	l := &Ledger{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		abi:      parsed,
		address:  address,
		timeout:  cfg.Timeout,
	}
	if l.timeout <= 0 {
		l.timeout = 30 * time.Second
	}
	if cfg.ChainID > 0 {
		l.chainID = big.NewInt(cfg.ChainID)
	}
	if key := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x"); key != "" {
		signer, err := ethcrypto.HexToECDSA(key)
		if err != nil {
			return nil, fmt.Errorf("parse transaction key: %w", err)
		}
		l.signer = signer
	}
	return l, nil
}

func resolveAddress(cfg Config) (common.Address, error) {
	if strings.TrimSpace(cfg.ContractAddress) != "" {
		return parseAddress(cfg.ContractAddress)
	}
	if strings.TrimSpace(cfg.DeploymentConfig) != "" {
		return LoadDeploymentConfig(cfg.DeploymentConfig)
	}
	return common.Address{}, errors.New("ETH_CONTRACT_ADDRESS or ETH_DEPLOYMENT_CONFIG is required")
}

func (l *Ledger) Close() {
	if l.closeFn != nil {
		l.closeFn()
	}
}

func (l *Ledger) Address() common.Address {
	return l.address
}

func (l *Ledger) RegisterInstitute(ctx context.Context, identity, name, publicKeyPEM string) error {
	if !domain.ValidIdentity(identity) {
		return fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	return l.transact(ctx, "registerInstitute", identity, name, publicKeyPEM)
}

func (l *Ledger) VerifyInstitute(ctx context.Context, identity string) error {
	if _, err := l.GetInstitute(ctx, identity); err != nil {
		return err
	}
	return l.transact(ctx, "verifyInstitute", identity)
}

// IssueCertificate checks for an existing id before sending the transaction;
// the contract enforces the same rule.
func (l *Ledger) IssueCertificate(ctx context.Context, record domain.CertificateRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	exists, err := l.exists(ctx, record.CertificateID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrCertificateExists, record.CertificateID)
	}
	return l.transact(ctx, "generateCertificate",
		string(record.CertificateID), record.UID, record.CandidateName, record.CourseName, record.OrgName,
		record.IPFSHash, record.InstituteEmail, record.DigitalSignature)
}

func (l *Ledger) RevokeCertificate(ctx context.Context, id domain.CertificateID) error {
	exists, err := l.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
	}
	return l.transact(ctx, "revokeCertificate", string(id))
}

func (l *Ledger) GetCertificate(ctx context.Context, id domain.CertificateID) (*domain.CertificateRecord, error) {
	exists, err := l.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
	}
	out, err := l.call(ctx, "getCertificate", string(id))
	if err != nil {
		return nil, err
	}
	return decodeCertificate(id, out)
}

func (l *Ledger) IsRevoked(ctx context.Context, id domain.CertificateID) (bool, error) {
	exists, err := l.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
	}
	out, err := l.call(ctx, "isRevoked", string(id))
	if err != nil {
		return false, err
	}
	return singleBool(out)
}

func (l *Ledger) GetInstitute(ctx context.Context, identity string) (*domain.InstituteRecord, error) {
	out, err := l.call(ctx, "getInstitute", identity)
	if err != nil {
		return nil, err
	}
	return decodeInstitute(identity, out)
}

func (l *Ledger) ListCertificateIDs(ctx context.Context) ([]domain.CertificateID, error) {
	out, err := l.call(ctx, "getAllCertificateIds")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, unexpectedOutput("getAllCertificateIds", out)
	}
	raw := *abi.ConvertType(out[0], new([]string)).(*[]string)
	ids := make([]domain.CertificateID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, domain.CertificateID(id))
	}
	return ids, nil
}

// exists uses the contract's isVerified view, which reports whether a
// certificate id has been issued.
func (l *Ledger) exists(ctx context.Context, id domain.CertificateID) (bool, error) {
	out, err := l.call(ctx, "isVerified", string(id))
	if err != nil {
		return false, err
	}
	return singleBool(out)
}

func (l *Ledger) call(ctx context.Context, method string, params ...any) ([]any, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", method, domain.ErrLedgerUnavailable, err)
	}
	return out, nil
}

// transact returns only after the transaction is mined successfully.
func (l *Ledger) transact(ctx context.Context, method string, params ...any) error {
	if l.signer == nil {
		return fmt.Errorf("%s: %w: no transaction key configured", method, domain.ErrForbidden)
	}
	if l.chainID == nil {
		return fmt.Errorf("%s: chain id is unknown", method)
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	opts, err := bind.NewKeyedTransactorWithChainID(l.signer, l.chainID)
	if err != nil {
		return fmt.Errorf("%s: build transactor: %w", method, err)
	}
	opts.Context = ctx
	tx, err := l.contract.Transact(opts, method, params...)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", method, domain.ErrLedgerUnavailable, err)
	}
	receipt, err := bind.WaitMined(ctx, l.backend, tx)
	if err != nil {
		return fmt.Errorf("%s: %w: wait for %s: %v", method, domain.ErrLedgerUnavailable, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s: %w: transaction %s reverted", method, domain.ErrLedgerUnavailable, tx.Hash().Hex())
	}
	return nil
}

func decodeCertificate(id domain.CertificateID, out []any) (*domain.CertificateRecord, error) {
	if len(out) != 9 {
		return nil, unexpectedOutput("getCertificate", out)
	}
	str := func(i int) string { return *abi.ConvertType(out[i], new(string)).(*string) }
	issuedAt := *abi.ConvertType(out[8], new(*big.Int)).(**big.Int)
	rec := &domain.CertificateRecord{
		CertificateFields: domain.CertificateFields{
			UID:           str(0),
			CandidateName: str(1),
			CourseName:    str(2),
			OrgName:       str(3),
		},
		CertificateID:    id,
		IPFSHash:         str(4),
		InstituteEmail:   str(5),
		DigitalSignature: str(6),
		Revoked:          *abi.ConvertType(out[7], new(bool)).(*bool),
	}
	if issuedAt != nil && issuedAt.Sign() > 0 {
		rec.IssuedAt = time.Unix(issuedAt.Int64(), 0).UTC()
	}
	return rec, nil
}

func decodeInstitute(identity string, out []any) (*domain.InstituteRecord, error) {
	if len(out) != 5 {
		return nil, unexpectedOutput("getInstitute", out)
	}
	if !*abi.ConvertType(out[4], new(bool)).(*bool) {
		return nil, fmt.Errorf("institute %s: %w", identity, domain.ErrNotFound)
	}
	registeredAt := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)
	rec := &domain.InstituteRecord{
		Identity:     identity,
		Name:         *abi.ConvertType(out[0], new(string)).(*string),
		PublicKeyPEM: *abi.ConvertType(out[1], new(string)).(*string),
		IsVerified:   *abi.ConvertType(out[2], new(bool)).(*bool),
	}
	if registeredAt != nil && registeredAt.Sign() > 0 {
		rec.RegisteredAt = time.Unix(registeredAt.Int64(), 0).UTC()
	}
	return rec, nil
}

func singleBool(out []any) (bool, error) {
	if len(out) != 1 {
		return false, unexpectedOutput("bool view", out)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func unexpectedOutput(method string, out []any) error {
	return fmt.Errorf("%s: %w: unexpected output arity %d", method, domain.ErrLedgerUnavailable, len(out))
}
