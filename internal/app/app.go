// Package app wires configuration into the ledger, key store and use cases
// shared by certusd and the certus CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certus/internal/config"
	"certus/internal/domain"
	"certus/internal/infra/auth/session"
	"certus/internal/infra/cachemem"
	"certus/internal/infra/certtext"
	"certus/internal/infra/crypto"
	"certus/internal/infra/db"
	httpinfra "certus/internal/infra/http"
	"certus/internal/infra/keys/pemstore"
	"certus/internal/infra/ledger/ethledger"
	"certus/internal/infra/ledger/memledger"
	"certus/internal/infra/ledger/sqliteledger"
	"certus/internal/infra/policyopa"
	"certus/internal/infra/ratelimit"
	"certus/internal/infra/uid"
	"certus/internal/usecase"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config config.Config
	Logger zerolog.Logger

	Keys   *pemstore.Store
	Crypto *crypto.Service
	Ledger domain.Ledger
	UIDs   domain.UIDAllocator

	Signer     *usecase.SignCertificate
	Verifier   *usecase.VerifyCertificate
	Revoker    *usecase.RevokeCertificate
	Lookup     *usecase.LookupCertificate
	Institutes *usecase.InstituteService

	Sessions    *session.Codec
	Authorizer  domain.Authorizer
	RateLimiter domain.RateLimiter

	closers []func() error
}

// New builds every component named by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	format, err := crypto.ParsePayloadFormat(cfg.CanonicalFormat)
	if err != nil {
		return nil, err
	}
	keys, err := pemstore.NewStore(cfg.KeysDir)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Keys:   keys,
		Crypto: crypto.NewService(format),
	}
	if err := a.openLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}
	rdb := a.redisClient()
	if err := a.initUIDs(ctx, rdb); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.AuthMode == config.AuthModeSession {
		if err := a.initAuth(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.initRateLimit(rdb)

	a.Signer = usecase.NewSignCertificate(keys, a.Crypto, a.Ledger)
	a.Signer.UIDs = a.UIDs
	a.Signer.Renderer = certtext.Renderer{}
	publicKeys := usecase.PublicKeyProvider(keys)
	if ttl := cfg.KeyCacheTTL(); ttl > 0 {
		publicKeys = cachemem.New(keys, ttl)
	}
	a.Verifier = usecase.NewVerifyCertificate(a.Ledger, publicKeys, a.Crypto)
	a.Revoker = usecase.NewRevokeCertificate(a.Ledger, a.Authorizer)
	a.Lookup = &usecase.LookupCertificate{Ledger: a.Ledger}
	a.Institutes = usecase.NewInstituteService(keys, a.Ledger)

	logger.Debug().
		Str("ledger", cfg.LedgerBackend).
		Str("keys_dir", keys.Root()).
		Str("canonical_format", string(format)).
		Msg("components ready")
	return a, nil
}

// initUIDs picks the UID allocator and, for a durable ledger, moves its
// counters past every UID the ledger already holds.
func (a *App) initUIDs(ctx context.Context, rdb *redis.Client) error {
	var alloc interface {
		domain.UIDAllocator
		uid.Raiser
	}
	if rdb != nil {
		alloc = uid.NewRedis(rdb)
	} else {
		alloc = uid.NewMemory()
	}
	a.UIDs = alloc
	if a.Config.LedgerBackend == config.LedgerMemory {
		return nil
	}
	seeded, err := uid.SeedFromLedger(ctx, alloc, a.Ledger)
	if err != nil {
		return fmt.Errorf("seed uid allocator: %w", err)
	}
	a.Logger.Debug().Int("institutes", seeded).Msg("uid allocator seeded from ledger")
	return nil
}

func (a *App) openLedger(ctx context.Context) error {
	cfg := a.Config
	switch cfg.LedgerBackend {
	case "", config.LedgerMemory:
		a.Ledger = memledger.New()
	case config.LedgerSQLite:
		l, err := sqliteledger.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.Ledger = l
		a.closers = append(a.closers, l.Close)
	case config.LedgerPostgres:
		store, err := db.NewStore(cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migrate ledger schema: %w", err)
		}
		a.Ledger = store.Ledger()
	case config.LedgerEthereum:
		l, err := ethledger.Dial(ctx, ethledger.Config{
			RPCURL:           cfg.EthRPCURL,
			ContractAddress:  cfg.EthContractAddress,
			DeploymentConfig: cfg.EthDeploymentConfig,
			PrivateKeyHex:    cfg.EthPrivateKeyHex,
			ChainID:          int64(cfg.EthChainID),
			Timeout:          cfg.LedgerTimeout(),
		})
		if err != nil {
			return err
		}
		a.Ledger = l
		a.closers = append(a.closers, func() error { l.Close(); return nil })
		a.Logger.Info().Str("contract", l.Address().Hex()).Msg("ethereum ledger connected")
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}
	return nil
}

func (a *App) redisClient() *redis.Client {
	if a.Config.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	a.closers = append(a.closers, client.Close)
	return client
}

func (a *App) initAuth(ctx context.Context) error {
	codec, err := session.NewCodec([]byte(a.Config.SessionSecret), a.Config.SessionTTL())
	if err != nil {
		return err
	}
	a.Sessions = codec
	var engine *policyopa.Engine
	if a.Config.PolicyPath != "" {
		engine, err = policyopa.NewEngineFromPath(ctx, a.Config.PolicyPath)
	} else {
		engine, err = policyopa.NewEngine(ctx)
	}
	if err != nil {
		return err
	}
	a.Authorizer = engine
	return nil
}

func (a *App) initRateLimit(rdb *redis.Client) {
	if a.Config.RateLimitRequests <= 0 {
		return
	}
	if rdb != nil {
		if limiter, err := ratelimit.NewRedisLimiter(rdb, nil); err == nil {
			a.RateLimiter = limiter
			return
		}
	}
	a.RateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: a.Config.RateLimitMaxKeys})
}

// Health checks the ledger with a lookup that is expected to miss.
func (a *App) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.Ledger.GetInstitute(ctx, "healthz.certus.invalid")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (a *App) ServerDeps() httpinfra.ServerDeps {
	deps := httpinfra.ServerDeps{
		Signer:      a.Signer,
		Verifier:    a.Verifier,
		Revoker:     a.Revoker,
		Lookup:      a.Lookup,
		Institutes:  a.Institutes,
		Authorizer:  a.Authorizer,
		RateLimiter: a.RateLimiter,
		Logger:      a.Logger,
		Health:      a.Health,
	}
	if a.Sessions != nil {
		deps.Sessions = a.Sessions
	}
	return deps
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
