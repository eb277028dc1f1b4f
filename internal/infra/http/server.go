package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"certus/internal/config"
	"certus/internal/domain"
	"certus/internal/infra/logging"
	"certus/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger zerolog.Logger
	now    func() time.Time
	health func(ctx context.Context) error

	signer     *usecase.SignCertificate
	verifier   *usecase.VerifyCertificate
	revoker    *usecase.RevokeCertificate
	lookup     *usecase.LookupCertificate
	institutes *usecase.InstituteService

	adminAPIKey string

	sessions    domain.SessionCodec
	authorizer  domain.Authorizer
	authInitErr error

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Signer      *usecase.SignCertificate
	Verifier    *usecase.VerifyCertificate
	Revoker     *usecase.RevokeCertificate
	Lookup      *usecase.LookupCertificate
	Institutes  *usecase.InstituteService
	Sessions    domain.SessionCodec
	Authorizer  domain.Authorizer
	RateLimiter domain.RateLimiter
	Logger      zerolog.Logger
	// Health reports whether the ledger backend is reachable.
	Health func(ctx context.Context) error
	Now    func() time.Time
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(deps.Logger))

	s := &Server{
		cfg:         cfg,
		r:           r,
		logger:      deps.Logger,
		now:         deps.Now,
		health:      deps.Health,
		signer:      deps.Signer,
		verifier:    deps.Verifier,
		revoker:     deps.Revoker,
		lookup:      deps.Lookup,
		institutes:  deps.Institutes,
		adminAPIKey: cfg.AdminAPIKey,
		sessions:    deps.Sessions,
		authorizer:  deps.Authorizer,
		rateLimiter: deps.RateLimiter,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.initRateLimit()
	s.initAuth()
	s.routes()
	return s
}

func (s *Server) initAuth() {
	switch s.cfg.AuthMode {
	case "", config.AuthModeNone:
		return
	case config.AuthModeSession:
		if s.sessions == nil {
			s.authInitErr = errors.New("session codec is required when AUTH_MODE=session")
		} else if s.authorizer == nil {
			s.authInitErr = errors.New("authorizer is required when AUTH_MODE=session")
		}
	default:
		s.authInitErr = errors.New("unsupported auth mode")
	}
}

func (s *Server) initRateLimit() {
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	if s.rateLimitWindow <= 0 {
		s.rateLimitWindow = time.Minute
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)

	v1 := s.r.Group("/v1")
	{
		v1.POST("/certificates/derive", s.limit(routeCertificatesDerive), s.handleDerive)
		v1.POST("/certificates", s.limit(routeCertificatesIssue), s.handleIssue)
		v1.GET("/certificates", s.limit(routeCertificatesRead), s.handleLookupByIPFSHash)
		v1.GET("/certificates/:certificate_id", s.limit(routeCertificatesRead), s.handleGetCertificate)
		v1.GET("/certificates/:certificate_id/verify", s.limit(routeCertificatesVerify), s.handleVerify)
		v1.POST("/certificates/verify", s.limit(routeCertificatesVerify), s.handleVerifyByContent)
		v1.POST("/certificates/:certificate_id/revoke", s.limit(routeCertificatesRevoke), s.handleRevoke)

		v1.POST("/institutes", s.limit(routeInstitutesWrite), s.handleRegisterInstitute)
		v1.GET("/institutes/:identity", s.limit(routeInstitutesRead), s.handleGetInstitute)
		v1.POST("/institutes/:identity/verify", s.limit(routeInstitutesWrite), s.handleApproveInstitute)
		v1.GET("/institutes/:identity/credentials", s.limit(routeInstitutesRead), s.handleExportCredentials)
		v1.POST("/credentials/import", s.limit(routeInstitutesWrite), s.handleImportCredentials)

		v1.POST("/sessions", s.limit(routeSessions), s.handleIssueSession)
	}

	s.r.NoRoute(s.handleNoRoute)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	if s.authInitErr != nil {
		return s.authInitErr
	}
	s.logger.Info().Str("addr", s.cfg.HTTPAddr).Str("auth_mode", s.cfg.AuthMode).Msg("listening")
	return s.r.Run(s.cfg.HTTPAddr)
}

// Serve runs until ctx is cancelled and then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	if s.authInitErr != nil {
		return s.authInitErr
	}
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.HTTPAddr).Str("auth_mode", s.cfg.AuthMode).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
