package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"certus/internal/app"
	"certus/internal/config"
	httpinfra "certus/internal/infra/http"
	"certus/internal/infra/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "YAML config file (default $CERTUS_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger := logging.New("info", "json", os.Stderr)
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init components")
	}
	defer a.Close()

	srv := httpinfra.NewServer(cfg, a.ServerDeps())
	if err := srv.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited")
		a.Close()
		os.Exit(1)
	}
	logger.Info().Msg("certusd stopped")
}
