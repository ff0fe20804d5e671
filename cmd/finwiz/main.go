package main

import (
	"context"
	"os"

	"finwiz/internal/backend"
	"finwiz/internal/cache"
	"finwiz/internal/cli"
	apphttp "finwiz/internal/http"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("finwiz")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.AnalyticsCacheTTL,
		TrustedProxies:     cfg.TrustedProxies,
	}, result.Accounts, result.Statements, result.Store, logger)

	caches := cache.NewManager(srv.Cache())

	logger.Info("Starting finwiz server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", cfg.AMQPURL != "")

	err = cli.Run(ctx,
		srv.Run,
		func(ctx context.Context) error { return caches.Run(ctx, cfg.AnalyticsCacheTTL) },
	)
	if err != nil {
		logger.Error("Server stopped with error", "error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
