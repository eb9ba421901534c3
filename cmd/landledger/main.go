package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"landledger/internal/auth"
	"landledger/internal/backend"
	"landledger/internal/cli"
	"landledger/internal/config"
	apphttp "landledger/internal/http"
	applog "landledger/internal/log"
	"landledger/internal/services"
)

func main() {
	cfg := cli.LoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(applog.ComponentApp, cfg)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	agreements := services.NewAgreementService(be.Store, be.Publisher, be.Dashboard)
	authService := services.NewAuthService(be.Store, auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), auth.NewHasher())

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Agreements: agreements,
		Auth:       authService,
		Dashboard:  be.Dashboard,
		Store:      be.Store,
	}, apphttp.Options{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting landledger server",
		"port", cfg.Port,
		"backend", backendCfg.Type,
		"amqp_enabled", be.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
