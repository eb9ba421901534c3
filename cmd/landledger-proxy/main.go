package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"landledger/internal/cli"
	"landledger/internal/config"
	applog "landledger/internal/log"
	"landledger/internal/proxy"
)

func main() {
	cfg := cli.LoadConfig((*config.Config).ValidateProxy)
	logger := cli.SetupLogger(applog.ComponentProxy, cfg)

	p, err := proxy.New(cfg.ProxyUpstream, 30*time.Second, logger)
	if err != nil {
		logger.Error("Invalid proxy configuration", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ProxyPort,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Proxy shutdown error", "error", err)
		}
	})

	logger.Info("Starting landledger proxy", "port", cfg.ProxyPort, "upstream", cfg.ProxyUpstream)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Proxy error", "error", err, "port", cfg.ProxyPort)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
