// Command cacheserver serves the catalog access layer over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/fetch"
	"github.com/LavishGent/catalogfetch/internal/logging"
	"github.com/LavishGent/catalogfetch/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("CATALOGFETCH_CONFIG"), "path to a JSON config file")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	facade, err := fetch.New(cfg, fetch.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to start access layer", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, facade, facade.MetricsHandler(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := facade.Close(); err != nil {
		logger.Error("access layer shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
