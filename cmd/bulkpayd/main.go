// Package main runs the bulk payment daemon: the REST API, the payout
// worker and the backing stores.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	app "github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/httpapi"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/config"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: BULKPAY_CONFIG or config/bulkpay.yaml)")
	flag.Parse()

	// Local development convenience; missing .env files are fine.
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	application, err := app.New(cfg, logg)
	if err != nil {
		logg.Fatalf("Failed to assemble application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logg.Fatalf("Failed to start application: %v", err)
	}

	server := httpapi.NewServer(cfg.Server, logg.WithComponent("httpapi"), httpapi.NewHandler(application))
	if err := server.Start(ctx); err != nil {
		logg.Fatalf("Failed to start HTTP server: %v", err)
	}

	logg.Info("bulk payment daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logg.Info("shutting down")
	shutdownCtx := context.Background()
	if err := server.Stop(shutdownCtx); err != nil {
		logg.Warnf("HTTP server shutdown: %v", err)
	}
	if err := application.Stop(shutdownCtx); err != nil {
		logg.Warnf("application shutdown: %v", err)
	}
}
