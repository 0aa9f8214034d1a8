// Package app wires the payment ledger services together and manages
// their lifecycle.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/services/approval"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/services/credits"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/services/payout"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/services/registry"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage/memory"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage/postgres"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/system"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/transfer"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/config"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// Stores bundles the persistence backends. Zero-value fields fall back to
// a shared in-memory store.
type Stores struct {
	Lists   storage.PaymentListStore
	Credits storage.StorageCreditStore
}

// Application is the assembled payment ledger.
type Application struct {
	cfg *config.Config
	log *logger.Logger
	db  *sql.DB

	Credits  *credits.Service
	Registry *registry.Service
	Approval *approval.Service
	Payout   *payout.Engine

	Native  *transfer.NativeLedger
	Tokens  *transfer.TokenBank
	Intents *transfer.IntentsHub
	Router  *transfer.Router

	manager *system.Manager
}

// New assembles the application from configuration. A configured database
// DSN selects the postgres stores; otherwise everything lives in memory.
func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.New(logger.LoggingConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
	}

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, err
	}
	return newWithStores(cfg, log, stores, db), nil
}

// NewWithStores assembles the application over caller-provided stores.
// Tests and embedders use this to skip configuration entirely.
func NewWithStores(cfg *config.Config, log *logger.Logger, stores Stores) *Application {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Lists == nil || stores.Credits == nil {
		mem := memory.New()
		if stores.Lists == nil {
			stores.Lists = mem
		}
		if stores.Credits == nil {
			stores.Credits = mem
		}
	}
	return newWithStores(cfg, log, stores, nil)
}

func newWithStores(cfg *config.Config, log *logger.Logger, stores Stores, db *sql.DB) *Application {
	native := transfer.NewNativeLedger()
	tokens := transfer.NewTokenBank()
	intents := transfer.NewIntentsHub(tokens)
	router := transfer.NewRouter(native, tokens, intents, log.WithComponent("token-router"))

	// One lock serializes every list mutation; the credit ledger keeps its
	// own and is only ever acquired nested inside the list lock.
	listMu := &sync.Mutex{}

	creditSvc := credits.New(stores.Credits, nil, log.WithComponent("credits"))
	registrySvc := registry.New(stores.Lists, creditSvc, listMu, log.WithComponent("registry"))
	approvalSvc := approval.New(stores.Lists, listMu, log.WithComponent("approval"))
	payoutEngine := payout.NewEngine(stores.Lists, router, listMu, log.WithComponent("payout"))

	manager := system.NewManager(log.WithComponent("system"))
	if cfg.Worker.Enabled {
		worker := payout.NewWorker(payoutEngine, stores.Lists,
			time.Duration(cfg.Worker.PollInterval)*time.Second,
			cfg.Worker.BatchSize,
			log.WithComponent("payout-worker"))
		manager.Register(worker)
	}

	return &Application{
		cfg:      cfg,
		log:      log,
		db:       db,
		Credits:  creditSvc,
		Registry: registrySvc,
		Approval: approvalSvc,
		Payout:   payoutEngine,
		Native:   native,
		Tokens:   tokens,
		Intents:  intents,
		Router:   router,
		manager:  manager,
	}
}

// Start launches the background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop halts the background services and closes the database.
func (a *Application) Stop(ctx context.Context) error {
	a.manager.Stop(ctx)
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warnf("error closing database connection: %v", err)
		}
	}
	return nil
}

// Config returns the active configuration.
func (a *Application) Config() *config.Config { return a.cfg }

// Log returns the application logger.
func (a *Application) Log() *logger.Logger { return a.log }

func buildStores(cfg *config.Config, log *logger.Logger) (Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Info("no database configured, using in-memory stores")
		mem := memory.New()
		return Stores{Lists: mem, Credits: mem}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return Stores{}, nil, fmt.Errorf("open database: %w", err)
	}

	store := postgres.New(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Bootstrap(ctx); err != nil {
		db.Close()
		return Stores{}, nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return Stores{Lists: store, Credits: store}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
