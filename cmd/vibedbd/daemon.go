// Package main provides the vibedbd daemon.
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vibedb/internal/audit"
	"vibedb/internal/auth"
	"vibedb/internal/authz"
	"vibedb/internal/config"
	"vibedb/internal/dispatch"
	"vibedb/internal/grants"
	"vibedb/internal/lifecycle"
	"vibedb/internal/logger"
	"vibedb/internal/notify"
	"vibedb/internal/pgrole"
	"vibedb/internal/pool"
	"vibedb/internal/server"
	"vibedb/internal/storage/migrate"
	"vibedb/internal/storage/postgres"
	"vibedb/internal/vault"
)

// Daemon manages all vibedbd components and their lifecycle.
type Daemon struct {
	cfg *config.Config
	log *logger.Logger

	store    *postgres.Store
	pools    *pool.Registry
	recorder *audit.Recorder
	srv      *server.Server

	expiryCancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg *config.Config, log *logger.Logger) *Daemon {
	return &Daemon{cfg: cfg, log: log}
}

// Start initializes and starts all daemon components in the correct order.
// Order: migrations -> catalog store -> components -> HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon already running")
	}

	d.log.Info("starting daemon components")

	if err := migrate.Run(ctx, d.cfg.Catalog.URL); err != nil {
		return fmt.Errorf("failed to run catalog migrations: %w", err)
	}
	d.log.Debug("catalog migrations applied")

	store, err := postgres.New(ctx, d.cfg.Catalog)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return fmt.Errorf("catalog ping failed: %w", err)
	}
	d.store = store
	d.log.Info("catalog store initialized")

	v, err := vault.New(d.cfg.Security.EncryptionKey, d.cfg.Security.APIKeySalt)
	if err != nil {
		d.stopStore()
		return fmt.Errorf("failed to initialize vault: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d.pools = pool.NewRegistry(d.log.Logger, registry)
	d.recorder = audit.NewRecorder(store, d.log.Logger, registry)

	roles := pgrole.New(store, v, d.pools, d.log.Logger)
	notifier := notify.NewSMTP(d.cfg.Notifier, d.log.Logger)

	d.srv = server.New(server.Deps{
		Config:     *d.cfg,
		Log:        d.log,
		Store:      store,
		Vault:      v,
		Authn:      auth.New(store, v, d.log.Logger, d.cfg.Server.TrustGateway),
		Authorizer: authz.New(store, d.log.Logger),
		Pools:      d.pools,
		Roles:      roles,
		Grants:     grants.New(store, d.log.Logger),
		Dispatcher: dispatch.New(d.cfg.Limits, d.log.Logger),
		Lifecycle:  lifecycle.New(store, v, d.pools, roles, d.log.Logger),
		Recorder:   d.recorder,
		Notifier:   notifier,
		Registry:   registry,
	})

	expiryCtx, cancel := context.WithCancel(context.Background())
	d.expiryCancel = cancel
	go notify.NewExpiryJob(store, notifier, d.log.Logger, time.Hour).Run(expiryCtx)

	go func() {
		if err := d.srv.Start(); err != nil {
			d.log.Error("http server failed", "error", err)
		}
	}()

	d.running = true
	d.log.Info("daemon started successfully")
	return nil
}

// Stop gracefully shuts down all daemon components in reverse order.
// Order: HTTP server -> expiry job -> audit recorder -> pools -> catalog.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.log.Info("stopping daemon components")

	var errs []error

	if d.srv != nil {
		if err := d.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
		d.srv = nil
	}

	if d.expiryCancel != nil {
		d.expiryCancel()
		d.expiryCancel = nil
	}

	if d.recorder != nil {
		d.recorder.Close()
		d.recorder = nil
	}

	if d.pools != nil {
		d.pools.Close()
		d.pools = nil
	}

	if err := d.stopStore(); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}

	d.running = false

	if len(errs) > 0 {
		d.log.Error("daemon stopped with errors", "errors", errs)
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	d.log.Info("daemon stopped successfully")
	return nil
}

func (d *Daemon) stopStore() error {
	if d.store == nil {
		return nil
	}
	d.store.Close()
	d.store = nil
	return nil
}

// IsRunning returns true if the daemon is running.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
