package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buffet/pkg/catalog"
	"buffet/pkg/httpapi"
	"buffet/pkg/lock"
	"buffet/pkg/order"
	"buffet/pkg/storage"
	"buffet/pkg/storage/gsheets"
	"buffet/pkg/storage/memorystore"
	"buffet/pkg/storage/sqlstore"
	"buffet/pkg/version"
)

const shutdownTimeout = 10 * time.Second

// lockLeaseMargin is added on top of the longest time a commit can hold the lock.
const lockLeaseMargin = 5 * time.Second

// lockLease covers a commit that times out and then spends the whole
// compensation budget restoring rows.
func lockLease(commitTimeout time.Duration) time.Duration {
	return commitTimeout + order.CompensationTimeout + lockLeaseMargin
}

// Run composes the store, the commit pipeline and the HTTP server, and serves
// until ctx ends or the process receives SIGINT or SIGTERM.
func Run(ctx context.Context, args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	cfg, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if cfg.showVersion {
		logger.Info("buffet", "version", version.Version())
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to open %s store: %w", cfg.store, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	stockSheet := cfg.File.StockSheet
	if stockSheet == "" {
		stockSheet = catalog.DefaultStockSheet
	}
	if cfg.seed {
		seeded, err := seedCatalog(ctx, store, stockSheet, cfg.layout())
		switch {
		case err != nil:
			logger.Warn("catalog not seeded", "error", err)
		case seeded:
			logger.Info("seeded demo catalog", "sheet", stockSheet, "products", len(demoProducts))
		}
	}

	ledgerOpts := []catalog.LedgerOption{
		catalog.WithLayout(cfg.layout()),
		catalog.WithSheets(stockSheet, cfg.File.SalesSheet),
		catalog.WithLogger(logger),
	}
	if cfg.File.SpacePrefix != "" {
		ledgerOpts = append(ledgerOpts, catalog.WithSpacePrefix(cfg.File.SpacePrefix))
	}
	if cfg.File.CatalogAttempts > 0 || cfg.File.CatalogRetryDelay > 0 {
		ledgerOpts = append(ledgerOpts, catalog.WithRetry(cfg.File.CatalogAttempts, cfg.File.CatalogRetryDelay))
	}
	ledger := catalog.NewLedger(store, ledgerOpts...)

	serviceOpts := []order.Option{
		order.WithLogger(logger),
		order.WithCommitTimeout(cfg.commitTimeout),
	}
	if cfg.File.QueueTimeout > 0 {
		serviceOpts = append(serviceOpts, order.WithQueueTimeout(cfg.File.QueueTimeout))
	}
	if cfg.redisURL != "" {
		locker, err := lock.NewRedis(ctx, cfg.redisURL, lockLease(cfg.commitTimeout), logger)
		if err != nil {
			return fmt.Errorf("unable to connect to redis: %w", err)
		}
		defer locker.Close()
		serviceOpts = append(serviceOpts, order.WithLocker(locker))
		logger.Info("commit lock shared through redis")
	}
	orders := order.NewService(ledger, serviceOpts...)
	defer orders.Close()

	api := httpapi.New(orders, ledger.Layout(), logger)

	listener, err := net.Listen("tcp", cfg.address())
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", cfg.address(), err)
	}
	server := &http.Server{
		Handler:      api.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.commitTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("buffet service is running", "addr", listener.Addr().String(), "store", cfg.store, "version", version.Version())
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openStore builds the backend selected by -store and its close function.
func openStore(ctx context.Context, cfg Config) (storage.Store, func() error, error) {
	switch cfg.store {
	case storeMemory:
		store, err := memorystore.Open(cfg.storePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case storeSQLite:
		path := cfg.storePath
		if path == "" {
			path = "buffet.db"
		}
		store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case storePgx:
		store, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, cfg.dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case storeSheets:
		store, err := gsheets.New(ctx, cfg.spreadsheetID, gsheets.CredentialsOption(cfg.credentials)...)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.store)
}
