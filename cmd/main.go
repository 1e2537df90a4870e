package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/proofkit/internal/adapters/badgerdb"
	"github.com/okian/proofkit/internal/adapters/catalog"
	"github.com/okian/proofkit/internal/adapters/http/api"
	"github.com/okian/proofkit/internal/adapters/http/swagger"
	"github.com/okian/proofkit/internal/adapters/journal"
	"github.com/okian/proofkit/internal/adapters/repository"
	app "github.com/okian/proofkit/internal/app"
	"github.com/okian/proofkit/internal/config"
	"github.com/okian/proofkit/internal/domain/crossref"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/logger"
	"github.com/okian/proofkit/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Metrics live in our own registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("proofkit: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// run wires the service and serves HTTP until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error(ctx, "database close failed", logger.Error(err))
		}
	}()

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	if f, ok := cat.(*catalog.File); ok {
		go watchReload(ctx, f, log)
	}

	svc, err := newService(cfg, db, cat, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openDatabase opens Badger under cfg.DataDir, or in memory when it is empty.
func openDatabase(cfg *config.Config, log logger.Logger) (*badgerdb.DB, error) {
	dbCfg := badgerdb.InMemoryConfig()
	if cfg.DataDir != "" {
		dbCfg = badgerdb.DefaultConfig(cfg.DataDir)
	}
	dbCfg.Logger = log.Named("badger")
	db, err := badgerdb.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openCatalog loads the catalog file when one is configured.
func openCatalog(ctx context.Context, cfg *config.Config) (catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.NewStatic(nil, nil)
	}
	f, err := catalog.NewFile(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return f, nil
}

// watchReload re-reads the catalog file on SIGHUP.
func watchReload(ctx context.Context, f *catalog.File, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := f.Reload(ctx); err != nil {
				log.Error(ctx, "catalog reload failed", logger.String("path", f.Path()), logger.Error(err))
				continue
			}
			log.Info(ctx, "catalog reloaded", logger.String("path", f.Path()))
		}
	}
}

func newService(cfg *config.Config, db *badgerdb.DB, cat catalog.Catalog, log logger.Logger) (*app.Service, error) {
	store, err := repository.NewBadgerStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithCatalog(cat),
		app.WithStore(store),
		app.WithJournal(journal.NewBadger(db)),
		app.WithCrossrefOptions(
			crossref.WithWeights(severityWeights(cfg.SeverityWeights)),
			crossref.WithThreshold(cfg.ConfidenceThreshold),
			crossref.WithMinOverlap(cfg.MinConflictOverlap),
		),
	), nil
}

func severityWeights(in map[string]int) map[model.Severity]int {
	out := make(map[model.Severity]int, len(in))
	for k, v := range in {
		out[model.Severity(k)] = v
	}
	return out
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, cfg.MaxListLimit).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if n, ok := stats["queue_length"].(int); ok {
		metrics.UpdateQueueSize(n)
	}
	if n, ok := stats["artifacts_stored"].(int); ok {
		metrics.UpdateArtifactsStored(n)
	}
	if n, ok := stats["ledger_artifacts"].(int); ok {
		metrics.UpdateLedgerArtifacts(n)
	}
	if n, ok := stats["worker_count"].(int); ok {
		metrics.UpdateWorkerCount(n)
	}
}
