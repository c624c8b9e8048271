// Package cli provides the initialization shared by the pecuny binaries:
// cmd/recurring-worker, cmd/report-worker and cmd/pecuny-import.
package cli

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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pecuny/internal/amqp"
	"pecuny/internal/config"
	"pecuny/internal/log"
	"pecuny/internal/metrics"
	"pecuny/internal/middleware/trace"
	"pecuny/internal/services"
	"pecuny/internal/storage"
	"pecuny/internal/storage/memory"
)

// SetupLogger builds the process logger for the given LOG_LEVEL and sets it
// as slog's default. Unknown levels fall back to info.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	if lvl, err := log.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	if component != "" {
		cfg.Component = component
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads .env and the environment and validates the
// result. Every problem is reported in the one returned error.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore opens the ledger store selected by DATA_BACKEND. The returned
// close func is never nil.
func OpenStore(cfg *config.Config, logger *log.Logger) (storage.Store, func() error, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.Warn("Using in-memory ledger, data is lost on exit")
		return memory.New(), func() error { return nil }, nil
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite ledger at %s: %w", cfg.SQLiteDBPath, err)
		}
		logger.Info("SQLite ledger ready", "path", cfg.SQLiteDBPath)
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

// Ledger wires the services that share one store and one metrics recorder.
type Ledger struct {
	Store        storage.Store
	Accounts     *services.AccountService
	Transactions *services.TransactionService
	Scheduled    *services.ScheduledService
	Taxonomy     *services.TaxonomyService
	Recurring    *services.RecurringProcessor

	opts services.Options
}

func NewLedger(store storage.Store, cfg *config.Config, rec metrics.Recorder) *Ledger {
	opts := services.Options{MaxRetries: cfg.LedgerMaxRetries, Metrics: rec}
	transactions := services.NewTransactionService(store, opts)
	return &Ledger{
		Store:        store,
		Accounts:     services.NewAccountService(store, cfg.MaxAccountsPerUser, opts),
		Transactions: transactions,
		Scheduled:    services.NewScheduledService(store, opts),
		Taxonomy:     services.NewTaxonomyService(store, cfg.CategoryCacheTTL),
		Recurring:    services.NewRecurringProcessor(store, transactions, opts),
		opts:         opts,
	}
}

// Importer returns an import service reporting to publisher, which may be nil.
func (l *Ledger) Importer(publisher services.ReportPublisher) *services.ImportService {
	return services.NewImportService(l.Store, l.Transactions, l.Taxonomy, publisher, l.opts)
}

// ConnectReportSink dials the broker when AMQP_URL is set. A nil client and
// nil error mean reporting is disabled.
func ConnectReportSink(cfg *config.Config, rec metrics.Recorder, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, import reports are only logged")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.WithMetrics(rec))
	if err != nil {
		return nil, fmt.Errorf("connect report sink: %w", err)
	}
	logger.Info("AMQP report sink connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// NewMetrics registers a Prometheus recorder on a fresh registry. Without a
// METRICS_ADDR the no-op recorder is returned and the registry is nil.
func NewMetrics(cfg *config.Config) (metrics.Recorder, *prometheus.Registry, error) {
	if cfg.MetricsAddr == "" {
		return metrics.NoOp{}, nil, nil
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder("pecuny")
	if err := rec.Register(registry); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	return rec, registry, nil
}

// ServeMetrics exposes /metrics on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           trace.Middleware(logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After the
// signal cleanup runs; done is closed when it returns or timeout elapses,
// whichever comes first.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()
		runCleanup(logger, timeout, cleanup)
		close(done)
	}()

	return ctx, done
}

func runCleanup(logger *log.Logger, timeout time.Duration, cleanup func()) {
	if cleanup == nil {
		logger.Info("Shutdown complete")
		return
	}
	finished := make(chan struct{})
	go func() {
		cleanup()
		close(finished)
	}()
	select {
	case <-finished:
		logger.Info("Shutdown complete")
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached", "timeout", timeout)
	}
}

// WaitForShutdown blocks until the context is cancelled and cleanup is over.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
