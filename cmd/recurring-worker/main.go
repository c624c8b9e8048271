package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"pecuny/internal/cache"
	"pecuny/internal/cli"
	"pecuny/internal/log"

	_ "time/tzdata"
)

func main() {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", log.ComponentScheduler).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentScheduler)
	logger.Info("Starting recurring-worker", "cron", cfg.RecurringCron, "timezone", cfg.Timezone)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err)
		os.Exit(1)
	}

	rec, registry, err := cli.NewMetrics(cfg)
	if err != nil {
		logger.Error("Failed to set up metrics", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := cli.OpenStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	ledger := cli.NewLedger(store, cfg, rec)

	cacheManager := cache.NewManager()
	for _, c := range ledger.Taxonomy.Caches() {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(cfg.CategoryCacheTTL)
	defer cacheManager.Stop()

	run := func(ctx context.Context) {
		now := time.Now().In(loc)
		summary, err := ledger.Recurring.ProcessDueTransactions(ctx, now)
		if err != nil {
			logger.ErrorContext(ctx, "Recurring run failed", "error", err)
			return
		}
		logger.InfoContext(ctx, "Recurring run complete",
			"checked", summary.Checked,
			"materialized", summary.Materialized,
			"skipped", summary.Skipped,
			"failed", summary.Failed)
	}

	stopped := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() { <-stopped })
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(gctx, "Running initial recurring processing")
		run(gctx)

		scheduler := cron.New(cron.WithLocation(loc))
		if _, err := scheduler.AddFunc(cfg.RecurringCron, func() { run(gctx) }); err != nil {
			return err
		}
		scheduler.Start()
		<-gctx.Done()

		// Wait for a run in progress before the store is closed.
		<-scheduler.Stop().Done()
		return nil
	})

	if registry != nil {
		g.Go(func() error {
			return cli.ServeMetrics(gctx, cfg.MetricsAddr, registry, logger)
		})
	}

	err = g.Wait()
	close(stopped)
	if err != nil {
		logger.Error("Recurring-worker stopped with error", "error", err)
		closeStore()
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
