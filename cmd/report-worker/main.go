package main

import (
	"os"

	"golang.org/x/sync/errgroup"

	"pecuny/internal/cli"
	"pecuny/internal/log"
	"pecuny/internal/worker"
)

func main() {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", log.ComponentWorker).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting report-worker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the report-worker")
		os.Exit(1)
	}

	rec, registry, err := cli.NewMetrics(cfg)
	if err != nil {
		logger.Error("Failed to set up metrics", "error", err)
		os.Exit(1)
	}

	client, err := cli.ConnectReportSink(cfg, rec, logger)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	reports := worker.NewReportWorker(logger)

	stopped := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() { <-stopped })
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reports.Run(gctx, client)
	})
	if registry != nil {
		g.Go(func() error {
			return cli.ServeMetrics(gctx, cfg.MetricsAddr, registry, logger)
		})
	}

	err = g.Wait()
	close(stopped)
	if err != nil {
		logger.Error("Report-worker stopped with error", "error", err)
		client.Close()
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Report-worker shutdown complete")
}
