// Command reconciler runs one reconciliation sweep and exits. It is meant to be
// started by an external scheduler (cron, Kubernetes CronJob).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"age-verification-gateway/config"
	"age-verification-gateway/internal/app"
	"age-verification-gateway/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml)")
	timeout := flag.Duration("timeout", 10*time.Minute, "upper bound for one sweep")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Component(logger.New(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "avg-reconciler"}), "sweeper")

	if cfg.Database.Driver == "memory" {
		log.Fatal().Msg("Reconciler needs shared storage; database.driver=memory is only usable in-process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	report, err := a.Sweeper.Run(ctx)
	a.Close()
	if err != nil {
		log.Error().Err(err).Msg("Reconciliation sweep failed")
		os.Exit(1)
	}
	if report.Skipped {
		return
	}
	if report.Reconciliation.Errored > 0 {
		// Errored checks stay PENDING and are retried on the next run.
		log.Warn().Int("errored", report.Reconciliation.Errored).Msg("Some top-ups could not be checked")
	}
}
