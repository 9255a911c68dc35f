package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rajarshidattapy/R-Credit/internal/app"
	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/jobs"
	"github.com/rajarshidattapy/R-Credit/internal/observability"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	if cfg.StoreDriver == "memory" {
		logger.Error("sweeper needs a shared store; the api sweeps the memory store itself")
		os.Exit(1)
	}
	policy, err := config.LoadPolicy(cfg.CreditPolicyFile)
	if err != nil {
		logger.Error("failed to load credit policy", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repos, err := app.OpenRepositories(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	a, err := app.New(cfg, policy, repos, logger, app.Options{})
	if err != nil {
		repos.Close()
		logger.Error("failed to build services", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := jobs.NewSweepScheduler(a.Sweeper, cfg.SweepSchedule, logger)
	logger.Info("sweeper started", "schedule", cfg.SweepSchedule, "batch_size", cfg.SweepBatchSize, "parallelism", cfg.SweepParallelism)
	if err := scheduler.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sweeper failed", "err", err)
		os.Exit(1)
	}
	logger.Info("sweeper stopped")
}
