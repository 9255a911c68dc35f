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
	"github.com/rajarshidattapy/R-Credit/internal/observability"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	if cfg.StoreDriver == "memory" {
		logger.Error("worker needs a shared store; the api drains the memory outbox itself")
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

	interval := cfg.WorkerPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "interval", interval.String(), "batch_size", cfg.WorkerBatchSize, "notify_mode", cfg.NotifyMode)
	for {
		select {
		case <-sigCtx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			runCtx, runCancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := a.Worker.RunOnce(runCtx, cfg.WorkerBatchSize)
			runCancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker run failed", "err", err)
			}
		}
	}
}
