package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
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

	policy, err := config.LoadPolicy(cfg.CreditPolicyFile)
	if err != nil {
		logger.Error("failed to load credit policy", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repos, err := app.OpenRepositories(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "err", err)
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

	go func() {
		if err := a.Notifier.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ws notifier stopped", "err", err)
		}
	}()

	// The memory store lives in this process, so nothing else can drain its
	// outbox or sweep its loans.
	if cfg.StoreDriver == "memory" {
		go runWorker(sigCtx, a, cfg, logger)
		go func() {
			scheduler := jobs.NewSweepScheduler(a.Sweeper, cfg.SweepSchedule, logger)
			if err := scheduler.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sweep scheduler stopped", "err", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr(), "store", cfg.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}

func runWorker(ctx context.Context, a *app.App, cfg config.Config, logger *slog.Logger) {
	interval := cfg.WorkerPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Worker.RunOnce(ctx, cfg.WorkerBatchSize); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker run failed", "err", err)
			}
		}
	}
}
