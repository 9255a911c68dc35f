// Package app assembles the credit services over one storage backend.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/attestation"
	"github.com/rajarshidattapy/R-Credit/internal/auth"
	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	domainvault "github.com/rajarshidattapy/R-Credit/internal/domain/vault"
	"github.com/rajarshidattapy/R-Credit/internal/http/handlers"
	"github.com/rajarshidattapy/R-Credit/internal/http/middleware"
	"github.com/rajarshidattapy/R-Credit/internal/jobs"
	"github.com/rajarshidattapy/R-Credit/internal/notify"
	"github.com/rajarshidattapy/R-Credit/internal/server"
	"github.com/rajarshidattapy/R-Credit/internal/vault"
	"github.com/rajarshidattapy/R-Credit/internal/ws"
)

type Options struct {
	// Verifier overrides the JWKS attestation verifier built from config.
	Verifier identity.Verifier
	// Publisher overrides the notification publisher built from config.
	Publisher notify.Publisher
	Now       func() time.Time
}

type App struct {
	Config config.Config
	Policy credit.Policy
	Repos  Repositories

	Ledger      *credit.Ledger
	Registry    *identity.Registry
	Obligations *obligation.Propagator
	Loans       *loan.Engine
	Vault       domainvault.Gateway
	Sessions    *auth.Service
	Sweeper     *jobs.Sweeper
	Worker      *jobs.Worker
	Hub         *ws.Hub
	Notifier    *ws.Notifier

	publisher notify.Publisher
	logger    *slog.Logger
}

func New(cfg config.Config, policy credit.Policy, repos Repositories, logger *slog.Logger, opts Options) (*App, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("credit policy: %w", err)
	}

	verifier := opts.Verifier
	if verifier == nil {
		v, err := attestation.NewVerifierFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("attestation verifier: %w", err)
		}
		verifier = v
	}
	publisher := opts.Publisher
	if publisher == nil {
		p, err := notify.NewPublisherFromConfig(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("notification publisher: %w", err)
		}
		publisher = p
	}

	ledger := credit.NewLedger(repos.Credit, repos.Outbox, repos.Locker, policy)
	registry := identity.NewRegistry(repos.Identities, verifier, repos.Sessions, ledger, repos.Locker, policy.InitialGrant)
	obligations := obligation.NewPropagator(repos.Obligations, repos.Outbox, ledger, registry, repos.Locker)
	gateway, err := vault.NewGatewayFromConfig(cfg, repos.Vault, registry, repos.Locker, policy.CurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("vault gateway: %w", err)
	}
	engine := loan.NewEngine(repos.Loans, ledger, obligations, gateway, repos.Outbox, repos.Locker)
	if opts.Now != nil {
		ledger.WithClock(opts.Now)
		registry.WithClock(opts.Now)
		obligations.WithClock(opts.Now)
		engine.WithClock(opts.Now)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	hub := ws.NewHub()

	return &App{
		Config:      cfg,
		Policy:      policy,
		Repos:       repos,
		Ledger:      ledger,
		Registry:    registry,
		Obligations: obligations,
		Loans:       engine,
		Vault:       gateway,
		Sessions:    auth.NewService(repos.Sessions, registry, jwtManager, cfg.SessionTTL),
		Sweeper:     jobs.NewSweeper(engine, logger, cfg.SweepBatchSize, int(cfg.SweepParallelism)),
		Worker:      jobs.NewWorker(repos.Outbox, publisher, logger),
		Hub:         hub,
		Notifier:    ws.NewNotifier(repos.Notifications, hub, cfg.WSPollInterval, logger),
		publisher:   publisher,
		logger:      logger,
	}, nil
}

func (a *App) Router() *gin.Engine {
	var pinger handlers.Pinger
	if a.Repos.Pinger != nil {
		pinger = a.Repos.Pinger
	}
	return server.NewRouter(a.Config, a.logger, server.Dependencies{
		Pinger:            pinger,
		Authenticator:     a.Sessions,
		Policy:            a.Policy,
		IdentityHandler:   handlers.NewIdentityHandler(a.Registry, a.Ledger),
		SessionHandler:    handlers.NewSessionHandler(a.Sessions, auth.CookieConfig{Domain: a.Config.CookieDomain, Secure: a.Config.CookieSecure}),
		LoanHandler:       handlers.NewLoanHandler(a.Loans),
		VaultHandler:      handlers.NewVaultHandler(a.Vault),
		ObligationHandler: handlers.NewObligationHandler(a.Obligations),
		OpsHandler:        handlers.NewOpsHandler(a.Loans, a.Obligations, a.Ledger, a.Sweeper),
		WSHandler:         ws.NewHandler(a.Hub, middleware.IdentityFrom),
	})
}

func (a *App) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("close publisher", "err", err)
	}
	if a.Repos.Close != nil {
		a.Repos.Close()
	}
}
