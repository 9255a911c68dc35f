package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/http/handlers"
	"github.com/rajarshidattapy/R-Credit/internal/http/middleware"
	"github.com/rajarshidattapy/R-Credit/internal/version"
	"github.com/rajarshidattapy/R-Credit/internal/ws"
)

type Dependencies struct {
	Pinger            handlers.Pinger
	Authenticator     middleware.Authenticator
	Policy            credit.Policy
	IdentityHandler   *handlers.IdentityHandler
	SessionHandler    *handlers.SessionHandler
	LoanHandler       *handlers.LoanHandler
	VaultHandler      *handlers.VaultHandler
	ObligationHandler *handlers.ObligationHandler
	OpsHandler        *handlers.OpsHandler
	WSHandler         *ws.Handler
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestBodyLimit(cfg.MaxRequestBodyBytes))

	health := handlers.NewHealthHandler(deps.Pinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, deps.Policy)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	v1 := r.Group("/v1")
	if deps.IdentityHandler != nil {
		v1.POST("/identities", deps.IdentityHandler.CreateIdentity)
		v1.POST("/identities/:identityId/device", deps.IdentityHandler.BindDevice)
	}
	if deps.SessionHandler != nil {
		v1.POST("/sessions", deps.SessionHandler.Login)
		v1.DELETE("/sessions", deps.SessionHandler.Logout)
	}
	if deps.ObligationHandler != nil {
		v1.GET("/issuers/:identityId/risk", deps.ObligationHandler.IssuerRisk)
	}
	if deps.WSHandler != nil && deps.Authenticator != nil {
		v1.GET("/ws", middleware.OptionalSession(deps.Authenticator), deps.WSHandler.HandleWebSocket)
	}

	if deps.Authenticator != nil {
		session := v1.Group("")
		session.Use(middleware.RequireSession(deps.Authenticator))

		own := session.Group("/identities/:identityId")
		own.Use(middleware.RequireSameIdentity("identityId"))
		if deps.IdentityHandler != nil {
			own.GET("/profile", deps.IdentityHandler.GetProfile)
			own.GET("/events", deps.IdentityHandler.ListEvents)
			own.GET("/frozen", deps.IdentityHandler.GetFrozen)
			own.GET("/limit", deps.IdentityHandler.GetLimit)
		}
		if deps.LoanHandler != nil {
			own.POST("/loans", deps.LoanHandler.RequestLoan)
			own.GET("/loans", deps.LoanHandler.ListLoans)

			session.GET("/loans/:loanId", deps.LoanHandler.GetLoan)
			session.POST("/loans/:loanId/disburse", deps.LoanHandler.Disburse)
			session.POST("/loans/:loanId/activate", deps.LoanHandler.Activate)
			session.POST("/loans/:loanId/repay", deps.LoanHandler.Repay)
		}
		if deps.VaultHandler != nil {
			own.GET("/vault", deps.VaultHandler.GetBalance)
			own.POST("/vault/withdraw", deps.VaultHandler.Withdraw)
		}
		if deps.ObligationHandler != nil {
			own.POST("/obligations", deps.ObligationHandler.Create)
			own.GET("/obligations", deps.ObligationHandler.List)
			session.POST("/obligations/:obligationId/settle", deps.ObligationHandler.Settle)
		}
	}

	if deps.OpsHandler != nil {
		ops := r.Group("/ops")
		ops.Use(middleware.RequireOperatorKey(cfg.OperatorAPIKey))
		ops.POST("/loans/:loanId/default", deps.OpsHandler.DefaultLoan)
		ops.POST("/obligations/:obligationId/default", deps.OpsHandler.DefaultObligation)
		ops.POST("/sweep", deps.OpsHandler.Sweep)
		ops.GET("/identities/:identityId/replay", deps.OpsHandler.Replay)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			logger.Error("request", append(attrs, "error", c.Errors.String())...)
			return
		}
		logger.Info("request", attrs...)
	}
}
