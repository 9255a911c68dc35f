package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	loandomain "github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/rajarshidattapy/R-Credit/internal/jobs"
)

type LoanDefaulter interface {
	MarkDefault(ctx context.Context, loanID string) (*loandomain.Entity, error)
}

type ObligationDefaulter interface {
	Default(ctx context.Context, id string) ([]obligation.Obligation, error)
}

type Replayer interface {
	Replay(ctx context.Context, identityID string) (*credit.ReplayReport, error)
}

type Sweeper interface {
	RunOnce(ctx context.Context) (jobs.SweepResult, error)
}

// OpsHandler serves operator endpoints guarded by the operator key.
type OpsHandler struct {
	loans       LoanDefaulter
	obligations ObligationDefaulter
	ledger      Replayer
	sweeper     Sweeper
}

func NewOpsHandler(loans LoanDefaulter, obligations ObligationDefaulter, ledger Replayer, sweeper Sweeper) *OpsHandler {
	return &OpsHandler{loans: loans, obligations: obligations, ledger: ledger, sweeper: sweeper}
}

func (h *OpsHandler) DefaultLoan(c *gin.Context) {
	item, err := h.loans.MarkDefault(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *OpsHandler) DefaultObligation(c *gin.Context) {
	flagged, err := h.obligations.Default(c.Request.Context(), c.Param("obligationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged})
}

func (h *OpsHandler) Sweep(c *gin.Context) {
	result, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *OpsHandler) Replay(c *gin.Context) {
	report, err := h.ledger.Replay(c.Request.Context(), c.Param("identityId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
