package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	loandomain "github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"github.com/rajarshidattapy/R-Credit/internal/http/middleware"
)

type LoanService interface {
	Request(ctx context.Context, identityID string, principalMinor int64, durationDays int) (*loandomain.Entity, error)
	Disburse(ctx context.Context, loanID string) (*loandomain.Entity, error)
	Activate(ctx context.Context, loanID string) (*loandomain.Entity, error)
	Repay(ctx context.Context, loanID string, amountMinor int64) (*loandomain.Entity, error)
	Get(ctx context.Context, loanID string) (*loandomain.Entity, error)
	ListByIdentity(ctx context.Context, identityID string, limit, offset int32) ([]loandomain.Entity, error)
}

type LoanHandler struct {
	loanService LoanService
}

func NewLoanHandler(loanService LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

type requestLoanRequest struct {
	PrincipalMinor int64 `json:"principal_minor"`
	DurationDays   int   `json:"duration_days"`
}

type repayLoanRequest struct {
	AmountMinor int64 `json:"amount_minor"`
}

func (h *LoanHandler) RequestLoan(c *gin.Context) {
	var req requestLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	item, err := h.loanService.Request(c.Request.Context(), c.Param("identityId"), req.PrincipalMinor, req.DurationDays)
	if err != nil {
		if item != nil {
			writeErrorWith(c, err, gin.H{"loan": item})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := h.loanService.ListByIdentity(c.Request.Context(), c.Param("identityId"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	item, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) Disburse(c *gin.Context) {
	if _, ok := h.ownedLoan(c); !ok {
		return
	}
	item, err := h.loanService.Disburse(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		if item != nil && errors.Is(err, errs.ErrVaultTransferFailed) {
			writeErrorWith(c, err, gin.H{"loan": item})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) Activate(c *gin.Context) {
	if _, ok := h.ownedLoan(c); !ok {
		return
	}
	item, err := h.loanService.Activate(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LoanHandler) Repay(c *gin.Context) {
	var req repayLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if _, ok := h.ownedLoan(c); !ok {
		return
	}
	item, err := h.loanService.Repay(c.Request.Context(), c.Param("loanId"), req.AmountMinor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ownedLoan loads the path loan and hides loans of other identities behind
// a not-found.
func (h *LoanHandler) ownedLoan(c *gin.Context) (*loandomain.Entity, bool) {
	item, err := h.loanService.Get(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if item.IdentityID != middleware.IdentityFrom(c) {
		writeError(c, errs.ErrLoanNotFound)
		return nil, false
	}
	return item, true
}
