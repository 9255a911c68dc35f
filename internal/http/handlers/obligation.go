package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/rajarshidattapy/R-Credit/internal/http/middleware"
)

type ObligationService interface {
	RegisterAsset(ctx context.Context, in obligation.CreateInput) (*obligation.Obligation, error)
	Get(ctx context.Context, id string) (*obligation.Obligation, error)
	Settle(ctx context.Context, id string) (*obligation.Obligation, error)
	List(ctx context.Context, issuerIdentityID string, status obligation.Status) ([]obligation.Obligation, error)
	IssuerRisk(ctx context.Context, issuerIdentityID string) (*obligation.IssuerRisk, error)
}

type ObligationHandler struct {
	obligations ObligationService
}

func NewObligationHandler(obligations ObligationService) *ObligationHandler {
	return &ObligationHandler{obligations: obligations}
}

type createObligationRequest struct {
	Kind        string     `json:"kind"`
	Reference   string     `json:"reference"`
	AmountMinor int64      `json:"amount_minor"`
	DueAt       *time.Time `json:"due_at"`
}

func (h *ObligationHandler) Create(c *gin.Context) {
	var req createObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	item, err := h.obligations.RegisterAsset(c.Request.Context(), obligation.CreateInput{
		IssuerIdentityID: c.Param("identityId"),
		Kind:             obligation.Kind(strings.TrimSpace(req.Kind)),
		Reference:        strings.TrimSpace(req.Reference),
		AmountMinor:      req.AmountMinor,
		DueAt:            req.DueAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *ObligationHandler) List(c *gin.Context) {
	status := obligation.Status(strings.TrimSpace(c.Query("status")))
	items, err := h.obligations.List(c.Request.Context(), c.Param("identityId"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ObligationHandler) Settle(c *gin.Context) {
	item, err := h.obligations.Get(c.Request.Context(), c.Param("obligationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if item.IssuerIdentityID != middleware.IdentityFrom(c) {
		writeError(c, errs.ErrObligationNotFound)
		return
	}
	item, err = h.obligations.Settle(c.Request.Context(), item.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// IssuerRisk is public: lenders and asset buyers look issuers up before
// trusting them.
func (h *ObligationHandler) IssuerRisk(c *gin.Context) {
	risk, err := h.obligations.IssuerRisk(c.Request.Context(), c.Param("identityId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, risk)
}
