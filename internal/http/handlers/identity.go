package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
)

type IdentityService interface {
	CreateIdentity(ctx context.Context, proof string) (*identity.Identity, error)
	BindDevice(ctx context.Context, identityID, deviceToken string) (*identity.Identity, error)
	ResolveAttestation(ctx context.Context, proof string) (*identity.Identity, error)
	IsFrozen(ctx context.Context, identityID string) (bool, error)
}

type CreditService interface {
	Profile(ctx context.Context, identityID string) (*credit.Profile, error)
	Events(ctx context.Context, identityID string, limit, offset int32) ([]credit.Event, error)
	BorrowingLimit(ctx context.Context, identityID string) (int64, error)
	Policy() credit.Policy
}

type IdentityHandler struct {
	identities IdentityService
	credit     CreditService
}

func NewIdentityHandler(identities IdentityService, credit CreditService) *IdentityHandler {
	return &IdentityHandler{identities: identities, credit: credit}
}

type createIdentityRequest struct {
	Attestation string `json:"attestation"`
}

type bindDeviceRequest struct {
	Attestation string `json:"attestation"`
	DeviceToken string `json:"device_token"`
}

func (h *IdentityHandler) CreateIdentity(c *gin.Context) {
	var req createIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Attestation) == "" {
		badRequest(c)
		return
	}
	item, err := h.identities.CreateIdentity(c.Request.Context(), strings.TrimSpace(req.Attestation))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// BindDevice needs a fresh attestation of the same human; possession of the
// identity id alone is not enough to move the binding.
func (h *IdentityHandler) BindDevice(c *gin.Context) {
	var req bindDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Attestation) == "" {
		badRequest(c)
		return
	}
	owner, err := h.identities.ResolveAttestation(c.Request.Context(), strings.TrimSpace(req.Attestation))
	if err != nil {
		writeError(c, err)
		return
	}
	if owner.ID != c.Param("identityId") {
		writeError(c, errs.ErrInvalidAttestation)
		return
	}
	item, err := h.identities.BindDevice(c.Request.Context(), owner.ID, req.DeviceToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *IdentityHandler) GetProfile(c *gin.Context) {
	profile, err := h.credit.Profile(c.Request.Context(), c.Param("identityId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *IdentityHandler) ListEvents(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := h.credit.Events(c.Request.Context(), c.Param("identityId"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *IdentityHandler) GetFrozen(c *gin.Context) {
	frozen, err := h.identities.IsFrozen(c.Request.Context(), c.Param("identityId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity_id": c.Param("identityId"), "frozen": frozen})
}

func (h *IdentityHandler) GetLimit(c *gin.Context) {
	limit, err := h.credit.BorrowingLimit(c.Request.Context(), c.Param("identityId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity_id":           c.Param("identityId"),
		"borrowing_limit_minor": limit,
		"currency_code":         h.credit.Policy().CurrencyCode,
	})
}

func pageParams(c *gin.Context) (int32, int32) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	offset, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)
	return int32(limit), int32(offset)
}
