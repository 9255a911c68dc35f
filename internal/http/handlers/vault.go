package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/domain/vault"
)

type VaultHandler struct {
	gateway vault.Gateway
}

func NewVaultHandler(gateway vault.Gateway) *VaultHandler {
	return &VaultHandler{gateway: gateway}
}

type withdrawRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Attestation string `json:"attestation"`
}

func (h *VaultHandler) GetBalance(c *gin.Context) {
	balance, err := h.gateway.Balance(c.Request.Context(), c.Param("identityId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *VaultHandler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Attestation) == "" {
		badRequest(c)
		return
	}
	receipt, err := h.gateway.Withdraw(c.Request.Context(), c.Param("identityId"), req.AmountMinor, strings.TrimSpace(req.Attestation))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
