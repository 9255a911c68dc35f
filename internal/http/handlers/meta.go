package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
)

type MetaHandler struct {
	env     string
	version string
	policy  credit.Policy
}

func NewMetaHandler(env, version string, policy credit.Policy) *MetaHandler {
	return &MetaHandler{env: env, version: version, policy: policy}
}

// GetMeta also publishes the lending terms clients need to build a request.
func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "R-Credit",
		"version": h.version,
		"env":     h.env,
		"lending": gin.H{
			"currency_code":      h.policy.CurrencyCode,
			"allowed_durations":  h.policy.AllowedDurations,
			"interest_rate_bps":  h.policy.InterestRateBPS,
			"max_limit_minor":    h.policy.MaxLimitMinor,
			"strike_threshold":   h.policy.StrikeThreshold,
			"freeze_months":      h.policy.FreezeMonths,
			"single_active_loan": h.policy.SingleActiveLoan,
		},
	})
}
