package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

var statusByError = []struct {
	err    error
	status int
}{
	{errs.ErrInvalidAmount, http.StatusBadRequest},
	{errs.ErrInvalidDuration, http.StatusBadRequest},
	{errs.ErrInvalidDevice, http.StatusBadRequest},
	{errs.ErrInvalidObligation, http.StatusBadRequest},
	{errs.ErrSessionInvalid, http.StatusUnauthorized},
	{errs.ErrIdentityFrozen, http.StatusForbidden},
	{errs.ErrIdentityNotFound, http.StatusNotFound},
	{errs.ErrLoanNotFound, http.StatusNotFound},
	{errs.ErrObligationNotFound, http.StatusNotFound},
	{errs.ErrDuplicateIdentity, http.StatusConflict},
	{errs.ErrInvalidTransition, http.StatusConflict},
	{errs.ErrOutstandingLoan, http.StatusConflict},
	{errs.ErrInvalidAttestation, http.StatusUnprocessableEntity},
	{errs.ErrInsufficientCredit, http.StatusUnprocessableEntity},
	{errs.ErrIncompleteRepayment, http.StatusUnprocessableEntity},
	{errs.ErrWithdrawalRejected, http.StatusUnprocessableEntity},
	{errs.ErrVaultTransferFailed, http.StatusBadGateway},
	{errs.ErrLockTimeout, http.StatusServiceUnavailable},
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	for _, item := range statusByError {
		if errors.Is(err, item.err) {
			return item.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	writeErrorWith(c, err, nil)
}

// writeErrorWith adds extra fields to the error body, e.g. the rejected loan.
func writeErrorWith(c *gin.Context, err error, extra gin.H) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	body := gin.H{"error": errs.Code(err)}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}
