package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/auth"
)

const (
	contextIdentityID = "identity_id"
	contextSessionID  = "session_id"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// RequireSession rejects requests without a live session bound to the
// identity's current device.
func RequireSession(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authn.Authenticate(c.Request.Context(), auth.TokenFromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_invalid"})
			return
		}
		c.Set(contextIdentityID, principal.IdentityID)
		c.Set(contextSessionID, principal.SessionID)
		c.Next()
	}
}

// OptionalSession resolves the caller when a valid token is present and
// lets anonymous requests through.
func OptionalSession(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := auth.TokenFromRequest(c.Request); token != "" {
			if principal, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(contextIdentityID, principal.IdentityID)
				c.Set(contextSessionID, principal.SessionID)
			}
		}
		c.Next()
	}
}

// RequireSameIdentity allows a request only on the caller's own identity.
func RequireSameIdentity(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c) == "" || strings.TrimSpace(c.Param(param)) != IdentityFrom(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func RequireOperatorKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader("X-Operator-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) string {
	return c.GetString(contextIdentityID)
}
