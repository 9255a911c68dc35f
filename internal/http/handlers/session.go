package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rajarshidattapy/R-Credit/internal/auth"
)

type SessionService interface {
	Login(ctx context.Context, proof, deviceToken string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

type SessionHandler struct {
	sessions SessionService
	cookies  auth.CookieConfig
}

func NewSessionHandler(sessions SessionService, cookies auth.CookieConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookies: cookies}
}

func (h *SessionHandler) Login(c *gin.Context) {
	var req bindDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Attestation) == "" {
		badRequest(c)
		return
	}
	result, err := h.sessions.Login(c.Request.Context(), strings.TrimSpace(req.Attestation), req.DeviceToken)
	if err != nil {
		writeError(c, err)
		return
	}

	auth.SetSessionCookie(c.Writer, h.cookies, result.Token, h.sessions.TTL())
	c.JSON(http.StatusOK, gin.H{
		"token":       result.Token,
		"identity_id": result.Identity.ID,
		"expires_at":  result.Session.ExpiresAt,
	})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request)
	if token != "" {
		if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
			_ = c.Error(err)
		}
	}
	auth.ClearSessionCookie(c.Writer, h.cookies)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
