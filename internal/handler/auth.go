package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"satoshidaily/internal/service"
)

// AuthHandler exposes the email-only identity flow.
type AuthHandler struct {
	Auth *service.AuthService
}

func (h *AuthHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/auth")
	group.POST("/signup", h.signup)
	group.POST("/session", h.session)
	r.POST("/api/v1/unsubscribe", h.unsubscribe)
}

type signupRequest struct {
	Email            string `json:"email"`
	CaptchaToken     string `json:"captcha_token"`
	MarketingConsent bool   `json:"marketing_consent"`
}

func (h *AuthHandler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		Error(c, http.StatusBadRequest, "email required", nil)
		return
	}
	result, err := h.Auth.Signup(c.Request.Context(), req.Email, req.CaptchaToken, c.ClientIP(), req.MarketingConsent)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{
		"login_token": result.Token,
		"existing":    result.Existing,
	}, nil)
}

type sessionRequest struct {
	LoginToken string `json:"login_token"`
}

func (h *AuthHandler) session(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	session, err := h.Auth.Redeem(c.Request.Context(), req.LoginToken)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{
		"token":      session.Token,
		"profile_id": session.ProfileID,
		"expires_at": session.ExpiresAt,
	}, nil)
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) unsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Auth.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"unsubscribed": true}, nil)
}
