package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"satoshidaily/internal/auth"
	"satoshidaily/internal/cache"
	"satoshidaily/internal/config"
)

const (
	ctxProfileID = "profile_id"
	ctxAnonID    = "anon_id"

	// anonCookie identifies an anonymous browser so its single pending
	// guess survives until signup.
	anonCookie       = "sd_anon"
	anonCookieMaxAge = 60 * 60 * 24 * 90
)

// SessionMiddleware resolves the bearer token into a profile id when
// present. It never rejects; RequireAuth does that for protected
// routes.
func SessionMiddleware(jwt auth.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token := strings.TrimPrefix(header, "Bearer ")
			if profileID, err := jwt.Verify(token); err == nil {
				c.Set(ctxProfileID, profileID)
			}
		}
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if profileID(c) == "" {
			Error(c, http.StatusUnauthorized, "authentication required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func profileID(c *gin.Context) string {
	return c.GetString(ctxProfileID)
}

// AnonCookieMiddleware assigns a stable uuid cookie to browsers that
// do not have one yet. The id is also stashed in the request context
// so the very first request already has a usable id.
func AnonCookieMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(anonCookie)
		if err != nil || id == "" {
			id = uuid.NewString()
			c.SetCookie(anonCookie, id, anonCookieMaxAge, "/", "", false, true)
		}
		c.Set(ctxAnonID, id)
		c.Next()
	}
}

func anonID(c *gin.Context) string {
	return c.GetString(ctxAnonID)
}

// RateLimitMiddleware enforces a fixed per-minute request budget per
// client (profile id when authenticated, remote IP otherwise). A redis
// outage fails open so the game keeps running.
func RateLimitMiddleware(store *cache.Store, cfg config.RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || store == nil {
			c.Next()
			return
		}
		key := profileID(c)
		limit := cfg.AuthPerMinute
		if key == "" {
			key = c.ClientIP()
			limit = cfg.PerMinute
		}
		ok, err := store.Allow(c.Request.Context(), key, limit, time.Minute)
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
			}
			c.Next()
			return
		}
		if !ok {
			Error(c, http.StatusTooManyRequests, "too many requests", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
