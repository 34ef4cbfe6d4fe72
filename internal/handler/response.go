package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"satoshidaily/internal/service"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// ServiceError maps a user-facing service error onto an HTTP status;
// anything else becomes an opaque 500.
func ServiceError(c *gin.Context, err error) {
	if e, ok := service.AsError(err); ok {
		Error(c, statusFor(e.Kind), e.Message, map[string]any{"kind": string(e.Kind)})
		return
	}
	Error(c, http.StatusInternalServerError, "internal error", nil)
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidPrice, service.KindWrongDate, service.KindInvalidEmail:
		return http.StatusBadRequest
	case service.KindCaptchaFailed:
		return http.StatusForbidden
	case service.KindInvalidToken:
		return http.StatusUnauthorized
	case service.KindGameClosed, service.KindNoGuessesLeft, service.KindAlreadyUnlocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func int64Query(c *gin.Context, key string, def int64) int64 {
	if val := c.Query(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return def
}
