package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"satoshidaily/internal/models"
	"satoshidaily/internal/repository"
)

// AnalyticsHandler records first-party page views. Ingest only; the
// aggregates live in the database.
type AnalyticsHandler struct {
	Repo repository.Repository
}

func (h *AnalyticsHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/pageviews", h.record)
}

type pageViewRequest struct {
	Path       string         `json:"path"`
	Referrer   string         `json:"referrer"`
	Properties map[string]any `json:"properties"`
}

func (h *AnalyticsHandler) record(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		Error(c, http.StatusBadRequest, "path required", nil)
		return
	}

	item := &models.PageView{
		Path:     path,
		Referrer: strings.TrimSpace(req.Referrer),
	}
	if len(req.Properties) > 0 {
		if raw, err := json.Marshal(req.Properties); err == nil {
			item.Properties = datatypes.JSON(raw)
		}
	}
	if err := h.Repo.InsertPageView(c.Request.Context(), item); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"recorded": true}, nil)
}
