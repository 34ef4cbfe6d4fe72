package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"satoshidaily/internal/game"
	"satoshidaily/internal/service"
)

// ViewHandler serves the public read projections.
type ViewHandler struct {
	Views *service.ReadViewService
	Now   func() time.Time
}

func (h *ViewHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/leaderboard", h.leaderboard)
	group.GET("/recap", RequireAuth(), h.recap)
	group.GET("/results", h.results)
	group.GET("/feed", h.feed)
}

func (h *ViewHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *ViewHandler) leaderboard(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		date = game.Date(h.now())
	}
	if _, err := game.ParseDate(date); err != nil {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	livePrice := int64Query(c, "live_price", 0)
	view, err := h.Views.Leaderboard(c.Request.Context(), date, livePrice)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, view, nil)
}

func (h *ViewHandler) recap(c *gin.Context) {
	view, err := h.Views.YesterdayRecap(c.Request.Context(), profileID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	if view == nil {
		Ok(c, gin.H{"played": false}, nil)
		return
	}
	Ok(c, view, nil)
}

func (h *ViewHandler) results(c *gin.Context) {
	limit := intQuery(c, "limit", 30)
	if limit <= 0 || limit > 90 {
		limit = 30
	}
	items, err := h.Views.PastResults(c.Request.Context(), limit)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, nil)
}

func (h *ViewHandler) feed(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := h.Views.RecentPredictions(c.Request.Context(), limit)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, nil)
}
