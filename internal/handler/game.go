package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"satoshidaily/internal/game"
	"satoshidaily/internal/repository"
	"satoshidaily/internal/service"
)

// GameHandler exposes the play surface: today's target window, guess
// submission (authenticated or anonymous), the anonymous merge and the
// bonus-guess unlock.
type GameHandler struct {
	Submissions *service.SubmissionService
	Views       *service.ReadViewService
	Repo        repository.Repository
	Now         func() time.Time
}

func (h *GameHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/days/today", h.today)
	group.GET("/days/:date", h.day)
	group.POST("/predictions", h.submit)
	group.POST("/predictions/merge", RequireAuth(), h.merge)
	group.GET("/predictions", h.myPredictions)
	group.POST("/bonus", RequireAuth(), h.unlockBonus)
}

func (h *GameHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *GameHandler) today(c *gin.Context) {
	h.dayFor(c, game.Date(h.now()))
}

func (h *GameHandler) day(c *gin.Context) {
	h.dayFor(c, strings.TrimSpace(c.Param("date")))
}

func (h *GameHandler) dayFor(c *gin.Context, date string) {
	if _, err := game.ParseDate(date); err != nil {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	info, err := h.Views.Day(c.Request.Context(), date)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if info == nil {
		Error(c, http.StatusNotFound, "unknown game day", nil)
		return
	}
	Ok(c, info, nil)
}

type submitRequest struct {
	Price int64  `json:"price"`
	Date  string `json:"date"`
}

func (h *GameHandler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = game.Date(h.now())
	}

	ctx := c.Request.Context()
	if id := profileID(c); id != "" {
		guess, err := h.Submissions.SubmitPrediction(ctx, id, date, req.Price)
		if err != nil {
			ServiceError(c, err)
			return
		}
		Ok(c, gin.H{"guess_number": guess, "game_date": date}, nil)
		return
	}

	if _, err := h.Submissions.SubmitAnonymous(ctx, anonID(c), date, req.Price); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"guess_number": 1, "game_date": date, "anonymous": true}, nil)
}

// merge replays the browser's pending anonymous guess under the
// freshly authenticated profile.
func (h *GameHandler) merge(c *gin.Context) {
	guess, err := h.Submissions.MergeAnonymous(c.Request.Context(), profileID(c), anonID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	if guess == 0 {
		Ok(c, gin.H{"merged": false}, nil)
		return
	}
	Ok(c, gin.H{"merged": true, "guess_number": guess}, nil)
}

type predictionItem struct {
	GameDate       string    `json:"game_date"`
	GuessNumber    int       `json:"guess_number"`
	PredictedPrice int64     `json:"predicted_price"`
	CreatedAt      time.Time `json:"created_at"`
}

// myPredictions lists the caller's own guesses for a day. Anonymous
// browsers see their single pending guess instead.
func (h *GameHandler) myPredictions(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		date = game.Date(h.now())
	}
	if _, err := game.ParseDate(date); err != nil {
		Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}

	if profileID(c) == "" {
		price, found, err := h.Submissions.PendingGuess(c.Request.Context(), anonID(c), date)
		if err != nil {
			ServiceError(c, err)
			return
		}
		if !found {
			Ok(c, []predictionItem{}, nil)
			return
		}
		Ok(c, []gin.H{{"game_date": date, "guess_number": 1, "predicted_price": price, "anonymous": true}}, nil)
		return
	}

	items, err := h.Repo.ListPlayerPredictions(c.Request.Context(), profileID(c), date)
	if err != nil {
		ServiceError(c, err)
		return
	}
	out := make([]predictionItem, 0, len(items))
	for _, p := range items {
		out = append(out, predictionItem{
			GameDate:       p.GameDate,
			GuessNumber:    p.GuessNumber,
			PredictedPrice: p.PredictedPrice,
			CreatedAt:      p.CreatedAt,
		})
	}
	Ok(c, out, nil)
}

type bonusRequest struct {
	Platform string `json:"platform"`
}

func (h *GameHandler) unlockBonus(c *gin.Context) {
	var req bonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	platform := strings.TrimSpace(req.Platform)
	if platform == "" {
		platform = "unknown"
	}
	date := game.Date(h.now())
	if err := h.Submissions.UnlockBonus(c.Request.Context(), profileID(c), date, platform); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"game_date": date, "max_guesses": 3}, nil)
}
