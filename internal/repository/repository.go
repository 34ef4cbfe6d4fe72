package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"satoshidaily/internal/models"
)

// FeedItem is one row of the public recent-predictions feed, joined
// with the owner's email (masked by the view layer before it leaves
// the server).
type FeedItem struct {
	GameDate       string
	PredictedPrice int64
	Email          string
	CreatedAt      time.Time
}

// Repository is the typed persistence contract for the settlement
// engine. The settlement worker is the sole writer of official prices,
// winners and streaks; the submission service is the sole writer of
// predictions and bonus unlocks.
type Repository interface {
	// Daily results.
	SeedDailyResult(ctx context.Context, item *models.DailyResult) error
	GetDailyResult(ctx context.Context, date string) (*models.DailyResult, error)
	// ListSettleableDays returns pending days up to and including today
	// plus resolved days whose derivation has not been marked complete.
	ListSettleableDays(ctx context.Context, today string) ([]models.DailyResult, error)
	// RecordOfficialPrice updates actual_price/recorded_at iff
	// actual_price is still null and reports whether this caller won.
	RecordOfficialPrice(ctx context.Context, date string, price decimal.Decimal, at time.Time) (bool, error)
	// MarkDayNotified sets notified_at iff still null.
	MarkDayNotified(ctx context.Context, date string, at time.Time) (bool, error)
	ListResolvedResults(ctx context.Context, limit int) ([]models.DailyResult, error)

	// Predictions.
	InsertPrediction(ctx context.Context, item *models.Prediction) error
	ListPredictionsByDay(ctx context.Context, date string) ([]models.Prediction, error)
	ListPlayerPredictions(ctx context.Context, profileID, date string) ([]models.Prediction, error)
	ListRecentPredictions(ctx context.Context, limit int) ([]FeedItem, error)
	CountDistinctPlayers(ctx context.Context, date string) (int64, error)

	// Bonus unlocks.
	InsertBonusUnlock(ctx context.Context, item *models.BonusUnlock) error
	HasBonusUnlock(ctx context.Context, profileID, date string) (bool, error)

	// Winners.
	InsertWinners(ctx context.Context, items []models.Winner) error
	ListWinnersByDay(ctx context.Context, date string) ([]models.Winner, error)
	GetWinner(ctx context.Context, date, profileID string) (*models.Winner, error)
	CountWinnersByDay(ctx context.Context, date string) (int64, error)

	// Profiles.
	CreateProfile(ctx context.Context, item *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListProfilesByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
	UpdateProfileConsent(ctx context.Context, id string, consent bool, at *time.Time) error
	UpdateProfileStreak(ctx context.Context, id string, streak int, lastPlayed string) error

	// Analytics.
	InsertPageView(ctx context.Context, item *models.PageView) error
}
