package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"satoshidaily/internal/models"
	"satoshidaily/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Daily results ----------------------------------------------------------

func (s *Store) SeedDailyResult(ctx context.Context, item *models.DailyResult) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	// Never touches an existing row: the seed is idempotent and a day
	// whose price is recorded must not be rewritten.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_date"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) GetDailyResult(ctx context.Context, date string) (*models.DailyResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.DailyResult
	err := s.db.WithContext(ctx).
		Where("game_date = ?", date).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSettleableDays(ctx context.Context, today string) ([]models.DailyResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.DailyResult
	err := s.db.WithContext(ctx).
		Model(&models.DailyResult{}).
		Where("(actual_price IS NULL AND game_date <= ?) OR (actual_price IS NOT NULL AND notified_at IS NULL)", today).
		Order("game_date asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) RecordOfficialPrice(ctx context.Context, date string, price decimal.Decimal, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.DailyResult{}).
		Where("game_date = ? AND actual_price IS NULL", date).
		Updates(map[string]any{
			"actual_price": price,
			"recorded_at":  at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) MarkDayNotified(ctx context.Context, date string, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.DailyResult{}).
		Where("game_date = ? AND notified_at IS NULL", date).
		Update("notified_at", at)
	return res.RowsAffected > 0, res.Error
}

func (s *Store) ListResolvedResults(ctx context.Context, limit int) ([]models.DailyResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 30)
	var items []models.DailyResult
	err := s.db.WithContext(ctx).
		Model(&models.DailyResult{}).
		Where("actual_price IS NOT NULL").
		Order("game_date desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Predictions ------------------------------------------------------------

func (s *Store) InsertPrediction(ctx context.Context, item *models.Prediction) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListPredictionsByDay(ctx context.Context, date string) ([]models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Prediction
	err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("game_date = ?", date).
		Order("profile_id asc, guess_number asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPlayerPredictions(ctx context.Context, profileID, date string) ([]models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Prediction
	err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("profile_id = ? AND game_date = ?", profileID, date).
		Order("guess_number asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRecentPredictions(ctx context.Context, limit int) ([]repository.FeedItem, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 20)
	var items []repository.FeedItem
	err := s.db.WithContext(ctx).
		Table("predictions").
		Select("predictions.game_date, predictions.predicted_price, predictions.created_at, profiles.email").
		Joins("JOIN profiles ON profiles.id = predictions.profile_id").
		Order("predictions.created_at desc").
		Limit(limit).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDistinctPlayers(ctx context.Context, date string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("game_date = ?", date).
		Distinct("profile_id").
		Count(&count).Error
	return count, err
}

// --- Bonus unlocks ----------------------------------------------------------

func (s *Store) InsertBonusUnlock(ctx context.Context, item *models.BonusUnlock) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) HasBonusUnlock(ctx context.Context, profileID, date string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.BonusUnlock{}).
		Where("profile_id = ? AND game_date = ?", profileID, date).
		Count(&count).Error
	return count > 0, err
}

// --- Winners ----------------------------------------------------------------

func (s *Store) InsertWinners(ctx context.Context, items []models.Winner) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	// Re-running a half-settled day must not duplicate rows.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_date"}, {Name: "profile_id"}},
		DoNothing: true,
	}).Create(&items).Error
}

func (s *Store) ListWinnersByDay(ctx context.Context, date string) ([]models.Winner, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Winner
	err := s.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("game_date = ?", date).
		Order("difference asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetWinner(ctx context.Context, date, profileID string) (*models.Winner, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Winner
	err := s.db.WithContext(ctx).
		Where("game_date = ? AND profile_id = ?", date, profileID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CountWinnersByDay(ctx context.Context, date string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Winner{}).
		Where("game_date = ?", date).
		Count(&count).Error
	return count, err
}

// --- Profiles ---------------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, item *models.Profile) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Profile
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Profile
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListProfilesByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.Profile
	err := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id IN ?", ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateProfileConsent(ctx context.Context, id string, consent bool, at *time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"marketing_consent": consent,
			"consent_timestamp": at,
		}).Error
}

func (s *Store) UpdateProfileStreak(ctx context.Context, id string, streak int, lastPlayed string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_streak":   streak,
			"last_played_date": lastPlayed,
		}).Error
}

// --- Analytics --------------------------------------------------------------

func (s *Store) InsertPageView(ctx context.Context, item *models.PageView) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}
