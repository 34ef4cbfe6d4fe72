package models

import (
	"time"
)

// Prediction is immutable once written. The unique key on
// (profile_id, game_date, guess_number) serialises concurrent
// submissions from the same player.
type Prediction struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ProfileID string `gorm:"type:uuid;not null;index;uniqueIndex:uniq_prediction_guess,priority:1"`
	GameDate  string `gorm:"type:varchar(10);not null;index;uniqueIndex:uniq_prediction_guess,priority:2"`

	PredictedPrice int64 `gorm:"not null"`
	GuessNumber    int   `gorm:"not null;uniqueIndex:uniq_prediction_guess,priority:3"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Prediction) TableName() string {
	return "predictions"
}
