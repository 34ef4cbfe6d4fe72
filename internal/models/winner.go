package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Winner is one winning (player, day). ActualPrice is copied from the
// DailyResult for auditability. TxID and PaidAt stay null until the
// operator records the Lightning payout by hand.
type Winner struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	GameDate  string `gorm:"type:varchar(10);not null;index;uniqueIndex:uniq_winner_day,priority:1"`
	ProfileID string `gorm:"type:uuid;not null;uniqueIndex:uniq_winner_day,priority:2"`

	PredictionID   uint64          `gorm:"not null"`
	PredictedPrice int64           `gorm:"not null"`
	ActualPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Difference     int64           `gorm:"not null"`
	Accuracy       float64         `gorm:"not null"`
	PrizeTier      string          `gorm:"type:varchar(20);not null"`
	PrizeShare     decimal.Decimal `gorm:"type:numeric(8,2);not null"`

	TxID   *string    `gorm:"type:varchar(100)"`
	PaidAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Winner) TableName() string {
	return "winners"
}
