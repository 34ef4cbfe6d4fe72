package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyResult is one game day. The row is seeded ahead of time with the
// deterministic target time; ActualPrice and RecordedAt are written
// exactly once by the settlement worker and never rewritten.
// Invariant: ActualPrice is null iff RecordedAt is null.
type DailyResult struct {
	GameDate     string `gorm:"type:varchar(10);primaryKey"`
	TargetHour   int    `gorm:"not null"`
	TargetMinute int    `gorm:"not null"`

	ActualPrice *decimal.Decimal `gorm:"type:numeric(12,2)"`
	RecordedAt  *time.Time       `gorm:"type:timestamptz"`

	// NotifiedAt marks that winner derivation, streaks and the operator
	// notification completed for this day. A resolved row with a null
	// NotifiedAt is picked up again by the next settlement tick.
	NotifiedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (DailyResult) TableName() string {
	return "daily_results"
}

func (d *DailyResult) Resolved() bool {
	return d != nil && d.ActualPrice != nil
}
