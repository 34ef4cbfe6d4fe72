package models

import (
	"time"
)

// Profile is one authenticated player. Rows are never deleted; opting
// out of marketing only clears the consent flag.
type Profile struct {
	ID    string `gorm:"type:uuid;primaryKey"`
	Email string `gorm:"type:varchar(255);not null;uniqueIndex"`

	MarketingConsent bool       `gorm:"not null;default:false"`
	ConsentTimestamp *time.Time `gorm:"type:timestamptz"`

	// CurrentStreak counts consecutive UTC days played, not days won.
	// Written only by the settlement worker.
	CurrentStreak  int     `gorm:"not null;default:0"`
	LastPlayedDate *string `gorm:"type:varchar(10)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Profile) TableName() string {
	return "profiles"
}
