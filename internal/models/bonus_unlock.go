package models

import (
	"time"
)

// BonusUnlock records that the player redeemed the social-share gate
// for a day, enabling the third guess. At most one per (player, day).
type BonusUnlock struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ProfileID string `gorm:"type:uuid;not null;uniqueIndex:uniq_bonus_unlock,priority:1"`
	GameDate  string `gorm:"type:varchar(10);not null;uniqueIndex:uniq_bonus_unlock,priority:2"`
	Platform  string `gorm:"type:varchar(30)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (BonusUnlock) TableName() string {
	return "bonus_unlocks"
}
