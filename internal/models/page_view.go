package models

import (
	"time"

	"gorm.io/datatypes"
)

// PageView is an append-only analytics record. Nothing in the game
// depends on it.
type PageView struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	Path       string         `gorm:"type:varchar(255);not null;index"`
	Referrer   string         `gorm:"type:varchar(255)"`
	Properties datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (PageView) TableName() string {
	return "page_views"
}
