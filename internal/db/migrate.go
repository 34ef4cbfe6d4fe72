package db

import (
	"satoshidaily/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Profile{},
		&models.DailyResult{},
		&models.Prediction{},
		&models.BonusUnlock{},
		&models.Winner{},
		&models.PageView{},
	)
}
