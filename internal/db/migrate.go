package db

import (
	"fmt"

	"github.com/atelierhq/studioops/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Task{},
		&models.TimeEntry{},
		&models.Client{},
		&models.FlexiCredit{},
		&models.Retainer{},
		&models.Quote{},
		&models.QuoteLineItem{},
		&models.ColumnMapping{},
		&models.BoardRole{},
		&models.Setting{},
		&models.SyncRun{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SetSetting upserts a key/value setting row.
func SetSetting(db *gorm.DB, key, value string) error {
	s := models.Setting{Key: key, Value: value}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s)
	if result.Error != nil {
		return fmt.Errorf("db: set setting %q: %w", key, result.Error)
	}
	return nil
}

// GetSetting returns the value for key, or empty string when unset.
func GetSetting(db *gorm.DB, key string) (string, error) {
	var s models.Setting
	err := db.Where("`key` = ?", key).First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("db: get setting %q: %w", key, err)
	}
	return s.Value, nil
}
