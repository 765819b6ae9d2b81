package models

import "time"

// Well-known setting keys.
const (
	SettingMondayToken     = "monday_token"
	SettingAccountingToken = "accounting_token"
)

// Setting is an instance-level key/value, used for API tokens and other
// values managed outside the YAML config.
type Setting struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Key       string `gorm:"size:64;uniqueIndex;not null"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}
