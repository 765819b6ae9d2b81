package models

import "time"

// Client is a studio client, keyed by the name extracted from Monday.
type Client struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:128;uniqueIndex;not null"`
	Contact   string `gorm:"size:256"`
	Notes     string `gorm:"type:text"`
	CreatedAt time.Time

	Credits   []FlexiCredit `gorm:"foreignKey:ClientID"`
	Retainers []Retainer    `gorm:"foreignKey:ClientID"`
}

// FlexiCredit is one movement on a client's Flexi-Design ledger. Positive
// hours are purchased credit, negative hours are drawdown.
type FlexiCredit struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ClientID    uint   `gorm:"index;not null"`
	Hours       float64
	Description string `gorm:"size:256"`
	CreatedAt   time.Time
}

// Retainer is a recurring monthly hour allocation for a client.
type Retainer struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ClientID     uint   `gorm:"index;not null"`
	Name         string `gorm:"size:128"`
	MonthlyHours float64
	Active       bool `gorm:"default:true;index"`
	StartedAt    time.Time
}
