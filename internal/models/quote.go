package models

import "time"

// Quote statuses.
const (
	QuoteDraft    = "draft"
	QuoteSent     = "sent"
	QuoteAccepted = "accepted"
	QuoteDeclined = "declined"
)

// Quote is a priced proposal for a client, built from line items.
type Quote struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ClientName string `gorm:"size:128;index"`
	Title      string `gorm:"size:256;not null"`
	Status     string `gorm:"size:16;default:draft;index"`
	HourlyRate float64
	ShareToken string `gorm:"size:64;uniqueIndex"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	LineItems []QuoteLineItem `gorm:"foreignKey:QuoteID"`
}

// QuoteLineItem is a single priced row on a quote.
type QuoteLineItem struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	QuoteID     uint   `gorm:"index;not null"`
	Description string `gorm:"size:256;not null"`
	Hours       float64
	Amount      float64
	Position    int
}
