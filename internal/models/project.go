package models

import "time"

// Project statuses. A locked project's recorded budget data is preserved
// indefinitely; locked never regresses to an earlier status.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusLocked   = "locked"
	StatusLead     = "lead"
)

// Project mirrors a Monday.com board item.
type Project struct {
	ID            uint     `gorm:"primaryKey;autoIncrement"`
	MondayItemID  string   `gorm:"size:32;uniqueIndex;not null"`
	MondayBoardID string   `gorm:"size:32;index"`
	Name          string   `gorm:"size:256;not null"`
	Status        string   `gorm:"size:16;default:active;index"`
	ClientName    *string  `gorm:"size:128"`
	Agency        *string  `gorm:"size:128"`
	QuotedHours   *float64
	QuoteValue    *float64
	DueDate       *time.Time
	CompletedDate *time.Time
	MondayData    string `gorm:"type:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Tasks       []Task      `gorm:"foreignKey:ProjectID"`
	TimeEntries []TimeEntry `gorm:"foreignKey:ProjectID"`
}

// Task mirrors a Monday.com subitem under a project.
type Task struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	MondayItemID  string `gorm:"size:32;uniqueIndex;not null"`
	ProjectID     uint   `gorm:"index;not null"`
	Name          string `gorm:"size:256;not null"`
	QuotedHours   *float64
	TimelineStart *time.Time
	TimelineEnd   *time.Time
	AssignedUsers string `gorm:"type:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Project     *Project    `gorm:"foreignKey:ProjectID"`
	TimeEntries []TimeEntry `gorm:"foreignKey:TaskID"`
}
