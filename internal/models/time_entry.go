package models

import "time"

// TimeEntry is a logged block of work against a project, optionally pinned
// to a task. Its presence blocks deletion of the referenced rows during sync.
type TimeEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID   uint   `gorm:"index;not null"`
	TaskID      *uint  `gorm:"index"`
	UserName    string `gorm:"size:128"`
	Description string `gorm:"type:text"`
	Hours       float64
	WorkedOn    time.Time `gorm:"index"`
	CreatedAt   time.Time
}
