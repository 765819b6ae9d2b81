package models

import "time"

// SyncRun records one invocation of the Monday sync pipeline.
type SyncRun struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Trigger         string `gorm:"size:16"` // manual | scheduled
	Full            bool
	ProjectsSynced  int
	TasksSynced     int
	ProjectsRemoved int
	Status          string `gorm:"size:16;default:running;index"`
	ErrorMessage    string `gorm:"type:text"`
	StartedAt       time.Time
	FinishedAt      *time.Time
}
