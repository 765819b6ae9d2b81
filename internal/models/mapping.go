package models

// Semantic fields a column mapping can target.
const (
	FieldClient        = "client"
	FieldQuotedHours   = "quoted_hours"
	FieldTimeline      = "timeline"
	FieldDueDate       = "due_date"
	FieldCompletedDate = "completed_date"
	FieldQuoteValue    = "quote_value"
	FieldAgency        = "agency"
	FieldActive        = "active"
)

// ColumnMapping associates a semantic field with a Monday column ID.
// A nil BoardID marks the global default for that field.
type ColumnMapping struct {
	ID             uint    `gorm:"primaryKey;autoIncrement"`
	BoardID        *string `gorm:"size:32;index"`
	ColumnType     string  `gorm:"size:32;not null;index"`
	MondayColumnID string  `gorm:"size:64;not null"`
	WorkspaceID    *string `gorm:"size:32"`
}

// Board roles. Membership decides a project's lifecycle status and which
// boards the orphan sweep must never touch.
const (
	BoardRoleCompleted      = "completed"
	BoardRoleFlexiCompleted = "flexi_completed"
	BoardRoleLeads          = "leads"
)

// BoardRole marks a remote board as completed, Flexi-Design completed, or
// the leads board. Managed through the settings API, read-only during sync.
type BoardRole struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	BoardID   string `gorm:"size:32;not null;index"`
	BoardName string `gorm:"size:256"`
	Role      string `gorm:"size:24;not null;index"`
}
