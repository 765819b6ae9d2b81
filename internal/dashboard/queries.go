package dashboard

import (
	"fmt"
	"time"

	"github.com/atelierhq/studioops/internal/models"
	"gorm.io/gorm"
)

// ProjectRow holds project data for the list view, including hours logged
// against the quote.
type ProjectRow struct {
	ID           uint       `json:"id"`
	MondayItemID string     `json:"monday_item_id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	ClientName   *string    `json:"client_name"`
	Agency       *string    `json:"agency"`
	QuotedHours  *float64   `json:"quoted_hours"`
	QuoteValue   *float64   `json:"quote_value"`
	LoggedHours  float64    `json:"logged_hours"`
	DueDate      *time.Time `json:"due_date"`
}

// ProjectList returns projects matching the optional status filter, newest
// first, with logged hours summed per project.
func ProjectList(db *gorm.DB, status string) ([]ProjectRow, error) {
	q := db.Model(&models.Project{}).
		Select("projects.id, projects.monday_item_id, projects.name, projects.status, " +
			"projects.client_name, projects.agency, projects.quoted_hours, projects.quote_value, " +
			"projects.due_date, coalesce(sum(time_entries.hours), 0) as logged_hours").
		Joins("left join time_entries on time_entries.project_id = projects.id").
		Group("projects.id").
		Order("projects.updated_at desc")
	if status != "" {
		q = q.Where("projects.status = ?", status)
	}

	var rows []ProjectRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("dashboard: list projects: %w", err)
	}
	return rows, nil
}

// ProjectDetail holds one project with its tasks and time entries.
type ProjectDetail struct {
	Project     models.Project     `json:"project"`
	Tasks       []models.Task      `json:"tasks"`
	TimeEntries []models.TimeEntry `json:"time_entries"`
	LoggedHours float64            `json:"logged_hours"`
}

// LoadProjectDetail returns the full view of one project.
func LoadProjectDetail(db *gorm.DB, id uint) (*ProjectDetail, error) {
	var proj models.Project
	if err := db.First(&proj, id).Error; err != nil {
		return nil, err
	}
	detail := &ProjectDetail{Project: proj}
	if err := db.Where("project_id = ?", id).Order("id").Find(&detail.Tasks).Error; err != nil {
		return nil, fmt.Errorf("dashboard: load tasks: %w", err)
	}
	if err := db.Where("project_id = ?", id).Order("worked_on desc").Find(&detail.TimeEntries).Error; err != nil {
		return nil, fmt.Errorf("dashboard: load time entries: %w", err)
	}
	for _, e := range detail.TimeEntries {
		detail.LoggedHours += e.Hours
	}
	return detail, nil
}

// ClientRow holds client data with the Flexi-Design balance.
type ClientRow struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	FlexiBalance float64 `json:"flexi_balance"`
}

// ClientList returns all clients with their current credit balances.
func ClientList(db *gorm.DB) ([]ClientRow, error) {
	var rows []ClientRow
	err := db.Model(&models.Client{}).
		Select("clients.id, clients.name, coalesce(sum(flexi_credits.hours), 0) as flexi_balance").
		Joins("left join flexi_credits on flexi_credits.client_id = clients.id").
		Group("clients.id").
		Order("clients.name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("dashboard: list clients: %w", err)
	}
	return rows, nil
}

// FlexiLedger returns a client's credit movements and resulting balance.
func FlexiLedger(db *gorm.DB, clientID uint) ([]models.FlexiCredit, float64, error) {
	var entries []models.FlexiCredit
	if err := db.Where("client_id = ?", clientID).Order("created_at").Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("dashboard: load flexi ledger: %w", err)
	}
	balance := 0.0
	for _, e := range entries {
		balance += e.Hours
	}
	return entries, balance, nil
}

// RetainerRow holds one retainer's capacity for a month.
type RetainerRow struct {
	ID           uint    `json:"id"`
	ClientName   string  `json:"client_name"`
	Name         string  `json:"name"`
	MonthlyHours float64 `json:"monthly_hours"`
	LoggedHours  float64 `json:"logged_hours"`
	Remaining    float64 `json:"remaining"`
}

// RetainerCapacity returns active retainers with hours logged for the
// client's projects during the given month.
func RetainerCapacity(db *gorm.DB, month time.Time) ([]RetainerRow, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var retainers []models.Retainer
	if err := db.Where("active = ?", true).Find(&retainers).Error; err != nil {
		return nil, fmt.Errorf("dashboard: list retainers: %w", err)
	}

	rows := make([]RetainerRow, 0, len(retainers))
	for _, r := range retainers {
		var client models.Client
		if err := db.First(&client, r.ClientID).Error; err != nil {
			return nil, fmt.Errorf("dashboard: load retainer client %d: %w", r.ClientID, err)
		}

		var logged float64
		err := db.Model(&models.TimeEntry{}).
			Joins("join projects on projects.id = time_entries.project_id").
			Where("projects.client_name = ? AND time_entries.worked_on >= ? AND time_entries.worked_on < ?",
				client.Name, start, end).
			Select("coalesce(sum(time_entries.hours), 0)").
			Scan(&logged).Error
		if err != nil {
			return nil, fmt.Errorf("dashboard: sum retainer hours: %w", err)
		}

		rows = append(rows, RetainerRow{
			ID:           r.ID,
			ClientName:   client.Name,
			Name:         r.Name,
			MonthlyHours: r.MonthlyHours,
			LoggedHours:  logged,
			Remaining:    r.MonthlyHours - logged,
		})
	}
	return rows, nil
}

// ForecastMonth is one month of projected income.
type ForecastMonth struct {
	Month          string  `json:"month"` // YYYY-MM
	ProjectedValue float64 `json:"projected_value"`
	AcceptedQuotes float64 `json:"accepted_quotes"`
	Invoiced       float64 `json:"invoiced"`
}

// Forecast projects income per month: quote values of projects due in the
// month plus totals of quotes accepted in it. Invoiced amounts are filled
// in by the caller from the accounting API.
func Forecast(db *gorm.DB, from time.Time, months int) ([]ForecastMonth, error) {
	if months <= 0 {
		months = 6
	}
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]ForecastMonth, months)
	for i := range out {
		mStart := start.AddDate(0, i, 0)
		mEnd := mStart.AddDate(0, 1, 0)
		fm := ForecastMonth{Month: mStart.Format("2006-01")}

		err := db.Model(&models.Project{}).
			Where("due_date >= ? AND due_date < ? AND quote_value IS NOT NULL", mStart, mEnd).
			Select("coalesce(sum(quote_value), 0)").
			Scan(&fm.ProjectedValue).Error
		if err != nil {
			return nil, fmt.Errorf("dashboard: forecast projects: %w", err)
		}

		err = db.Model(&models.Quote{}).
			Joins("join quote_line_items on quote_line_items.quote_id = quotes.id").
			Where("quotes.status = ? AND quotes.updated_at >= ? AND quotes.updated_at < ?",
				models.QuoteAccepted, mStart, mEnd).
			Select("coalesce(sum(quote_line_items.amount), 0)").
			Scan(&fm.AcceptedQuotes).Error
		if err != nil {
			return nil, fmt.Errorf("dashboard: forecast quotes: %w", err)
		}

		out[i] = fm
	}
	return out, nil
}

// SyncRunList returns recent sync runs, newest first.
func SyncRunList(db *gorm.DB, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	if err := db.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("dashboard: list sync runs: %w", err)
	}
	return runs, nil
}
