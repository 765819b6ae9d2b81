package dashboard

import (
	"testing"
	"time"

	"github.com/atelierhq/studioops/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openDashTestDB opens an in-memory SQLite DB with the dashboard's tables.
func openDashTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
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
		&models.SyncRun{},
	)
	if err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func strPtr(s string) *string        { return &s }
func f64Ptr(f float64) *float64      { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func TestProjectList(t *testing.T) {
	db := openDashTestDB(t)

	acme := models.Project{
		MondayItemID: "101",
		Name:         "Acme Rebrand",
		Status:       models.StatusActive,
		ClientName:   strPtr("Acme"),
		QuotedHours:  f64Ptr(40),
	}
	globex := models.Project{
		MondayItemID: "102",
		Name:         "Globex Site",
		Status:       models.StatusArchived,
	}
	if err := db.Create(&acme).Error; err != nil {
		t.Fatalf("seed acme: %v", err)
	}
	if err := db.Create(&globex).Error; err != nil {
		t.Fatalf("seed globex: %v", err)
	}
	db.Create(&models.TimeEntry{ProjectID: acme.ID, Hours: 6.5, WorkedOn: time.Now()})
	db.Create(&models.TimeEntry{ProjectID: acme.ID, Hours: 2, WorkedOn: time.Now()})

	rows, err := ProjectList(db, "")
	if err != nil {
		t.Fatalf("ProjectList: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	var acmeRow *ProjectRow
	for i := range rows {
		if rows[i].MondayItemID == "101" {
			acmeRow = &rows[i]
		}
	}
	if acmeRow == nil {
		t.Fatal("acme project missing from list")
	}
	if acmeRow.LoggedHours != 8.5 {
		t.Errorf("logged hours = %v, want 8.5", acmeRow.LoggedHours)
	}

	active, err := ProjectList(db, models.StatusActive)
	if err != nil {
		t.Fatalf("ProjectList(active): %v", err)
	}
	if len(active) != 1 || active[0].Name != "Acme Rebrand" {
		t.Errorf("active filter = %+v, want just Acme", active)
	}
}

func TestLoadProjectDetail(t *testing.T) {
	db := openDashTestDB(t)

	proj := models.Project{MondayItemID: "201", Name: "Detail", Status: models.StatusActive}
	if err := db.Create(&proj).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Create(&models.Task{MondayItemID: "201-1", ProjectID: proj.ID, Name: "Design"})
	db.Create(&models.TimeEntry{ProjectID: proj.ID, Hours: 3, WorkedOn: time.Now()})

	detail, err := LoadProjectDetail(db, proj.ID)
	if err != nil {
		t.Fatalf("LoadProjectDetail: %v", err)
	}
	if len(detail.Tasks) != 1 || detail.Tasks[0].Name != "Design" {
		t.Errorf("tasks = %+v", detail.Tasks)
	}
	if detail.LoggedHours != 3 {
		t.Errorf("logged hours = %v, want 3", detail.LoggedHours)
	}

	if _, err := LoadProjectDetail(db, 9999); err != gorm.ErrRecordNotFound {
		t.Errorf("missing project err = %v, want ErrRecordNotFound", err)
	}
}

func TestClientListAndFlexiLedger(t *testing.T) {
	db := openDashTestDB(t)

	client := models.Client{Name: "Acme"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	db.Create(&models.Client{Name: "Globex"})
	db.Create(&models.FlexiCredit{ClientID: client.ID, Hours: 20, Description: "block purchase"})
	db.Create(&models.FlexiCredit{ClientID: client.ID, Hours: -4.5, Description: "banner work"})

	rows, err := ClientList(db)
	if err != nil {
		t.Fatalf("ClientList: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("clients = %d, want 2", len(rows))
	}
	// Ordered by name.
	if rows[0].Name != "Acme" || rows[0].FlexiBalance != 15.5 {
		t.Errorf("acme row = %+v, want balance 15.5", rows[0])
	}
	if rows[1].FlexiBalance != 0 {
		t.Errorf("globex balance = %v, want 0", rows[1].FlexiBalance)
	}

	entries, balance, err := FlexiLedger(db, client.ID)
	if err != nil {
		t.Fatalf("FlexiLedger: %v", err)
	}
	if len(entries) != 2 || balance != 15.5 {
		t.Errorf("ledger = %d entries, balance %v; want 2 and 15.5", len(entries), balance)
	}
}

func TestRetainerCapacity(t *testing.T) {
	db := openDashTestDB(t)

	client := models.Client{Name: "Acme"}
	db.Create(&client)
	db.Create(&models.Retainer{ClientID: client.ID, Name: "Monthly design", MonthlyHours: 30, Active: true})
	db.Create(&models.Retainer{ClientID: client.ID, Name: "Old", MonthlyHours: 10, Active: false})

	proj := models.Project{MondayItemID: "301", Name: "Acme retained", Status: models.StatusActive, ClientName: strPtr("Acme")}
	db.Create(&proj)

	month := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	db.Create(&models.TimeEntry{ProjectID: proj.ID, Hours: 12, WorkedOn: month.AddDate(0, 0, 10)})
	// Outside the month, must not count.
	db.Create(&models.TimeEntry{ProjectID: proj.ID, Hours: 5, WorkedOn: month.AddDate(0, 1, 2)})

	rows, err := RetainerCapacity(db, month)
	if err != nil {
		t.Fatalf("RetainerCapacity: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (inactive excluded)", len(rows))
	}
	if rows[0].LoggedHours != 12 || rows[0].Remaining != 18 {
		t.Errorf("capacity = %+v, want logged 12 remaining 18", rows[0])
	}
}

func TestForecast(t *testing.T) {
	db := openDashTestDB(t)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	db.Create(&models.Project{
		MondayItemID: "401", Name: "Due this month", Status: models.StatusActive,
		QuoteValue: f64Ptr(3200), DueDate: timePtr(from.AddDate(0, 0, 14)),
	})
	db.Create(&models.Project{
		MondayItemID: "402", Name: "Due next month", Status: models.StatusActive,
		QuoteValue: f64Ptr(1000), DueDate: timePtr(from.AddDate(0, 1, 5)),
	})
	db.Create(&models.Project{
		MondayItemID: "403", Name: "No value", Status: models.StatusActive,
		DueDate: timePtr(from.AddDate(0, 0, 3)),
	})

	quote := models.Quote{Title: "Accepted work", Status: models.QuoteAccepted, ShareToken: "tok-forecast"}
	quote.LineItems = []models.QuoteLineItem{
		{Description: "Build", Hours: 10, Amount: 900},
		{Description: "Design", Hours: 5, Amount: 450},
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed quote: %v", err)
	}
	// Pin the acceptance inside the first month.
	db.Model(&models.Quote{}).Where("id = ?", quote.ID).Update("updated_at", from.AddDate(0, 0, 2))

	rows, err := Forecast(db, from, 3)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("months = %d, want 3", len(rows))
	}
	if rows[0].Month != "2026-09" || rows[0].ProjectedValue != 3200 {
		t.Errorf("month 0 = %+v, want 2026-09 projected 3200", rows[0])
	}
	if rows[0].AcceptedQuotes != 1350 {
		t.Errorf("accepted quotes = %v, want 1350", rows[0].AcceptedQuotes)
	}
	if rows[1].ProjectedValue != 1000 {
		t.Errorf("month 1 projected = %v, want 1000", rows[1].ProjectedValue)
	}
	if rows[2].ProjectedValue != 0 || rows[2].AcceptedQuotes != 0 {
		t.Errorf("month 2 = %+v, want zeros", rows[2])
	}
}

func TestSyncRunList(t *testing.T) {
	db := openDashTestDB(t)
	for i := 0; i < 5; i++ {
		db.Create(&models.SyncRun{Trigger: "scheduled", Status: "complete"})
	}

	runs, err := SyncRunList(db, 3)
	if err != nil {
		t.Fatalf("SyncRunList: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	if runs[0].ID < runs[1].ID {
		t.Error("runs not ordered newest first")
	}
}
