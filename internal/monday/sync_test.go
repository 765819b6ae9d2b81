package monday

import (
	"context"
	"errors"
	"testing"

	"github.com/atelierhq/studioops/internal/models"
	"gorm.io/gorm"
)

// fakeAPI implements boardAPI from in-memory fixtures.
type fakeAPI struct {
	boards     []Board
	boardItems map[string][]Item // boardID -> items
	byID       map[string]Item
	subitems   map[string][]Item // itemID -> subitems
	boardsErr  error
	itemsErr   error
}

func (f *fakeAPI) Boards(ctx context.Context) ([]Board, error) {
	if f.boardsErr != nil {
		return nil, f.boardsErr
	}
	return f.boards, nil
}

func (f *fakeAPI) BoardItems(ctx context.Context, boardID string) ([]Item, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return f.boardItems[boardID], nil
}

func (f *fakeAPI) ItemsByIDs(ctx context.Context, ids []string) ([]Item, error) {
	var items []Item
	for _, id := range ids {
		if it, ok := f.byID[id]; ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func (f *fakeAPI) Subitems(ctx context.Context, itemID string) ([]Item, error) {
	return f.subitems[itemID], nil
}

// seedActiveBoard configures board 100 as an active family board with
// client and quoted-hours mappings.
func seedActiveBoard(t *testing.T, db *gorm.DB) {
	t.Helper()
	mappings := []models.ColumnMapping{
		{BoardID: strPtr("100"), ColumnType: models.FieldActive, MondayColumnID: "colStatus"},
		{BoardID: strPtr("100"), ColumnType: models.FieldClient, MondayColumnID: "colX"},
		{BoardID: strPtr("100"), ColumnType: models.FieldQuotedHours, MondayColumnID: "colY"},
	}
	for i := range mappings {
		if err := db.Create(&mappings[i]).Error; err != nil {
			t.Fatalf("seed mapping: %v", err)
		}
	}
}

func newTestSyncer(t *testing.T, db *gorm.DB, api boardAPI, progress ProgressFunc) *Syncer {
	t.Helper()
	s, err := NewSyncer(SyncerOpts{
		DB:            db,
		API:           api,
		FamilyKeyword: "projects",
		Progress:      progress,
	})
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}
	return s
}

func acmeFixture() *fakeAPI {
	return &fakeAPI{
		boards: []Board{{ID: "100", Name: "Client Projects"}},
		boardItems: map[string][]Item{
			"100": {{
				ID:   "900",
				Name: "Website build",
				ColumnValues: []ColumnValue{
					{ID: "colX", Type: "text", Text: "Acme"},
					{ID: "colStatus", Type: "status", Text: "In progress"},
				},
			}},
		},
		subitems: map[string][]Item{
			"900": {subitem("t1", "Design", ColumnValue{ID: "colY", Type: "numbers", Text: "8"})},
		},
	}
}

func TestSync_EndToEnd(t *testing.T) {
	db := openSyncTestDB(t)
	seedActiveBoard(t, db)
	api := acmeFixture()

	var events []Event
	s := newTestSyncer(t, db, api, func(e Event) { events = append(events, e) })

	run, err := s.Run(context.Background(), Options{KeepOrphans: true})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if run.Status != "complete" {
		t.Errorf("run status = %q, want complete", run.Status)
	}
	if run.ProjectsSynced != 1 || run.TasksSynced != 1 {
		t.Errorf("counts = %d projects / %d tasks, want 1/1", run.ProjectsSynced, run.TasksSynced)
	}

	var proj models.Project
	if err := db.Where("monday_item_id = ?", "900").First(&proj).Error; err != nil {
		t.Fatalf("project not mirrored: %v", err)
	}
	if proj.ClientName == nil || *proj.ClientName != "Acme" {
		t.Errorf("client = %v, want Acme", proj.ClientName)
	}
	if proj.Status != models.StatusActive {
		t.Errorf("status = %q, want active", proj.Status)
	}
	if proj.QuotedHours == nil || *proj.QuotedHours != 8 {
		t.Errorf("quoted hours = %v, want 8 (task aggregate)", proj.QuotedHours)
	}

	// Progress sequence starts with fetching and ends with complete.
	if len(events) < 3 {
		t.Fatalf("events = %d, want at least fetching/syncing/complete", len(events))
	}
	if events[0].Phase != PhaseFetching {
		t.Errorf("first event = %q, want fetching", events[0].Phase)
	}
	last := events[len(events)-1]
	if last.Phase != PhaseComplete {
		t.Errorf("last event = %q, want complete", last.Phase)
	}
	if last.Projects != 1 {
		t.Errorf("complete event projects = %d, want 1", last.Projects)
	}
}

func TestSync_Idempotent(t *testing.T) {
	db := openSyncTestDB(t)
	seedActiveBoard(t, db)
	api := acmeFixture()
	s := newTestSyncer(t, db, api, nil)

	if _, err := s.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	var before models.Project
	db.Where("monday_item_id = ?", "900").First(&before)

	if _, err := s.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	var after models.Project
	db.Where("monday_item_id = ?", "900").First(&after)

	if after.ID != before.ID {
		t.Errorf("second sync created a new row: %d != %d", after.ID, before.ID)
	}
	if after.Status != before.Status {
		t.Errorf("status changed: %q -> %q", before.Status, after.Status)
	}
	if *after.QuotedHours != *before.QuotedHours {
		t.Errorf("quoted hours changed: %v -> %v", *before.QuotedHours, *after.QuotedHours)
	}

	var projects, tasks int64
	db.Model(&models.Project{}).Count(&projects)
	db.Model(&models.Task{}).Count(&tasks)
	if projects != 1 || tasks != 1 {
		t.Errorf("rows = %d projects / %d tasks, want 1/1", projects, tasks)
	}
}

func TestSync_CompletedBoardFetchedByID(t *testing.T) {
	db := openSyncTestDB(t)
	db.Create(&models.BoardRole{BoardID: "300", BoardName: "Completed Work", Role: models.BoardRoleCompleted})
	db.Create(&models.Project{
		MondayItemID: "901", MondayBoardID: "300",
		Name: "Old job", Status: models.StatusLocked, QuotedHours: f64(40),
	})

	api := &fakeAPI{
		boards: []Board{{ID: "300", Name: "Completed Work"}},
		byID: map[string]Item{
			"901": {
				ID:   "901",
				Name: "Old job",
				Board: &struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				}{ID: "300", Name: "Completed Work"},
			},
		},
	}
	s := newTestSyncer(t, db, api, nil)

	run, err := s.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if run.ProjectsSynced != 1 {
		t.Errorf("projects synced = %d, want 1 (fetched by ID)", run.ProjectsSynced)
	}

	// The remote supplied no numbers; the locked budget survives.
	var proj models.Project
	db.Where("monday_item_id = ?", "901").First(&proj)
	if proj.Status != models.StatusLocked {
		t.Errorf("status = %q, want locked", proj.Status)
	}
	if proj.QuotedHours == nil || *proj.QuotedHours != 40 {
		t.Errorf("quoted hours = %v, want preserved 40", proj.QuotedHours)
	}
}

func TestSync_OrphanSweepRespectsFlags(t *testing.T) {
	db := openSyncTestDB(t)
	seedActiveBoard(t, db)
	db.Create(&models.Project{MondayItemID: "999", MondayBoardID: "100", Name: "Gone", Status: models.StatusActive})
	api := acmeFixture()
	s := newTestSyncer(t, db, api, nil)

	// KeepOrphans leaves the stale row alone.
	if _, err := s.Run(context.Background(), Options{KeepOrphans: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	var count int64
	db.Model(&models.Project{}).Count(&count)
	if count != 2 {
		t.Errorf("projects = %d, want 2 with KeepOrphans", count)
	}

	// Without the flag the unreferenced orphan is deleted.
	run, err := s.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if run.ProjectsRemoved != 1 {
		t.Errorf("removed = %d, want 1", run.ProjectsRemoved)
	}
	db.Model(&models.Project{}).Count(&count)
	if count != 1 {
		t.Errorf("projects = %d, want 1 after sweep", count)
	}
}

func TestSync_LeadPromotion(t *testing.T) {
	db := openSyncTestDB(t)
	seedActiveBoard(t, db)
	db.Create(&models.BoardRole{BoardID: "400", BoardName: "Leads", Role: models.BoardRoleLeads})
	db.Create(&models.Project{MondayItemID: "900", MondayBoardID: "400", Name: "Website build", Status: models.StatusLead})

	// The item now lives on the active board.
	api := acmeFixture()
	s := newTestSyncer(t, db, api, nil)
	if _, err := s.Run(context.Background(), Options{KeepOrphans: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var proj models.Project
	db.Where("monday_item_id = ?", "900").First(&proj)
	if proj.Status != models.StatusActive {
		t.Errorf("status = %q, want promoted to active", proj.Status)
	}
}

func TestSync_FetchErrorRecordsFailedRun(t *testing.T) {
	db := openSyncTestDB(t)
	api := &fakeAPI{boardsErr: errors.New("monday: graphql error: budget exhausted")}

	var events []Event
	s := newTestSyncer(t, db, api, func(e Event) { events = append(events, e) })

	run, err := s.Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if run.Status != "error" {
		t.Errorf("run status = %q, want error", run.Status)
	}
	if run.ErrorMessage == "" {
		t.Error("run error message empty")
	}
	last := events[len(events)-1]
	if last.Phase != PhaseError {
		t.Errorf("last event = %q, want error", last.Phase)
	}
}

func TestSync_CancelledContext(t *testing.T) {
	db := openSyncTestDB(t)
	seedActiveBoard(t, db)
	api := acmeFixture()
	s := newTestSyncer(t, db, api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
