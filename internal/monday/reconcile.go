package monday

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atelierhq/studioops/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// projectCandidate is one remote item normalized through the mapping
// resolver and value extractors, ready to diff against the mirror.
type projectCandidate struct {
	ItemID        string
	BoardID       string
	BoardName     string
	Name          string
	Client        string
	Agency        string
	QuotedHours   NumberResult
	QuoteValue    NumberResult
	DueDate       DateResult
	CompletedDate DateResult
	Raw           string
}

// reconciler applies candidates to the local mirror.
type reconciler struct {
	db  *gorm.DB
	log *zap.Logger
}

// buildCandidate normalizes a fetched item using the board's resolved
// column mappings. Malformed cells are logged and treated as absent.
func buildCandidate(it *Item, boardID, boardName string, res *Resolver, log *zap.Logger) projectCandidate {
	cand := projectCandidate{
		ItemID:    it.ID,
		BoardID:   boardID,
		BoardName: boardName,
		Name:      it.Name,
	}

	if col, ok := res.Resolve(boardID, boardName, models.FieldClient); ok {
		if cv := it.Column(col); cv != nil {
			cand.Client = strings.TrimSpace(cv.Text)
		}
	}
	if col, ok := res.Resolve(boardID, boardName, models.FieldAgency); ok {
		if cv := it.Column(col); cv != nil {
			cand.Agency = strings.TrimSpace(cv.Text)
		}
	}
	if col, ok := res.Resolve(boardID, boardName, models.FieldQuotedHours); ok {
		cand.QuotedHours = ExtractNumber(it.Column(col))
	}
	if col, ok := res.Resolve(boardID, boardName, models.FieldQuoteValue); ok {
		cand.QuoteValue = ExtractNumber(it.Column(col))
	}
	if col, ok := res.Resolve(boardID, boardName, models.FieldDueDate); ok {
		cand.DueDate = ExtractDate(it.Column(col))
	}
	if col, ok := res.Resolve(boardID, boardName, models.FieldCompletedDate); ok {
		cand.CompletedDate = ExtractDate(it.Column(col))
	}

	logMalformed(log, it.ID, models.FieldQuotedHours, cand.QuotedHours.State, cand.QuotedHours.Raw)
	logMalformed(log, it.ID, models.FieldQuoteValue, cand.QuoteValue.State, cand.QuoteValue.Raw)
	logMalformed(log, it.ID, models.FieldDueDate, cand.DueDate.State, cand.DueDate.Raw)
	logMalformed(log, it.ID, models.FieldCompletedDate, cand.CompletedDate.State, cand.CompletedDate.Raw)

	cand.Raw = normalizeColumns(it)
	return cand
}

func logMalformed(log *zap.Logger, itemID, field string, state ParseState, raw string) {
	if state == StateMalformed {
		log.Debug("monday: malformed cell",
			zap.String("item", itemID),
			zap.String("field", field),
			zap.String("raw", raw))
	}
}

// normalizeColumns serializes an item's column values to the stored
// monday_data payload, keyed by column ID, for later re-extraction.
func normalizeColumns(it *Item) string {
	type col struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		Value json.RawMessage `json:"value,omitempty"`
	}
	cols := make(map[string]col, len(it.ColumnValues))
	for _, cv := range it.ColumnValues {
		cols[cv.ID] = col{Type: cv.Type, Text: cv.Text, Value: cv.Value}
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// classifyStatus decides a candidate's lifecycle status from its board:
// leads board, board with an active-marker mapping, completed board, or the
// residual archived bucket.
func classifyStatus(boardID, boardName string, res *Resolver, leads, completed map[string]bool) string {
	switch {
	case leads[boardID]:
		return models.StatusLead
	case hasActiveMapping(boardID, boardName, res):
		return models.StatusActive
	case completed[boardID]:
		return models.StatusLocked
	default:
		return models.StatusArchived
	}
}

func hasActiveMapping(boardID, boardName string, res *Resolver) bool {
	_, ok := res.Resolve(boardID, boardName, models.FieldActive)
	return ok
}

// nextStatus applies the transition guard against the existing record:
// locked never regresses; a lead on an active board is promoted; a lead
// still on the leads board stays a lead.
func nextStatus(existing, classified string, onLeadsBoard bool) string {
	switch {
	case existing == models.StatusLocked:
		return models.StatusLocked
	case existing == models.StatusLead && classified == models.StatusActive:
		return models.StatusActive
	case existing == models.StatusLead && onLeadsBoard:
		return models.StatusLead
	default:
		return classified
	}
}

// reconcileProject upserts one candidate, keyed by monday_item_id, and
// returns the stored row.
func (r *reconciler) reconcileProject(cand projectCandidate, classified string, onLeadsBoard bool) (*models.Project, error) {
	var existing models.Project
	err := r.db.Where("monday_item_id = ?", cand.ItemID).First(&existing).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("monday: load project %s: %w", cand.ItemID, err)
	}

	status := classified
	if found {
		status = nextStatus(existing.Status, classified, onLeadsBoard)
	}

	proj := models.Project{
		MondayItemID:  cand.ItemID,
		MondayBoardID: cand.BoardID,
		Name:          cand.Name,
		Status:        status,
		MondayData:    cand.Raw,
	}
	if found {
		proj.ID = existing.ID
		proj.CreatedAt = existing.CreatedAt
	}

	proj.QuotedHours = mergeNumeric(cand.QuotedHours, existing.QuotedHours, found && status == models.StatusLocked)
	proj.QuoteValue = mergeNumeric(cand.QuoteValue, existing.QuoteValue, found && status == models.StatusLocked)
	proj.ClientName = mergeText(cand.Client, existing.ClientName)
	proj.Agency = mergeText(cand.Agency, existing.Agency)
	proj.DueDate = mergeDate(cand.DueDate, existing.DueDate, found && status == models.StatusLocked)
	proj.CompletedDate = mergeDate(cand.CompletedDate, existing.CompletedDate, found && status == models.StatusLocked)

	if err := r.db.Save(&proj).Error; err != nil {
		return nil, fmt.Errorf("monday: upsert project %s: %w", cand.ItemID, err)
	}
	if cand.Client != "" {
		r.ensureClient(cand.Client)
	}
	return &proj, nil
}

// mergeNumeric picks the incoming value unless the row is locked and the
// remote no longer supplies a usable one, in which case the recorded budget
// survives.
func mergeNumeric(incoming NumberResult, stored *float64, locked bool) *float64 {
	if incoming.Found() && (!locked || incoming.Value != 0) {
		v := incoming.Value
		return &v
	}
	if locked {
		return stored
	}
	return nil
}

// mergeText overwrites only when the remote supplied a value.
func mergeText(incoming string, stored *string) *string {
	if incoming != "" {
		return &incoming
	}
	return stored
}

// mergeDate clears on absence for live rows but preserves locked ones.
func mergeDate(incoming DateResult, stored *time.Time, locked bool) *time.Time {
	if incoming.Found() {
		v := incoming.Value
		return &v
	}
	if locked {
		return stored
	}
	return nil
}

// ensureClient registers a client name seen during sync. Best-effort; the
// client list is a convenience index over extracted names.
func (r *reconciler) ensureClient(name string) {
	c := models.Client{Name: name}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&c).Error
	if err != nil {
		r.log.Debug("monday: ensure client", zap.String("name", name), zap.Error(err))
	}
}

// reconcileTasks upserts the project's subitems, prunes tasks gone from the
// remote (unless blocked by time entries), and recomputes the project's
// aggregate quoted hours.
func (r *reconciler) reconcileTasks(proj *models.Project, boardName string, subitems []Item, res *Resolver) (int, error) {
	locked := proj.Status == models.StatusLocked
	seen := make(map[string]bool, len(subitems))

	for i := range subitems {
		sub := &subitems[i]
		seen[sub.ID] = true

		var existing models.Task
		err := r.db.Where("monday_item_id = ?", sub.ID).First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("monday: load task %s: %w", sub.ID, err)
		}

		task := models.Task{
			MondayItemID: sub.ID,
			ProjectID:    proj.ID,
			Name:         sub.Name,
		}
		if found {
			task.ID = existing.ID
			task.CreatedAt = existing.CreatedAt
		}

		var hours NumberResult
		if col, ok := res.Resolve(proj.MondayBoardID, boardName, models.FieldQuotedHours); ok {
			hours = ExtractNumber(sub.Column(col))
			logMalformed(r.log, sub.ID, models.FieldQuotedHours, hours.State, hours.Raw)
		}
		task.QuotedHours = mergeNumeric(hours, existing.QuotedHours, found && locked)

		if col, ok := res.Resolve(proj.MondayBoardID, boardName, models.FieldTimeline); ok {
			tl := ExtractTimeline(sub.Column(col))
			if tl.Found() {
				if !tl.From.IsZero() {
					from := tl.From
					task.TimelineStart = &from
				}
				if !tl.To.IsZero() {
					to := tl.To
					task.TimelineEnd = &to
				}
			} else if tl.State == StateMalformed {
				r.log.Debug("monday: malformed cell",
					zap.String("item", sub.ID),
					zap.String("field", models.FieldTimeline),
					zap.String("raw", tl.Raw))
			}
		}

		if users := ExtractPeople(sub); len(users) > 0 {
			data, err := json.Marshal(users)
			if err == nil {
				task.AssignedUsers = string(data)
			}
		}

		if err := r.db.Save(&task).Error; err != nil {
			return 0, fmt.Errorf("monday: upsert task %s: %w", sub.ID, err)
		}
	}

	if err := r.pruneTasks(proj.ID, seen); err != nil {
		return 0, err
	}
	if err := r.recomputeAggregate(proj); err != nil {
		return 0, err
	}
	return len(subitems), nil
}

// pruneTasks removes the project's tasks absent from the fetch, except
// those referenced by time entries, which are retained permanently.
func (r *reconciler) pruneTasks(projectID uint, seen map[string]bool) error {
	var tasks []models.Task
	if err := r.db.Where("project_id = ?", projectID).Find(&tasks).Error; err != nil {
		return fmt.Errorf("monday: list tasks for project %d: %w", projectID, err)
	}
	for _, t := range tasks {
		if seen[t.MondayItemID] {
			continue
		}
		var refs int64
		if err := r.db.Model(&models.TimeEntry{}).Where("task_id = ?", t.ID).Count(&refs).Error; err != nil {
			return fmt.Errorf("monday: count time entries for task %d: %w", t.ID, err)
		}
		if refs > 0 {
			r.log.Debug("monday: task retained, has time entries",
				zap.String("item", t.MondayItemID), zap.Int64("entries", refs))
			continue
		}
		if err := r.db.Delete(&models.Task{}, t.ID).Error; err != nil {
			return fmt.Errorf("monday: delete task %d: %w", t.ID, err)
		}
	}
	return nil
}

// recomputeAggregate sets the project's quoted hours to the sum of its
// tasks' hours. The stored aggregate is only overwritten when the new sum
// is positive or no aggregate was recorded before.
func (r *reconciler) recomputeAggregate(proj *models.Project) error {
	var sum sql.NullFloat64
	err := r.db.Model(&models.Task{}).
		Where("project_id = ?", proj.ID).
		Select("sum(quoted_hours)").
		Scan(&sum).Error
	if err != nil {
		return fmt.Errorf("monday: sum task hours for project %d: %w", proj.ID, err)
	}

	total := 0.0
	if sum.Valid {
		total = sum.Float64
	}
	if total <= 0 && proj.QuotedHours != nil {
		return nil
	}
	proj.QuotedHours = &total
	if err := r.db.Model(proj).Update("quoted_hours", total).Error; err != nil {
		return fmt.Errorf("monday: update aggregate for project %d: %w", proj.ID, err)
	}
	return nil
}

// sweepOrphans handles local projects missing from the fetch: locked
// projects and those on completed boards are never touched; the rest are
// archived when time entries exist and deleted when none do.
func (r *reconciler) sweepOrphans(seen map[string]bool, completed map[string]bool) (int, error) {
	var projects []models.Project
	if err := r.db.Find(&projects).Error; err != nil {
		return 0, fmt.Errorf("monday: list projects: %w", err)
	}

	removed := 0
	for _, p := range projects {
		if seen[p.MondayItemID] {
			continue
		}
		if p.Status == models.StatusLocked || completed[p.MondayBoardID] {
			continue
		}

		var refs int64
		if err := r.db.Model(&models.TimeEntry{}).Where("project_id = ?", p.ID).Count(&refs).Error; err != nil {
			return removed, fmt.Errorf("monday: count time entries for project %d: %w", p.ID, err)
		}
		if refs > 0 {
			if p.Status != models.StatusArchived {
				if err := r.db.Model(&models.Project{}).Where("id = ?", p.ID).
					Update("status", models.StatusArchived).Error; err != nil {
					return removed, fmt.Errorf("monday: archive project %d: %w", p.ID, err)
				}
				r.log.Info("monday: archived orphaned project",
					zap.String("item", p.MondayItemID), zap.String("name", p.Name))
			}
			continue
		}

		// No history anywhere: the project and its tasks can go.
		if err := r.db.Where("project_id = ?", p.ID).Delete(&models.Task{}).Error; err != nil {
			return removed, fmt.Errorf("monday: delete tasks for project %d: %w", p.ID, err)
		}
		if err := r.db.Delete(&models.Project{}, p.ID).Error; err != nil {
			return removed, fmt.Errorf("monday: delete project %d: %w", p.ID, err)
		}
		r.log.Info("monday: removed orphaned project",
			zap.String("item", p.MondayItemID), zap.String("name", p.Name))
		removed++
	}
	return removed, nil
}
