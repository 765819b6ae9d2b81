package monday

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/studioops/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// boardAPI abstracts the Monday client methods the syncer uses, enabling
// test fakes.
type boardAPI interface {
	Boards(ctx context.Context) ([]Board, error)
	BoardItems(ctx context.Context, boardID string) ([]Item, error)
	ItemsByIDs(ctx context.Context, ids []string) ([]Item, error)
	Subitems(ctx context.Context, itemID string) ([]Item, error)
}

// Options controls one sync invocation.
type Options struct {
	// Full scans every board with pagination instead of fetching completed
	// boards by known item IDs.
	Full bool
	// KeepOrphans skips the orphan sweep. The default manual-sync path sets
	// it to avoid destructive surprises.
	KeepOrphans bool
	// Trigger records what started the run: "manual" or "scheduled".
	Trigger string
}

// SyncerOpts holds parameters for creating a Syncer.
type SyncerOpts struct {
	DB            *gorm.DB
	API           boardAPI
	FamilyKeyword string
	Logger        *zap.Logger
	Progress      ProgressFunc
}

// Syncer reconciles the remote Monday workspace against the local mirror.
// One invocation runs the whole pipeline sequentially: fetch, normalize,
// reconcile projects and tasks, sweep orphans. Every write is an upsert
// keyed by remote identity, so re-running after a partial failure converges.
type Syncer struct {
	db       *gorm.DB
	api      boardAPI
	keyword  string
	log      *zap.Logger
	progress ProgressFunc
}

// NewSyncer creates a Syncer.
func NewSyncer(opts SyncerOpts) (*Syncer, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("monday: db is required")
	}
	if opts.API == nil {
		return nil, fmt.Errorf("monday: api client is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Syncer{
		db:       opts.DB,
		api:      opts.API,
		keyword:  opts.FamilyKeyword,
		log:      opts.Logger,
		progress: opts.Progress,
	}, nil
}

// fetchedItem pairs a remote item with the board it came from.
type fetchedItem struct {
	item      Item
	boardID   string
	boardName string
}

// Run executes one sync. The returned SyncRun row reflects the outcome;
// on error, writes already committed stay committed.
func (s *Syncer) Run(ctx context.Context, opts Options) (*models.SyncRun, error) {
	if opts.Trigger == "" {
		opts.Trigger = "manual"
	}
	run := &models.SyncRun{
		Trigger:   opts.Trigger,
		Full:      opts.Full,
		Status:    "running",
		StartedAt: time.Now(),
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("monday: record sync run: %w", err)
	}

	if err := s.run(ctx, opts, run); err != nil {
		s.finishRun(run, "error", err.Error())
		s.emit(Event{Phase: PhaseError, Message: err.Error()})
		return run, err
	}
	s.finishRun(run, "complete", "")
	s.emit(Event{
		Phase:    PhaseComplete,
		Projects: run.ProjectsSynced,
		Tasks:    run.TasksSynced,
		Removed:  run.ProjectsRemoved,
	})
	return run, nil
}

func (s *Syncer) finishRun(run *models.SyncRun, status, errMsg string) {
	now := time.Now()
	run.Status = status
	run.ErrorMessage = errMsg
	run.FinishedAt = &now
	if err := s.db.Save(run).Error; err != nil {
		s.log.Warn("monday: update sync run", zap.Error(err))
	}
}

func (s *Syncer) emit(evt Event) {
	if s.progress != nil {
		s.progress(evt)
	}
}

func (s *Syncer) run(ctx context.Context, opts Options, run *models.SyncRun) error {
	s.emit(Event{Phase: PhaseFetching})
	s.log.Info("monday: sync started",
		zap.String("trigger", opts.Trigger), zap.Bool("full", opts.Full))

	boards, err := s.api.Boards(ctx)
	if err != nil {
		return err
	}

	completed, leads, err := s.loadBoardRoles()
	if err != nil {
		return err
	}
	var mappings []models.ColumnMapping
	if err := s.db.Find(&mappings).Error; err != nil {
		return fmt.Errorf("monday: load column mappings: %w", err)
	}
	resolver := NewResolver(ResolverOpts{
		Mappings:        mappings,
		Boards:          boards,
		CompletedBoards: completed,
		FamilyKeyword:   s.keyword,
	})

	fetched, err := s.fetchItems(ctx, boards, completed, opts.Full)
	if err != nil {
		return err
	}

	s.emit(Event{Phase: PhaseChecking, Total: len(fetched)})

	rec := &reconciler{db: s.db, log: s.log}
	seen := make(map[string]bool, len(fetched))
	for i, f := range fetched {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.emit(Event{Phase: PhaseSyncing, Index: i + 1, Total: len(fetched), Project: f.item.Name})

		cand := buildCandidate(&f.item, f.boardID, f.boardName, resolver, s.log)
		classified := classifyStatus(f.boardID, f.boardName, resolver, leads, completed)
		proj, err := rec.reconcileProject(cand, classified, leads[f.boardID])
		if err != nil {
			return err
		}
		seen[cand.ItemID] = true
		run.ProjectsSynced++

		subitems := f.item.Subitems
		if subitems == nil {
			subitems, err = s.api.Subitems(ctx, f.item.ID)
			if err != nil {
				return err
			}
		}
		n, err := rec.reconcileTasks(proj, f.boardName, subitems, resolver)
		if err != nil {
			return err
		}
		run.TasksSynced += n
	}

	if !opts.KeepOrphans {
		removed, err := rec.sweepOrphans(seen, completed)
		if err != nil {
			return err
		}
		run.ProjectsRemoved = removed
	}

	s.log.Info("monday: sync finished",
		zap.Int("projects", run.ProjectsSynced),
		zap.Int("tasks", run.TasksSynced),
		zap.Int("removed", run.ProjectsRemoved))
	return nil
}

// loadBoardRoles reads the board-role markers: the completed safeguard set
// (completed + Flexi-Design completed) and the leads boards.
func (s *Syncer) loadBoardRoles() (completed, leads map[string]bool, err error) {
	var roles []models.BoardRole
	if err := s.db.Find(&roles).Error; err != nil {
		return nil, nil, fmt.Errorf("monday: load board roles: %w", err)
	}
	completed = make(map[string]bool)
	leads = make(map[string]bool)
	for _, r := range roles {
		switch r.Role {
		case models.BoardRoleCompleted, models.BoardRoleFlexiCompleted:
			completed[r.BoardID] = true
		case models.BoardRoleLeads:
			leads[r.BoardID] = true
		}
	}
	return completed, leads, nil
}

// fetchItems pulls remote items per the fetch strategy: active boards are
// fully paginated; completed boards are fetched by the item IDs already
// mirrored locally, to avoid scanning large archival boards. Full mode
// paginates everything.
func (s *Syncer) fetchItems(ctx context.Context, boards []Board, completed map[string]bool, full bool) ([]fetchedItem, error) {
	var fetched []fetchedItem
	var completedIDs []string

	for _, b := range boards {
		if !full && completed[b.ID] {
			var ids []string
			err := s.db.Model(&models.Project{}).
				Where("monday_board_id = ?", b.ID).
				Pluck("monday_item_id", &ids).Error
			if err != nil {
				return nil, fmt.Errorf("monday: list mirrored items for board %s: %w", b.ID, err)
			}
			completedIDs = append(completedIDs, ids...)
			continue
		}

		items, err := s.api.BoardItems(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			fetched = append(fetched, fetchedItem{item: it, boardID: b.ID, boardName: b.Name})
		}
	}

	if len(completedIDs) > 0 {
		items, err := s.api.ItemsByIDs(ctx, completedIDs)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			f := fetchedItem{item: it}
			if it.Board != nil {
				f.boardID = it.Board.ID
				f.boardName = it.Board.Name
			}
			fetched = append(fetched, f)
		}
	}
	return fetched, nil
}
