package monday

import (
	"sort"
	"strconv"
	"strings"

	"github.com/atelierhq/studioops/internal/models"
)

// requireBoardSpecific lists fields that must never fall back to the global
// mapping on a completed board, whose schema is assumed incompatible with
// active-board defaults. The active marker is included so a global default
// cannot outrank the completed classification and cost items their locked
// status.
var requireBoardSpecific = map[string]bool{
	models.FieldQuoteValue: true,
	models.FieldActive:     true,
}

// Resolver answers which remote column holds a semantic field for a board.
// The full mapping index is built up front from every configured mapping,
// then Resolve walks an ordered strategy list: board-specific, sibling
// family, global default.
type Resolver struct {
	exact      map[string]map[string]string // boardID -> field -> columnID
	family     map[string][]familyEntry     // field -> family-member mappings
	global     map[string]string            // field -> columnID
	boardNames map[string]string            // boardID -> name
	completed  map[string]bool              // boards where global fallback is restricted
	keyword    string                       // family membership marker, lower-case
	strategies []strategy
}

type familyEntry struct {
	boardID  string
	columnID string
}

type strategy func(boardID, boardName, field string) (string, bool)

// ResolverOpts holds inputs for building a Resolver.
type ResolverOpts struct {
	Mappings        []models.ColumnMapping
	Boards          []Board // remote boards, for family-name lookups
	CompletedBoards map[string]bool
	FamilyKeyword   string
}

// NewResolver indexes all mappings in one pass and fixes the strategy order.
func NewResolver(opts ResolverOpts) *Resolver {
	r := &Resolver{
		exact:      make(map[string]map[string]string),
		family:     make(map[string][]familyEntry),
		global:     make(map[string]string),
		boardNames: make(map[string]string),
		completed:  opts.CompletedBoards,
		keyword:    strings.ToLower(opts.FamilyKeyword),
	}
	if r.completed == nil {
		r.completed = make(map[string]bool)
	}
	for _, b := range opts.Boards {
		r.boardNames[b.ID] = b.Name
	}

	for _, m := range opts.Mappings {
		if m.BoardID == nil {
			r.global[m.ColumnType] = m.MondayColumnID
			continue
		}
		boardID := *m.BoardID
		if r.exact[boardID] == nil {
			r.exact[boardID] = make(map[string]string)
		}
		r.exact[boardID][m.ColumnType] = m.MondayColumnID
		if r.inFamily(boardID) {
			r.family[m.ColumnType] = append(r.family[m.ColumnType], familyEntry{
				boardID:  boardID,
				columnID: m.MondayColumnID,
			})
		}
	}

	// Deterministic sibling tie-break: lowest board ID wins.
	for field := range r.family {
		entries := r.family[field]
		sort.Slice(entries, func(i, j int) bool {
			return lessBoardID(entries[i].boardID, entries[j].boardID)
		})
	}

	r.strategies = []strategy{r.resolveExact, r.resolveSibling, r.resolveGlobal}
	return r
}

// Resolve returns the column ID holding field for the given board, or
// false when no strategy finds one.
func (r *Resolver) Resolve(boardID, boardName, field string) (string, bool) {
	for _, s := range r.strategies {
		if col, ok := s(boardID, boardName, field); ok {
			return col, true
		}
	}
	return "", false
}

func (r *Resolver) resolveExact(boardID, _, field string) (string, bool) {
	col, ok := r.exact[boardID][field]
	return col, ok
}

// resolveSibling inherits a mapping from another board in the same naming
// family. Only applies when the target board is itself a family member.
func (r *Resolver) resolveSibling(boardID, boardName, field string) (string, bool) {
	if r.keyword == "" || !strings.Contains(strings.ToLower(boardName), r.keyword) {
		return "", false
	}
	if requireBoardSpecific[field] && r.completed[boardID] {
		return "", false
	}
	for _, e := range r.family[field] {
		if e.boardID != boardID {
			return e.columnID, true
		}
	}
	return "", false
}

// resolveGlobal falls back to the board_id-null default, except for fields
// flagged board-specific on completed boards.
func (r *Resolver) resolveGlobal(boardID, _, field string) (string, bool) {
	if requireBoardSpecific[field] && r.completed[boardID] {
		return "", false
	}
	col, ok := r.global[field]
	return col, ok
}

// inFamily reports whether the board's remote name carries the family
// keyword.
func (r *Resolver) inFamily(boardID string) bool {
	if r.keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(r.boardNames[boardID]), r.keyword)
}

// lessBoardID orders board IDs numerically when possible, lexically
// otherwise.
func lessBoardID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
