package monday

// Phase identifies a stage of the sync pipeline.
type Phase string

const (
	PhaseFetching Phase = "fetching"
	PhaseChecking Phase = "checking"
	PhaseSyncing  Phase = "syncing"
	PhaseComplete Phase = "complete"
	PhaseError    Phase = "error"
)

// Event is one progress report emitted during a sync run. Consumed by the
// dashboard SSE relay.
type Event struct {
	Phase    Phase  `json:"phase"`
	Index    int    `json:"index,omitempty"`
	Total    int    `json:"total,omitempty"`
	Project  string `json:"project,omitempty"`
	Projects int    `json:"projects,omitempty"`
	Tasks    int    `json:"tasks,omitempty"`
	Removed  int    `json:"removed,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ProgressFunc receives progress events, in order, on the sync goroutine.
type ProgressFunc func(Event)
