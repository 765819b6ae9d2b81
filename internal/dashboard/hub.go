package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/atelierhq/studioops/internal/monday"
	"go.uber.org/zap"
)

// ErrSyncRunning is returned when a sync trigger arrives while a run is
// already in flight. Concurrent runs are never started.
var ErrSyncRunning = errors.New("dashboard: sync already running")

// RunFunc executes one sync. The hub passes itself as the progress sink.
type RunFunc func(ctx context.Context, opts monday.Options) error

// Hub relays sync progress events to SSE subscribers and serializes sync
// triggers from the dashboard.
type Hub struct {
	run RunFunc
	log *zap.Logger

	mu      sync.Mutex
	running bool
	subs    map[chan monday.Event]bool
}

// NewHub creates a Hub. run may be nil when the dashboard is started
// without a configured Monday client; triggers then fail.
func NewHub(run RunFunc, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		run:  run,
		log:  log,
		subs: make(map[chan monday.Event]bool),
	}
}

// Progress broadcasts one event to all subscribers. Slow subscribers drop
// events rather than stalling the sync.
func (h *Hub) Progress(evt monday.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a progress listener. The returned cancel func must be
// called when the listener goes away.
func (h *Hub) Subscribe() (<-chan monday.Event, func()) {
	ch := make(chan monday.Event, 64)
	h.mu.Lock()
	h.subs[ch] = true
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Running reports whether a sync is in flight.
func (h *Hub) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Trigger starts a sync in the background. Returns ErrSyncRunning when one
// is already in flight.
func (h *Hub) Trigger(opts monday.Options) error {
	if h.run == nil {
		return errors.New("dashboard: sync is not configured")
	}
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrSyncRunning
	}
	h.running = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
		}()
		if err := h.run(context.Background(), opts); err != nil {
			h.log.Error("dashboard: sync failed", zap.Error(err))
		}
	}()
	return nil
}
