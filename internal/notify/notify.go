// Package notify posts sync outcome notifications to chat. Adapters wrap
// the Slack and Discord APIs behind a common Sender so the scheduler does
// not care where messages land.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atelierhq/studioops/internal/models"
	"go.uber.org/zap"
)

// Sender delivers one message to a chat destination.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Multi fans a message out to several senders. Delivery failures are logged
// and do not stop the remaining senders.
type Multi struct {
	senders []Sender
	log     *zap.Logger
}

// NewMulti creates a Multi. Nil senders are skipped.
func NewMulti(log *zap.Logger, senders ...Sender) *Multi {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Multi{log: log}
	for _, s := range senders {
		if s != nil {
			m.senders = append(m.senders, s)
		}
	}
	return m
}

// Send delivers text to every configured sender.
func (m *Multi) Send(ctx context.Context, text string) error {
	var failed int
	for _, s := range m.senders {
		if err := s.Send(ctx, text); err != nil {
			failed++
			m.log.Error("notify: send failed", zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("notify: %d of %d senders failed", failed, len(m.senders))
	}
	return nil
}

// SyncMessage renders a sync run outcome as a chat message.
func SyncMessage(run *models.SyncRun) string {
	var b strings.Builder
	switch run.Status {
	case "complete":
		fmt.Fprintf(&b, "✅ Monday sync finished (%s)", run.Trigger)
	default:
		fmt.Fprintf(&b, "❌ Monday sync failed (%s)", run.Trigger)
	}
	fmt.Fprintf(&b, "\nProjects: %d  Tasks: %d", run.ProjectsSynced, run.TasksSynced)
	if run.ProjectsRemoved > 0 {
		fmt.Fprintf(&b, "  Removed: %d", run.ProjectsRemoved)
	}
	if run.FinishedAt != nil && !run.StartedAt.IsZero() {
		fmt.Fprintf(&b, "\nDuration: %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(&b, "\nError: %s", run.ErrorMessage)
	}
	return b.String()
}
