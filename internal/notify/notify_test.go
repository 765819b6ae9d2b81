package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/atelierhq/studioops/internal/models"
	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
)

type mockSlack struct {
	calls    int
	failWith []error // error per call, nil for success
}

func (m *mockSlack) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	idx := m.calls
	m.calls++
	if idx < len(m.failWith) && m.failWith[idx] != nil {
		return "", "", m.failWith[idx]
	}
	return channelID, "ts", nil
}

func TestNewSlack_Validation(t *testing.T) {
	if _, err := NewSlack(SlackOpts{ChannelID: "C1"}); err == nil {
		t.Error("expected error for missing token")
	}
	if _, err := NewSlack(SlackOpts{BotToken: "xoxb-1"}); err == nil {
		t.Error("expected error for missing channel")
	}
}

func TestSlackSend(t *testing.T) {
	mock := &mockSlack{}
	s, err := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	if err != nil {
		t.Fatalf("new slack: %v", err)
	}
	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1", mock.calls)
	}
}

func TestSlackSend_RetriesRateLimit(t *testing.T) {
	mock := &mockSlack{failWith: []error{
		&slackapi.RateLimitedError{RetryAfter: time.Millisecond},
		&slackapi.RateLimitedError{RetryAfter: time.Millisecond},
		nil,
	}}
	s, _ := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mock.calls != 3 {
		t.Errorf("calls = %d, want 3", mock.calls)
	}
}

func TestSlackSend_NoRetryOnOtherErrors(t *testing.T) {
	mock := &mockSlack{failWith: []error{errors.New("channel_not_found")}}
	s, _ := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	if err := s.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", mock.calls)
	}
}

type mockDiscord struct {
	calls    int
	err      error
	lastText string
}

func (m *mockDiscord) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.calls++
	m.lastText = content
	if m.err != nil {
		return nil, m.err
	}
	return &discordgo.Message{Content: content}, nil
}

func TestDiscordSend(t *testing.T) {
	mock := &mockDiscord{}
	d, err := NewDiscord(DiscordOpts{ChannelID: "123", Session: mock})
	if err != nil {
		t.Fatalf("new discord: %v", err)
	}
	if err := d.Send(context.Background(), "sync done"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mock.lastText != "sync done" {
		t.Errorf("sent %q, want %q", mock.lastText, "sync done")
	}
}

type flakySender struct{ err error }

func (f *flakySender) Send(ctx context.Context, text string) error { return f.err }

func TestMulti_ContinuesPastFailures(t *testing.T) {
	good := &mockDiscord{}
	d, _ := NewDiscord(DiscordOpts{ChannelID: "123", Session: good})
	m := NewMulti(nil, &flakySender{err: errors.New("down")}, d, nil)

	err := m.Send(context.Background(), "msg")
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if good.calls != 1 {
		t.Errorf("healthy sender calls = %d, want 1", good.calls)
	}
}

func TestSyncMessage(t *testing.T) {
	finished := time.Date(2026, 8, 31, 10, 0, 42, 0, time.UTC)
	run := &models.SyncRun{
		Trigger:        "scheduled",
		Status:         "complete",
		ProjectsSynced: 12,
		TasksSynced:    47,
		StartedAt:      finished.Add(-42 * time.Second),
		FinishedAt:     &finished,
	}
	msg := SyncMessage(run)
	for _, want := range []string{"finished", "scheduled", "Projects: 12", "Tasks: 47", "42s"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Removed") {
		t.Error("message mentions removals when none happened")
	}

	run.Status = "error"
	run.ErrorMessage = "monday: http 500"
	run.ProjectsRemoved = 2
	msg = SyncMessage(run)
	for _, want := range []string{"failed", "Removed: 2", "monday: http 500"} {
		if !strings.Contains(msg, want) {
			t.Errorf("failure message missing %q:\n%s", want, msg)
		}
	}
}
