// Package notify fans out gateway events to configured notification sinks
// (a webhook, a local log file), each with its own queueing and delivery
// policy.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Job is a single notification to deliver, derived from an urc.Event that
// carried non-empty NotifyText.
type Job struct {
	SenderLabel string
	Body        string
	Kind        string
	CreatedAt   time.Time
}

// Channel is a notification sink with its own delivery lifecycle.
type Channel interface {
	// Enqueue accepts a job for delivery. It must not block.
	Enqueue(job Job)
	// Run drives the channel's background delivery loop until ctx is
	// canceled.
	Run(ctx context.Context)
}

// Manager gates Jobs by kind before fanning them out to every configured
// Channel.
type Manager struct {
	channels []Channel
	enabled  map[string]bool
	log      *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. enabled maps an urc.Event kind to whether
// notifications of that kind should be delivered; a kind absent from the
// map is treated as enabled.
func NewManager(enabled map[string]bool, log *slog.Logger, channels ...Channel) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{channels: channels, enabled: enabled, log: log, now: time.Now}
}

// Run starts every configured channel's delivery loop.
func (m *Manager) Run(ctx context.Context) {
	for _, ch := range m.channels {
		go ch.Run(ctx)
	}
}

// Publish delivers body to every channel if kind is enabled.
func (m *Manager) Publish(kind, senderLabel, body string) {
	if body == "" {
		return
	}
	if enabled, ok := m.enabled[kind]; ok && !enabled {
		return
	}
	job := Job{SenderLabel: senderLabel, Body: body, Kind: kind, CreatedAt: m.now()}
	for _, ch := range m.channels {
		ch.Enqueue(job)
	}
}
