package urc

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

var clipRe = regexp.MustCompile(`^\+CLIP: "([^"]*)"`)

// callState is the CallHandler's internal idle/ringing state.
type callState int

const (
	callIdle callState = iota
	callRinging
)

// CallHandler tracks incoming-call URCs (RING, IRING, +CLIP, ^CEND, NO
// CARRIER) and de-dupes repeated rings from the same number within a 30s
// window.
type CallHandler struct {
	Events chan<- Event
	Now    func() time.Time

	mu         sync.Mutex
	state      callState
	lastNumber string
	lastTime   time.Time
}

// NewCallHandler creates a CallHandler emitting onto events.
func NewCallHandler(events chan<- Event) *CallHandler {
	return &CallHandler{Events: events, Now: time.Now}
}

// Handle implements Handler.
func (h *CallHandler) Handle(_ context.Context, line string) bool {
	switch {
	case line == "RING", line == "IRING":
		h.mu.Lock()
		h.state = callRinging
		h.mu.Unlock()
		return true

	case strings.HasPrefix(line, "+CLIP:"):
		m := clipRe.FindStringSubmatch(line)
		if m == nil {
			return true
		}
		number := m[1]
		now := h.now()

		h.mu.Lock()
		wasIdle := h.state == callIdle
		shouldNotify := wasIdle || number != h.lastNumber || now.Sub(h.lastTime) > 30*time.Second
		h.state = callRinging
		h.lastNumber = number
		h.lastTime = now
		h.mu.Unlock()

		evt := Event{Kind: KindIncomingCall, Time: now, Payload: map[string]any{
			"number": number,
			"state":  "ringing",
		}}
		if shouldNotify {
			evt.NotifyText = "Incoming call from " + number
		}
		h.emit(evt)
		return true

	case strings.HasPrefix(line, "^CEND:"), line == "NO CARRIER":
		h.mu.Lock()
		number := h.lastNumber
		h.state = callIdle
		h.mu.Unlock()
		if number == "" {
			return true
		}
		now := h.now()
		h.emit(Event{
			Kind:       KindIncomingCall,
			Time:       now,
			NotifyText: "Call from " + number + " ended",
			Payload: map[string]any{
				"number": number,
				"state":  "ended",
			},
		})
		return true
	}
	return false
}

func (h *CallHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *CallHandler) emit(evt Event) {
	if h.Events == nil {
		return
	}
	select {
	case h.Events <- evt:
	default:
	}
}
