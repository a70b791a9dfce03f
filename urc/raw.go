package urc

import (
	"context"
	"time"
)

// RawDataHandler is the tail of the handler chain: any line none of the
// typed handlers claimed is still surfaced to WebSocket clients as a
// raw_data event, rather than silently dropped. It never sets NotifyText,
// so it never reaches the notification fan-out.
type RawDataHandler struct {
	Events chan<- Event
	Now    func() time.Time
}

// NewRawDataHandler creates a RawDataHandler.
func NewRawDataHandler(events chan<- Event) *RawDataHandler {
	return &RawDataHandler{Events: events, Now: time.Now}
}

// Handle implements Handler. It always accepts the line.
func (h *RawDataHandler) Handle(ctx context.Context, line string) bool {
	h.emit(Event{
		Kind:    KindRawData,
		Time:    h.now(),
		Payload: map[string]any{"line": line},
	})
	return true
}

func (h *RawDataHandler) emit(evt Event) {
	if h.Events == nil {
		return
	}
	select {
	case h.Events <- evt:
	default:
	}
}

func (h *RawDataHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
