// Package urc routes unsolicited result code lines from the arbiter to a
// chain of typed handlers, each producing typed Events for the WebSocket hub
// and notification fan-out to consume.
package urc

import (
	"context"
	"time"
)

// Event is a tagged occurrence derived from a URC line, destined for the
// WebSocket broadcast and, when NotifyText is non-empty, the notification
// fan-out.
type Event struct {
	Kind       string
	Payload    any
	Time       time.Time
	NotifyText string
}

// Event kinds.
const (
	KindNewSMS       = "new_sms"
	KindIncomingCall = "incoming_call"
	KindMemoryFull   = "memory_full"
	KindSignal       = "signal"
	KindPdcpData     = "pdcp_data"
	KindRawData      = "raw_data"
)

// Handler attempts to consume a URC line. It returns false if the line does
// not match its pattern, letting the dispatcher offer it to the next
// handler in the chain.
type Handler interface {
	Handle(ctx context.Context, line string) bool
}

// Dispatcher offers each line to its handlers in order and stops at the
// first one that accepts it. A line no handler accepts is dropped unless a
// catch-all handler (RawDataHandler) is last in the chain.
type Dispatcher struct {
	handlers []Handler
}

// NewDispatcher builds a Dispatcher trying handlers in the given order.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	return &Dispatcher{handlers: handlers}
}

// Run consumes lines until the channel closes or ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, lines <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			d.dispatch(ctx, line)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, line string) {
	for _, h := range d.handlers {
		if h.Handle(ctx, line) {
			return
		}
	}
}
