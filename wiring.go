package main

import (
	"context"
	"errors"
	"sync"

	"github.com/across-iot/cellgw/arbiter"
	"github.com/across-iot/cellgw/schedule"
	"github.com/across-iot/cellgw/urc"
	"github.com/across-iot/cellgw/wshub"
)

// errNotConnected is returned by the sender adapters whenever the transport
// is mid-reconnect and no arbiter is currently live.
var errNotConnected = errors.New("cellgw: modem not connected")

// arbiterHandle holds the current *arbiter.Arbiter, swapped by the
// Supervisor on every reconnect. The URC dispatcher, WebSocket hub and
// schedule controller are constructed once and address the modem only
// through this indirection, so they survive a reconnect without being
// rebuilt.
type arbiterHandle struct {
	mu  sync.RWMutex
	arb *arbiter.Arbiter
}

func (h *arbiterHandle) set(a *arbiter.Arbiter) {
	h.mu.Lock()
	h.arb = a
	h.mu.Unlock()
}

func (h *arbiterHandle) get() *arbiter.Arbiter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.arb
}

func (h *arbiterHandle) send(ctx context.Context, cmd string) arbiter.Response {
	a := h.get()
	if a == nil {
		return arbiter.Response{Err: errNotConnected}
	}
	return a.Send(ctx, cmd)
}

// urcSenderAdapter satisfies urc.Sender over an arbiterHandle.
type urcSenderAdapter struct{ h *arbiterHandle }

func (a urcSenderAdapter) Send(ctx context.Context, cmd string) urc.SendResult {
	r := a.h.send(ctx, cmd)
	return urc.SendResult{OK: r.OK, Body: r.Body, Err: r.Err}
}

// hubSenderAdapter satisfies wshub.CommandSender over an arbiterHandle.
type hubSenderAdapter struct{ h *arbiterHandle }

func (a hubSenderAdapter) Send(ctx context.Context, cmd string) wshub.SendResult {
	r := a.h.send(ctx, cmd)
	return wshub.SendResult{OK: r.OK, Body: r.Body, Err: r.Err}
}

// scheduleSenderAdapter satisfies schedule.Sender over an arbiterHandle.
type scheduleSenderAdapter struct{ h *arbiterHandle }

func (a scheduleSenderAdapter) Send(ctx context.Context, cmd string) schedule.Response {
	r := a.h.send(ctx, cmd)
	return schedule.Response{OK: r.OK, Body: r.Body, Err: r.Err}
}
