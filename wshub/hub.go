// Package wshub implements the authenticated WebSocket command/event server:
// clients send AT command requests and receive broadcast Events, modeled on
// the register/unregister/broadcast hub pattern common to hub-style fan-out
// servers (see the session pty hub in the example pack), adapted here to
// gorilla/websocket connections instead of PTY client channels.
package wshub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// HeartbeatInterval is how often the hub pings every connected session.
const HeartbeatInterval = 30 * time.Second

// CommandSender forwards a text command to the modem and returns its
// result; satisfied by an adapter over *arbiter.Arbiter.
type CommandSender interface {
	Send(ctx context.Context, cmd string) SendResult
}

// SendResult mirrors the fields of arbiter.Response the hub needs.
type SendResult struct {
	OK   bool
	Body []string
	Err  error
}

// Hub tracks connected sessions and fans out broadcast events to all of
// them. A session whose outbound buffer is full misses that message but
// stays registered; a session leaves the set only when it unregisters.
type Hub struct {
	AuthKey string
	Sender  CommandSender
	Log     *slog.Logger

	mu       sync.RWMutex
	sessions map[*Session]struct{}

	register   chan *Session
	unregister chan *Session
	broadcast  chan []byte
}

// NewHub creates a Hub. An empty authKey disables the auth gate.
func NewHub(authKey string, sender CommandSender, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		AuthKey:    authKey,
		Sender:     sender,
		Log:        log,
		sessions:   make(map[*Session]struct{}),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan []byte, 64),
	}
}

// Run drives registration, unregistration, broadcast fan-out, and the
// heartbeat loop until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.sessions {
				close(s.send)
			}
			h.sessions = nil
			h.mu.Unlock()
			return

		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = struct{}{}
			h.mu.Unlock()

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				close(s.send)
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.deliver(data)

		case <-ticker.C:
			h.deliver([]byte("ping"))
		}
	}
}

// Broadcast serializes event as JSON and delivers it to every connected
// session.
func (h *Hub) Broadcast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.Log.Error("wshub: failed to marshal broadcast event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.Log.Warn("wshub: broadcast queue full, dropping event")
	}
}

func (h *Hub) deliver(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		select {
		case s.send <- data:
		default:
			h.Log.Warn("wshub: session send buffer full, dropping message")
		}
	}
}

// SessionCount reports the number of currently connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
