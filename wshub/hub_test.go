package wshub

import (
	"context"
	"testing"
	"time"
)

func TestHub_BroadcastDeliversToAllSessions(t *testing.T) {
	h := NewHub("", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	s1 := &Session{send: make(chan []byte, 4)}
	s2 := &Session{send: make(chan []byte, 4)}
	h.register <- s1
	h.register <- s2

	h.Broadcast(map[string]string{"kind": "new_sms"})

	for _, s := range []*Session{s1, s2} {
		select {
		case <-s.send:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast delivery")
		}
	}
}

func TestHub_UnregisterRemovesSession(t *testing.T) {
	h := NewHub("", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	s := &Session{send: make(chan []byte, 1)}
	h.register <- s
	if n := waitForCount(h, 1); n != 1 {
		t.Fatalf("SessionCount = %d, want 1", n)
	}

	h.unregister <- s
	if n := waitForCount(h, 0); n != 0 {
		t.Fatalf("SessionCount = %d, want 0", n)
	}
}

func waitForCount(h *Hub, want int) int {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n := h.SessionCount(); n == want {
			return n
		}
		time.Sleep(time.Millisecond)
	}
	return h.SessionCount()
}
