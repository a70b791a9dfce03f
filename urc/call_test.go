package urc_test

import (
	"context"
	"testing"
	"time"

	"github.com/across-iot/cellgw/urc"
)

func TestCallHandler_RingThenClipNotifiesOnce(t *testing.T) {
	events := make(chan urc.Event, 8)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := urc.NewCallHandler(events)
	h.Now = func() time.Time { return now }

	if !h.Handle(context.Background(), "RING") {
		t.Fatal("RING not handled")
	}
	if !h.Handle(context.Background(), `+CLIP: "15551234567",145,,,,0`) {
		t.Fatal("+CLIP not handled")
	}

	select {
	case evt := <-events:
		if evt.Kind != urc.KindIncomingCall || evt.NotifyText == "" {
			t.Errorf("evt = %+v, want ringing notify", evt)
		}
	default:
		t.Fatal("expected an event after +CLIP")
	}

	// A second +CLIP from the same number within 30s must not re-notify.
	now = now.Add(5 * time.Second)
	h.Handle(context.Background(), `+CLIP: "15551234567",145,,,,0`)
	select {
	case evt := <-events:
		if evt.NotifyText != "" {
			t.Errorf("duplicate CLIP notified again: %+v", evt)
		}
	default:
		t.Fatal("expected a (non-notifying) event for the duplicate CLIP")
	}
}

func TestCallHandler_CendEndsCall(t *testing.T) {
	events := make(chan urc.Event, 8)
	h := urc.NewCallHandler(events)

	h.Handle(context.Background(), `+CLIP: "15551234567",145,,,,0`)
	<-events

	if !h.Handle(context.Background(), "^CEND: 1") {
		t.Fatal("^CEND not handled")
	}
	select {
	case evt := <-events:
		if evt.Payload.(map[string]any)["state"] != "ended" {
			t.Errorf("evt = %+v, want ended", evt)
		}
	default:
		t.Fatal("expected an ended event")
	}
}

func TestCallHandler_IgnoresUnrelatedLines(t *testing.T) {
	h := urc.NewCallHandler(nil)
	if h.Handle(context.Background(), "+CSQ: 15,99") {
		t.Error("unrelated line was accepted")
	}
}
