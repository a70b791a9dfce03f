package urc_test

import (
	"context"
	"testing"

	"github.com/across-iot/cellgw/urc"
)

func TestPdcpHandler_ParsesFourteenFields(t *testing.T) {
	events := make(chan urc.Event, 1)
	h := urc.NewPdcpHandler(events)

	line := "^PDCPDATAINFO: 0,0,10,10,20,20,0,0,1000,2000,1000,2000,1000,2000"
	if !h.Handle(context.Background(), line) {
		t.Fatal("^PDCPDATAINFO not handled")
	}

	select {
	case evt := <-events:
		if evt.Kind != urc.KindPdcpData {
			t.Errorf("Kind = %q, want pdcp_data", evt.Kind)
		}
		if evt.NotifyText != "" {
			t.Errorf("NotifyText = %q, want empty (broadcast-only)", evt.NotifyText)
		}
		payload := evt.Payload.(map[string]any)
		if payload["dl_mcs"] != "10" {
			t.Errorf("dl_mcs = %v, want 10", payload["dl_mcs"])
		}
	default:
		t.Fatal("expected a pdcp_data event")
	}
}

func TestPdcpHandler_IgnoresUnrelatedLines(t *testing.T) {
	h := urc.NewPdcpHandler(nil)
	if h.Handle(context.Background(), "+CSQ: 15,99") {
		t.Error("unrelated line was accepted")
	}
}
