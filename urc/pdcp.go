package urc

import (
	"context"
	"strings"
	"time"
)

// pdcpFields names the 14 comma-separated fields of a ^PDCPDATAINFO
// indication, in order.
var pdcpFields = []string{
	"dl_tbler", "ul_tbler", "dl_mcs", "ul_mcs",
	"dl_prb", "ul_prb", "dl_bler", "ul_bler",
	"mac_dl_tput", "mac_ul_tput", "rlc_dl_tput", "rlc_ul_tput",
	"pdcp_dl_tput", "pdcp_ul_tput",
}

// PdcpHandler parses ^PDCPDATAINFO indications into a broadcast-only event;
// the spec assigns it no notification behaviour.
type PdcpHandler struct {
	Events chan<- Event
	Now    func() time.Time
}

// NewPdcpHandler creates a PdcpHandler.
func NewPdcpHandler(events chan<- Event) *PdcpHandler {
	return &PdcpHandler{Events: events, Now: time.Now}
}

// Handle implements Handler.
func (h *PdcpHandler) Handle(_ context.Context, line string) bool {
	if !strings.HasPrefix(line, "^PDCPDATAINFO:") {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "^PDCPDATAINFO:"))
	values := strings.Split(rest, ",")

	payload := make(map[string]any, len(pdcpFields))
	for i, name := range pdcpFields {
		if i < len(values) {
			payload[name] = strings.TrimSpace(values[i])
		}
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	if h.Events != nil {
		select {
		case h.Events <- Event{Kind: KindPdcpData, Time: now, Payload: payload}:
		default:
		}
	}
	return true
}
