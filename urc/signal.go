package urc

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	cerssiRe = regexp.MustCompile(`^\^CERSSI:\s*(.+)$`)
	hcsqRe   = regexp.MustCompile(`^\^HCSQ:\s*"?(\w+)"?,(\d+),(\d+),(\d+)(?:,(\d+))?`)
	monscRe  = regexp.MustCompile(`^\^MONSC:\s*(.+)$`)
)

// SignalSample mirrors the spec's SignalSample entity.
type SignalSample struct {
	SysMode string
	RSRP    float64
	RSRQ    float64
	SINR    float64
}

// SignalHandler parses ^CERSSI and ^HCSQ indications, and on a qualifying
// delta enriches the sample with an AT^MONSC query before notifying.
type SignalHandler struct {
	Sender Sender
	Events chan<- Event
	Now    func() time.Time

	mu          sync.Mutex
	lastSample  *SignalSample
	lastSysMode string
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(sender Sender, events chan<- Event) *SignalHandler {
	return &SignalHandler{Sender: sender, Events: events, Now: time.Now}
}

// Handle implements Handler.
func (h *SignalHandler) Handle(ctx context.Context, line string) bool {
	if m := cerssiRe.FindStringSubmatch(line); m != nil {
		fields := strings.Split(m[1], ",")
		if len(fields) < 21 {
			return true
		}
		rsrp, err1 := strconv.ParseFloat(strings.TrimSpace(fields[18]), 64)
		rsrq, err2 := strconv.ParseFloat(strings.TrimSpace(fields[19]), 64)
		sinr, err3 := strconv.ParseFloat(strings.TrimSpace(fields[20]), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return true
		}
		h.consider(ctx, SignalSample{RSRP: rsrp, RSRQ: rsrq, SINR: sinr})
		return true
	}

	if m := hcsqRe.FindStringSubmatch(line); m != nil {
		sysMode := m[1]
		rsrpRaw, _ := strconv.Atoi(m[2])
		sinrRaw, _ := strconv.Atoi(m[3])
		rsrqRaw, _ := strconv.Atoi(m[4])

		sample := SignalSample{
			SysMode: sysMode,
			RSRP:    float64(rsrpRaw) - 140,
			SINR:    float64(sinrRaw)*0.2 - 20,
			RSRQ:    float64(rsrqRaw)*0.5 - 20,
		}
		h.consider(ctx, sample)
		return true
	}

	return false
}

func (h *SignalHandler) consider(ctx context.Context, sample SignalSample) {
	h.mu.Lock()
	prev := h.lastSample
	modeChanged := sample.SysMode != "" && sample.SysMode != h.lastSysMode
	h.lastSample = &sample
	if sample.SysMode != "" {
		h.lastSysMode = sample.SysMode
	}
	h.mu.Unlock()

	notable := prev == nil || modeChanged
	if prev != nil {
		delta := sample.RSRP - prev.RSRP
		if delta < 0 {
			delta = -delta
		}
		notable = notable || delta >= 1
	}
	if !notable {
		return
	}

	enrichment := ""
	if h.Sender != nil {
		rsp := h.Sender.Send(ctx, "^MONSC")
		if rsp.Err == nil && rsp.OK {
			enrichment = parseMonsc(rsp.Body)
		}
	}

	body := fmt.Sprintf("Signal %s: RSRP=%.0fdBm RSRQ=%.1fdB SINR=%.1fdB (%s)%s",
		sample.SysMode, sample.RSRP, sample.RSRQ, sample.SINR, signalTier(sample.RSRP), enrichment)

	h.emit(Event{
		Kind: KindSignal,
		Time: h.now(),
		Payload: map[string]any{
			"sys_mode": sample.SysMode,
			"rsrp":     sample.RSRP,
			"rsrq":     sample.RSRQ,
			"sinr":     sample.SINR,
		},
		NotifyText: body,
	})
}

// signalTier buckets an RSRP reading per the spec's human-readable tiers.
func signalTier(rsrp float64) string {
	switch {
	case rsrp >= -85:
		return "excellent"
	case rsrp >= -95:
		return "good"
	case rsrp >= -105:
		return "fair"
	default:
		return "poor"
	}
}

// monscFieldCount and monscField* are the comma-separated positions of the
// cell identifiers this gateway cares about within an AT^MONSC response's
// serving-cell record; the remaining fields (RAT, band, signal figures
// already covered by CERSSI/HCSQ) are ignored. No example in the retrieved
// pack documents this command, so the layout follows the common
// mcc,mnc,arfcn,cellid,pci,tac ordering used by this modem family; see
// DESIGN.md.
const (
	monscFieldMCC = iota
	monscFieldMNC
	monscFieldARFCN
	monscFieldCellID
	monscFieldPCI
	monscFieldTAC
	monscFieldCount
)

// parseMonsc extracts MCC/MNC/ARFCN/cell-id/PCI/TAC from an AT^MONSC
// response body, rendering a short " [mcc=.. mnc=.. arfcn=.. cell=..
// pci=0x.. tac=..]" suffix, or "" if unparseable.
func parseMonsc(body []string) string {
	for _, l := range body {
		m := monscRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		fields := strings.Split(m[1], ",")
		if len(fields) < monscFieldCount {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		pci, err := strconv.Atoi(fields[monscFieldPCI])
		if err != nil {
			continue
		}
		return fmt.Sprintf(" [mcc=%s mnc=%s arfcn=%s cell=%s pci=0x%x tac=%s]",
			fields[monscFieldMCC], fields[monscFieldMNC], fields[monscFieldARFCN],
			fields[monscFieldCellID], pci, fields[monscFieldTAC])
	}
	return ""
}

func (h *SignalHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *SignalHandler) emit(evt Event) {
	if h.Events == nil {
		return
	}
	select {
	case h.Events <- evt:
	default:
	}
}
