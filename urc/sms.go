package urc

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/across-iot/cellgw/pdu"
	"github.com/across-iot/cellgw/reassembly"
)

var cmtiRe = regexp.MustCompile(`^\+CMTI: "(ME|SM)",(\d+)$`)

// Sender issues an AT command through the arbiter and returns its response;
// satisfied by *arbiter.Arbiter, and stubbed directly in tests.
type Sender interface {
	Send(ctx context.Context, cmd string) SendResult
}

// SendResult mirrors the fields of arbiter.Response that NewSmsHandler needs,
// avoiding an import cycle back onto the arbiter package from tests that
// want a minimal stub.
type SendResult struct {
	OK   bool
	Body []string
	Err  error
}

// NewSmsHandler reacts to "+CMTI" notifications by fetching and decoding the
// indicated message, reassembling multipart SMS via a reassembly.Store.
type NewSmsHandler struct {
	Sender Sender
	Store  *reassembly.Store
	Events chan<- Event
	Now    func() time.Time
}

// NewNewSmsHandler creates a NewSmsHandler. store may be shared with other
// components but is written only here.
func NewNewSmsHandler(sender Sender, store *reassembly.Store, events chan<- Event) *NewSmsHandler {
	return &NewSmsHandler{Sender: sender, Store: store, Events: events, Now: time.Now}
}

// Handle implements Handler.
func (h *NewSmsHandler) Handle(ctx context.Context, line string) bool {
	m := cmtiRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return true
	}

	rsp := h.Sender.Send(ctx, fmt.Sprintf("+CMGR=%d", index))
	if rsp.Err != nil || !rsp.OK {
		return true
	}

	hexPDU := pduLine(rsp.Body)
	if hexPDU == "" {
		return true
	}

	msg := pdu.Decode(hexPDU, h.now())

	if msg.Partial == nil {
		h.emit(Event{
			Kind: KindNewSMS,
			Time: h.now(),
			Payload: map[string]any{
				"sender":  msg.Sender,
				"content": msg.Content,
			},
			NotifyText: msg.Content,
		})
		return true
	}

	key := reassembly.Key{Sender: msg.Sender, Reference: msg.Partial.Reference}
	content, complete := h.Store.Insert(key, msg.Partial.PartsCount, msg.Partial.PartNumber, msg.Content)
	if !complete {
		return true
	}

	h.emit(Event{
		Kind: KindNewSMS,
		Time: h.now(),
		Payload: map[string]any{
			"sender":     msg.Sender,
			"content":    content,
			"isComplete": true,
		},
		NotifyText: content,
	})
	return true
}

// pduLine picks the hex PDU line out of an AT+CMGR response body, which
// interleaves a "+CMGR: <stat>,[alpha],<length>" header with the PDU itself.
func pduLine(body []string) string {
	for _, l := range body {
		if !strings.HasPrefix(l, "+CMGR:") && strings.TrimSpace(l) != "" {
			return strings.TrimSpace(l)
		}
	}
	return ""
}

func (h *NewSmsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *NewSmsHandler) emit(evt Event) {
	if h.Events == nil {
		return
	}
	select {
	case h.Events <- evt:
	default:
	}
}
