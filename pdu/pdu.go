// Package pdu decodes 3GPP-TS-23.040 SMS-DELIVER PDUs as delivered by a
// modem's AT+CMGR/AT+CMGL response body, including GSM 7-bit and UCS-2 user
// data and the concatenated-SMS User Data Header.
//
// Decoding never fails outward: any malformed input yields a sentinel
// Message describing the failure rather than an error return, matching the
// "never raise across the event boundary" policy applied to the rest of the
// AT pipeline.
package pdu

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Partial describes the concatenation metadata carried by a UDH on a
// multipart SMS.
type Partial struct {
	Reference  uint16
	PartsCount uint8
	PartNumber uint8
}

// Message is the result of decoding a single PDU.
type Message struct {
	Sender    string
	Content   string
	Timestamp time.Time
	Partial   *Partial
}

const (
	dcsUCS2Mask  = 0x0F
	dcsUCS2Value = 0x08
	udhiMask     = 0x40
)

// Decode parses a hex-encoded SMS-DELIVER PDU, as returned in the body of an
// AT+CMGR/AT+CMGL response. now is used as the timestamp when the PDU's
// service-centre timestamp cannot be parsed.
//
// Decode never returns an error: on any malformed input it returns the
// sentinel Message described in the package's failure-handling policy,
// carrying the offending hex string in Content.
func Decode(hexPDU string, now time.Time) Message {
	raw, err := decodeHex(hexPDU)
	if err != nil {
		return failure(hexPDU, now)
	}
	msg, err := decode(raw, now)
	if err != nil {
		return failure(hexPDU, now)
	}
	return msg
}

func failure(hexPDU string, now time.Time) Message {
	return Message{
		Sender:    "unknown",
		Content:   fmt.Sprintf("PDU decode failed: %s", hexPDU),
		Timestamp: now,
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !isHexDigit(r) {
			return nil, fmt.Errorf("pdu: non-hex character %q", r)
		}
	}
	return hex.DecodeString(s)
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}

// decode walks the decoded PDU byte vector per 3GPP TS 23.040 §9.2.3.24.
func decode(raw []byte, now time.Time) (Message, error) {
	r := &reader{buf: raw}

	// SMSC info: length byte, then that many bytes, skipped entirely.
	smscLen, err := r.byte()
	if err != nil {
		return Message{}, err
	}
	if err := r.skip(int(smscLen)); err != nil {
		return Message{}, err
	}

	firstOctet, err := r.byte()
	if err != nil {
		return Message{}, err
	}
	udhi := firstOctet&udhiMask != 0

	sender, err := r.phoneNumber()
	if err != nil {
		return Message{}, err
	}

	// PID, skipped.
	if err := r.skip(1); err != nil {
		return Message{}, err
	}

	dcs, err := r.byte()
	if err != nil {
		return Message{}, err
	}
	ucs2 := dcs&dcsUCS2Mask == dcsUCS2Value

	ts, err := r.timestamp()
	if err != nil {
		ts = now
	}

	udl, err := r.byte()
	if err != nil {
		return Message{}, err
	}

	var partial *Partial
	udhOctets := 0
	if udhi {
		p, n, err := r.userDataHeader()
		if err != nil {
			return Message{}, err
		}
		partial = p
		udhOctets = n
	}

	var content string
	if ucs2 {
		payload, err := r.remaining()
		if err != nil {
			return Message{}, err
		}
		content = decodeUCS2(payload)
	} else {
		payload, err := r.remaining()
		if err != nil {
			return Message{}, err
		}
		fillBits := udhFillBits(udhOctets)
		septetBudget := int(udl)
		if udhOctets > 0 {
			septetBudget -= (udhOctets*8 + fillBits) / 7
		}
		septets := unpack7Bit(payload, fillBits)
		if septetBudget >= 0 && septetBudget < len(septets) {
			septets = septets[:septetBudget]
		}
		content = decode7BitString(septets)
	}

	return Message{
		Sender:    sender,
		Content:   content,
		Timestamp: ts,
		Partial:   partial,
	}, nil
}

func decodeUCS2(data []byte) string {
	var sb strings.Builder
	for i := 0; i+1 < len(data); i += 2 {
		sb.WriteRune(rune(uint16(data[i])<<8 | uint16(data[i+1])))
	}
	return sb.String()
}
