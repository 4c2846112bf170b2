// internal/protocol/stxetx/codec.go
package stxetx

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"ecf-service/pkg/driver"
)

// Control bytes.
const (
	ACK byte = 0x06
	STX byte = 0x02
	ETX byte = 0x03
	ESC byte = 0x1b
	FS  byte = 0x1c

	// Intermediate is the id byte of a reply that announces more replies to
	// the same request.
	Intermediate byte = 0x80
	// FirstID seeds the command id counter. The counter is incremented
	// before use and wraps to 0x81 after 0xFF so it never hits Intermediate.
	FirstID  byte = 138
	wrapToID byte = 0x81
)

// Bytes that must be escaped with ESC inside a frame.
var special = [256]bool{ESC: true, STX: true, ETX: true, FS: true, 0x1a: true, 0x1d: true, 0x1e: true, 0x1f: true}

// IsSpecial reports whether b is escaped on the wire.
func IsSpecial(b byte) bool { return special[b] }

// Escape prefixes every special byte with ESC.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if special[b] {
			out = append(out, ESC)
		}
		out = append(out, b)
	}
	return out
}

// Unescape strips the ESC before special bytes.
func Unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == ESC && i+1 < len(data) && special[data[i+1]] {
			i++
		}
		out = append(out, data[i])
	}
	return out
}

// Checksum is the sum of all bytes mod 0x10000.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// ParseWord converts a 4 hex digit command word such as "0A01" to its two
// bytes.
func ParseWord(s string) ([]byte, error) {
	if len(s) != 4 {
		return nil, fmt.Errorf("%w: command word %q", driver.ErrInvalidArgument, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: command word %q", driver.ErrInvalidArgument, s)
	}
	return b, nil
}

// EncodeFrame builds STX id field (FS field)* ETX followed by the %04X
// checksum of everything before it.
func EncodeFrame(id byte, fields [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(STX)
	buf.WriteByte(id)
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(FS)
		}
		buf.Write(Escape(f))
	}
	buf.WriteByte(ETX)
	fmt.Fprintf(&buf, "%04X", Checksum(buf.Bytes()))
	return buf.Bytes()
}

// EncodeRequest builds a request frame for a command word, extension word
// and arguments.
func EncodeRequest(id byte, command, extension string, args [][]byte) ([]byte, error) {
	cmd, err := ParseWord(command)
	if err != nil {
		return nil, err
	}
	ext, err := ParseWord(extension)
	if err != nil {
		return nil, err
	}
	fields := make([][]byte, 0, len(args)+2)
	fields = append(fields, cmd, ext)
	fields = append(fields, args...)
	return EncodeFrame(id, fields), nil
}

// DecodeFrame verifies the checksum of raw and splits it into the id and the
// unescaped fields. The checksum is checked before anything else is parsed.
func DecodeFrame(raw []byte) (byte, [][]byte, error) {
	if len(raw) < 7 {
		return 0, nil, fmt.Errorf("%w: frame too short (%d bytes)", driver.ErrMalformedFrame, len(raw))
	}
	body, suffix := raw[:len(raw)-4], raw[len(raw)-4:]
	if got := fmt.Sprintf("%04X", Checksum(body)); got != string(suffix) {
		return 0, nil, fmt.Errorf("%w: got %s, frame says %q", driver.ErrChecksumMismatch, got, suffix)
	}
	if body[0] != STX {
		return 0, nil, fmt.Errorf("%w: missing STX", driver.ErrMalformedFrame)
	}
	if body[len(body)-1] != ETX || escapedAt(body, len(body)-1) {
		return 0, nil, fmt.Errorf("%w: missing ETX", driver.ErrMalformedFrame)
	}
	return body[1], splitFields(body[2 : len(body)-1]), nil
}

// escapedAt reports whether data[i] is preceded by an odd run of ESC bytes
// that starts after the frame header.
func escapedAt(data []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 2 && data[j] == ESC; j-- {
		n++
	}
	return n%2 == 1
}

func splitFields(data []byte) [][]byte {
	fields := [][]byte{}
	cur := []byte{}
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == ESC && i+1 < len(data):
			i++
			cur = append(cur, data[i])
		case c == FS:
			fields = append(fields, cur)
			cur = []byte{}
		default:
			cur = append(cur, c)
		}
	}
	return append(fields, cur)
}

// Status is the block that opens every final reply.
type Status struct {
	Printer uint16
	Fiscal  uint16
	// Reply is the command result; 0x0000 is success.
	Reply uint16
}

// String renders the reply status as the manual does, e.g. "090C".
func (s Status) String() string {
	return fmt.Sprintf("%04X", s.Reply)
}

const statusFields = 5

// ParseStatus splits reply fields into the status block and result fields.
// The block is printer status, fiscal status, a reserved field, the reply
// status and another reserved field.
func ParseStatus(fields [][]byte) (Status, [][]byte, error) {
	if len(fields) < statusFields {
		return Status{}, nil, fmt.Errorf("%w: status block has %d fields", driver.ErrMalformedFrame, len(fields))
	}
	for _, i := range []int{0, 1, 3} {
		if len(fields[i]) != 2 {
			return Status{}, nil, fmt.Errorf("%w: status field %d has %d bytes", driver.ErrMalformedFrame, i, len(fields[i]))
		}
	}
	st := Status{
		Printer: binary.BigEndian.Uint16(fields[0]),
		Fiscal:  binary.BigEndian.Uint16(fields[1]),
		Reply:   binary.BigEndian.Uint16(fields[3]),
	}
	return st, fields[statusFields:], nil
}

// EncodeReply builds a device reply frame. It is the inverse of
// DecodeFrame followed by ParseStatus and is used by simulators and tests.
func EncodeReply(id byte, st Status, data [][]byte) []byte {
	fields := make([][]byte, 0, len(data)+statusFields)
	fields = append(fields,
		binary.BigEndian.AppendUint16(nil, st.Printer),
		binary.BigEndian.AppendUint16(nil, st.Fiscal),
		[]byte{},
		binary.BigEndian.AppendUint16(nil, st.Reply),
		[]byte{},
	)
	fields = append(fields, data...)
	return EncodeFrame(id, fields)
}
