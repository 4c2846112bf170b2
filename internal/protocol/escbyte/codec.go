// internal/protocol/escbyte/codec.go
package escbyte

import (
	"bytes"
	"fmt"
	"strconv"

	"ecf-service/pkg/driver"
)

// Control bytes.
const (
	ESC byte = 0x1b
	FS  byte = 0x1c
	GS  byte = 0x1d
	CR  byte = '\r'
	// FF terminates variable length text fields inside a payload.
	FF byte = 0xff
)

// StatusRequest asks the device for its status bytes. It has no ESC prefix.
var StatusRequest = []byte{GS, FF}

// EncodeFrame builds ESC + op + payload.
func EncodeFrame(op byte, payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, ESC, op)
	return append(frame, payload...)
}

// DecodeFrame splits a frame built by EncodeFrame.
func DecodeFrame(frame []byte) (byte, []byte, error) {
	if len(frame) < 2 || frame[0] != ESC {
		return 0, nil, fmt.Errorf("%w: missing ESC prefix", driver.ErrMalformedFrame)
	}
	return frame[1], frame[2:], nil
}

// EncodeExtended builds FS + prefix + op + payload + xor checksum, the frame
// of the extended command set.
func EncodeExtended(prefix, op byte, payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, FS, prefix, op)
	frame = append(frame, payload...)
	return append(frame, Checksum(frame))
}

// DecodeExtended verifies the checksum of an extended frame and splits it.
func DecodeExtended(frame []byte) (prefix, op byte, payload []byte, err error) {
	if len(frame) < 4 || frame[0] != FS {
		return 0, 0, nil, fmt.Errorf("%w: missing FS prefix", driver.ErrMalformedFrame)
	}
	body, sum := frame[:len(frame)-1], frame[len(frame)-1]
	if Checksum(body) != sum {
		return 0, 0, nil, fmt.Errorf("%w: got %02x, want %02x", driver.ErrChecksumMismatch, sum, Checksum(body))
	}
	return body[1], body[2], body[3:], nil
}

// Checksum is the xor of all bytes.
func Checksum(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

// ParseReply reads a CR stripped reply line. ":E<code>" carries a device
// error code; anything else is success and the body is the line after the
// leading status marker.
func ParseReply(line []byte) (int, []byte, error) {
	if len(line) == 0 {
		return 0, nil, fmt.Errorf("%w: empty reply", driver.ErrMalformedFrame)
	}
	if bytes.HasPrefix(line, []byte(":E")) {
		code, err := strconv.Atoi(string(bytes.TrimSpace(line[2:])))
		if err != nil {
			return 0, nil, fmt.Errorf("%w: bad error reply %q", driver.ErrMalformedFrame, line)
		}
		return code, nil, nil
	}
	return 0, line[1:], nil
}

// ParseExtendedReply reads an extended reply line. Characters [1:3] hold the
// error code compatible with the basic command set, [3:6] the extended code
// and [6:8] a warning.
func ParseExtendedReply(line []byte) (int, []byte, error) {
	if len(line) < 3 {
		return 0, nil, fmt.Errorf("%w: short extended reply %q", driver.ErrMalformedFrame, line)
	}
	code, err := strconv.Atoi(string(line[1:3]))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: bad extended status %q", driver.ErrMalformedFrame, line[1:3])
	}
	return code, line[1:], nil
}
