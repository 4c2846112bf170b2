// internal/protocol/playback.go
package protocol

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"ecf-service/internal/model"
)

// Transcript lines look like
//
//	W \x1b\xc8
//	R :0000\r
//
// W lines are bytes the host is expected to write, R lines are bytes the
// device answers with. Escapes: \n \r \t \\ and \xNN.

// PlaybackConnection replays a recorded transcript. Writes must match the
// recorded W bytes exactly; reads hand out the recorded R bytes in order.
type PlaybackConnection struct {
	mu       sync.Mutex
	expected []byte
	replies  []byte
	isOpen   bool
	stats    ProtocolStats
}

// NewPlaybackConnection parses a transcript.
func NewPlaybackConnection(r io.Reader) (*PlaybackConnection, error) {
	pc := &PlaybackConnection{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		if len(text) < 2 || text[1] != ' ' {
			return nil, fmt.Errorf("transcript line %d: malformed entry %q", line, text)
		}
		data, err := UnescapeTranscript(text[2:])
		if err != nil {
			return nil, fmt.Errorf("transcript line %d: %w", line, err)
		}
		switch text[0] {
		case 'W':
			pc.expected = append(pc.expected, data...)
		case 'R':
			pc.replies = append(pc.replies, data...)
		default:
			return nil, fmt.Errorf("transcript line %d: unrecognized entry type %q", line, text[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return pc, nil
}

// NewPlaybackString is NewPlaybackConnection over a literal transcript.
func NewPlaybackString(transcript string) (*PlaybackConnection, error) {
	return NewPlaybackConnection(strings.NewReader(transcript))
}

func (pc *PlaybackConnection) Open(ctx context.Context) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.isOpen = true
	pc.stats.IsConnected = true
	return nil
}

func (pc *PlaybackConnection) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.isOpen = false
	pc.stats.IsConnected = false
	return nil
}

func (pc *PlaybackConnection) IsOpen() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.isOpen
}

func (pc *PlaybackConnection) Write(ctx context.Context, data []byte) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	n := min(len(data), len(pc.expected))
	want := pc.expected[:n]
	if !bytes.Equal(want, data) {
		return fmt.Errorf("written data differs from the transcript: expected %q, got %q", want, data)
	}
	pc.expected = pc.expected[n:]
	pc.stats.recordWrite(n, 0)
	return nil
}

// Read returns an empty slice once the recorded replies are exhausted, which
// the Port treats like a device that stopped answering.
func (pc *PlaybackConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	n := min(maxBytes, len(pc.replies))
	out := make([]byte, n)
	copy(out, pc.replies[:n])
	pc.replies = pc.replies[n:]
	pc.stats.recordRead(n)
	return out, nil
}

func (pc *PlaybackConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeVirtual
}

func (pc *PlaybackConnection) Stats() ProtocolStats {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.stats
}

// Done reports whether every recorded byte was written and read.
func (pc *PlaybackConnection) Done() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.expected) == 0 && len(pc.replies) == 0
}

// RecordingConnection wraps a live transport and keeps a transcript of the
// traffic in the PlaybackConnection format.
type RecordingConnection struct {
	Transport
	mu      sync.Mutex
	entries []transcriptEntry
}

type transcriptEntry struct {
	kind byte
	data []byte
}

// NewRecordingConnection wraps t.
func NewRecordingConnection(t Transport) *RecordingConnection {
	return &RecordingConnection{Transport: t}
}

func (rc *RecordingConnection) Write(ctx context.Context, data []byte) error {
	if err := rc.Transport.Write(ctx, data); err != nil {
		return err
	}
	rc.append('W', data)
	return nil
}

func (rc *RecordingConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	data, err := rc.Transport.Read(ctx, maxBytes)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		rc.append('R', data)
	}
	return data, nil
}

// Consecutive reads are folded into one R line.
func (rc *RecordingConnection) append(kind byte, data []byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if kind == 'R' && len(rc.entries) > 0 && rc.entries[len(rc.entries)-1].kind == 'R' {
		last := &rc.entries[len(rc.entries)-1]
		last.data = append(last.data, data...)
		return
	}
	rc.entries = append(rc.entries, transcriptEntry{kind: kind, data: append([]byte(nil), data...)})
}

// Save writes the transcript to w.
func (rc *RecordingConnection) Save(w io.Writer) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, e := range rc.entries {
		if _, err := fmt.Fprintf(w, "%c %s\n", e.kind, EscapeTranscript(e.data)); err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
	}
	return nil
}

// EscapeTranscript renders data as a single transcript line payload.
func EscapeTranscript(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		switch {
		case b == '\n':
			sb.WriteString(`\n`)
		case b == '\r':
			sb.WriteString(`\r`)
		case b == '\t':
			sb.WriteString(`\t`)
		case b == '\\':
			sb.WriteString(`\\`)
		case b < 0x20 || b >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, b)
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// UnescapeTranscript is the inverse of EscapeTranscript.
func UnescapeTranscript(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("dangling escape at %d", i)
		}
		i++
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '\\':
			out = append(out, '\\')
		case 'x':
			if i+3 > len(s) {
				return nil, fmt.Errorf("short hex escape at %d", i)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bad hex escape at %d: %w", i, err)
			}
			out = append(out, byte(v))
			i += 2
		default:
			out = append(out, '\\', s[i])
		}
	}
	return out, nil
}
