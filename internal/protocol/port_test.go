package protocol

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"ecf-service/pkg/driver"
)

func newTestPort(t *testing.T, transcript string) (*Port, *PlaybackConnection) {
	t.Helper()
	pc, err := NewPlaybackString(transcript)
	require.NoError(t, err)
	require.NoError(t, pc.Open(context.Background()))
	return NewPort(pc, zaptest.NewLogger(t)), pc
}

func TestPortReadUntil(t *testing.T) {
	p, pc := newTestPort(t, "W \\x1b\\xc8\nR :0000\\rtail\n")
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, []byte{0x1b, 0xc8}))
	line, err := p.ReadUntil(ctx, '\r')
	require.NoError(t, err)
	assert.Equal(t, []byte(":0000\r"), line)

	rest, err := p.ReadN(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("tail"), rest)
	assert.True(t, pc.Done())
}

func TestPortReadTimesOutAfterEmptyReads(t *testing.T) {
	p, pc := newTestPort(t, "R abc\n")
	p.maxEmptyReads = 3

	_, err := p.ReadUntil(context.Background(), '\r')
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrTimeout))
	assert.EqualValues(t, 4, pc.Stats().EmptyReads)
}

func TestPortReadByteAndDiscard(t *testing.T) {
	p, _ := newTestPort(t, "R \\x06xyz\n")
	ctx := context.Background()

	b, err := p.ReadByte(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x06), b)

	_, err = p.ReadN(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Discard())
}

func TestPortCancelledContext(t *testing.T) {
	p, _ := newTestPort(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ReadByte(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlaybackRejectsUnexpectedWrite(t *testing.T) {
	pc, err := NewPlaybackString("W abc\n")
	require.NoError(t, err)

	err = pc.Write(context.Background(), []byte("abd"))
	assert.Error(t, err)
}

func TestPlaybackMalformedTranscript(t *testing.T) {
	_, err := NewPlaybackString("X abc\n")
	assert.Error(t, err)

	_, err = NewPlaybackString("W \\x4\n")
	assert.Error(t, err)
}

func TestTranscriptEscapeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		back, err := UnescapeTranscript(EscapeTranscript(data))
		require.NoError(t, err)
		if !bytes.Equal(data, back) {
			t.Fatalf("round trip mismatch: %x != %x", data, back)
		}
	})
}

func TestRecordingConnectionSave(t *testing.T) {
	inner, err := NewPlaybackString("W ping\nR po\nR ng\\r\n")
	require.NoError(t, err)
	rec := NewRecordingConnection(inner)
	ctx := context.Background()

	require.NoError(t, rec.Write(ctx, []byte("ping")))
	_, err = rec.Read(ctx, 2)
	require.NoError(t, err)
	_, err = rec.Read(ctx, 10)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, rec.Save(&out))
	assert.Equal(t, "W ping\nR pong\\r\n", out.String())

	// The saved transcript replays against the same traffic.
	replay, err := NewPlaybackConnection(&out)
	require.NoError(t, err)
	require.NoError(t, replay.Write(ctx, []byte("ping")))
	got, err := replay.Read(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong\r"), got)
}
