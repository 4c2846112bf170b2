package escbyte

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

func newEngine(t *testing.T, transcript string, opts ...Option) (*Engine, *protocol.PlaybackConnection) {
	t.Helper()
	pc, err := protocol.NewPlaybackString(transcript)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	port := protocol.NewPort(pc, logger)
	return NewEngine(port, Errors, logger, opts...), pc
}

// advance releases n busy waits on fc as soon as the engine blocks on them.
func advance(ctx context.Context, fc *clockwork.FakeClock, n int) {
	go func() {
		for i := 0; i < n; i++ {
			if err := fc.BlockUntilContext(ctx, 1); err != nil {
				return
			}
			fc.Advance(DefaultBusyDelay)
		}
	}()
}

func TestSendSuccess(t *testing.T) {
	e, pc := newEngine(t, "W \\x1b\\xc8\nR :0000\\r\n")

	reply, err := e.Send(context.Background(), protocol.Command{Op: 200})
	require.NoError(t, err)
	assert.Equal(t, 0, reply.Status)
	assert.Equal(t, []byte("0000"), reply.Field(0))
	assert.True(t, pc.Done())
}

func TestSendDeviceError(t *testing.T) {
	e, _ := newEngine(t, "W \\x1b\\xc8\nR :E10\\r\n")

	_, err := e.Send(context.Background(), protocol.Command{Op: 200})
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrCouponAlreadyOpen)
	assert.Equal(t, driver.KindState, driver.KindOf(err))
	code, ok := driver.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, 10, code)
}

func TestSendUnmappedError(t *testing.T) {
	e, _ := newEngine(t, "W \\x1b\\xc8\nR :E77\\r\n")

	_, err := e.Send(context.Background(), protocol.Command{Op: 200})
	assert.ErrorIs(t, err, driver.ErrProtocol)
	assert.Equal(t, driver.KindUnmapped, driver.KindOf(err))
}

func TestSendNoPaperIsWarning(t *testing.T) {
	e, _ := newEngine(t, "W \\x1b\\xc8\nR :E21\\r\n")

	reply, err := e.Send(context.Background(), protocol.Command{Op: 200})
	require.NoError(t, err)
	assert.Equal(t, CodeNoPaper, reply.Status)
}

func TestSendEmitsPendingReadX(t *testing.T) {
	transcript := "W \\x1b\\xd0\nR :E42\\r\n" +
		"W \\x1b\\xcf\nR :\\r\n" +
		"W \\x1b\\xd0\nR :done\\r\n"
	e, pc := newEngine(t, transcript)

	reply, err := e.Send(context.Background(), protocol.Command{Op: 208})
	require.NoError(t, err)
	assert.Equal(t, []byte("done"), reply.Field(0))
	assert.True(t, pc.Done())
}

func TestSendReadXPendingTwiceFails(t *testing.T) {
	transcript := "W \\x1b\\xd0\nR :E42\\r\n" +
		"W \\x1b\\xcf\nR :\\r\n" +
		"W \\x1b\\xd0\nR :E42\\r\n"
	e, _ := newEngine(t, transcript)

	_, err := e.Send(context.Background(), protocol.Command{Op: 208})
	assert.ErrorIs(t, err, driver.ErrPendingReadX)
}

func TestSendBusyRetryDrainsLateReplies(t *testing.T) {
	transcript := "W \\x1b\\xc8\nR :E99\\r\n" +
		"W \\x1b\\xc8\nR :E35\\r\n" +
		"W \\x1b\\xc8\nR :ok\\r\n" +
		"R :late1\\r:late2\\r\n"
	fc := clockwork.NewFakeClock()
	start := fc.Now()
	e, pc := newEngine(t, transcript, WithClock(fc), WithBusyRetry(DefaultBusyAttempts, DefaultBusyDelay))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	advance(ctx, fc, 2)

	reply, err := e.Send(ctx, protocol.Command{Op: 200})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), reply.Field(0))
	assert.True(t, pc.Done(), "both late replies are drained")
	assert.Equal(t, 2*DefaultBusyDelay, fc.Since(start))
}

func TestSendBusyRetryIsBounded(t *testing.T) {
	transcript := ""
	for i := 0; i < 3; i++ {
		transcript += "W \\x1b\\xc8\nR :E99\\r\n"
	}
	fc := clockwork.NewFakeClock()
	e, pc := newEngine(t, transcript, WithClock(fc), WithBusyRetry(3, DefaultBusyDelay))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	advance(ctx, fc, 2)

	_, err := e.Send(ctx, protocol.Command{Op: 200})
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrTimeout)
	assert.ErrorIs(t, err, driver.ErrBusy)
	assert.Equal(t, driver.KindTransport, driver.KindOf(err))
	code, _ := driver.CodeOf(err)
	assert.Equal(t, CodeBusy, code)
	assert.True(t, pc.Done())
}

func TestSendCommandErrorIsNotRetried(t *testing.T) {
	e, pc := newEngine(t, "W \\x1b\\xc8\nR :E39\\r\n", WithBusyRetry(DefaultBusyAttempts, DefaultBusyDelay))

	_, err := e.Send(context.Background(), protocol.Command{Op: 200})
	assert.ErrorIs(t, err, driver.ErrCommandParameters)
	assert.True(t, pc.Done())
}

func TestSendTimeout(t *testing.T) {
	e, _ := newEngine(t, "W \\x1b\\xc8\n")

	_, err := e.Send(context.Background(), protocol.Command{Op: 200})
	assert.ErrorIs(t, err, driver.ErrTimeout)
	assert.Equal(t, driver.KindTransport, driver.KindOf(err))
}

func TestSendExtended(t *testing.T) {
	frame := EncodeExtended('F', 201, []byte("abc"))
	transcript := "W " + protocol.EscapeTranscript(frame) + "\nR :00000001200\\rZ\n"
	e, pc := newEngine(t, transcript)

	reply, err := e.Send(context.Background(), protocol.Command{Prefix: 'F', Op: 201, Payload: []byte("abc")})
	require.NoError(t, err)
	assert.Equal(t, []byte("00000001200"), reply.Field(0))
	assert.True(t, pc.Done())
}

func TestSendExtendedError(t *testing.T) {
	frame := EncodeExtended('F', 201, nil)
	transcript := "W " + protocol.EscapeTranscript(frame) + "\nR :10000000\\rZ\n"
	e, _ := newEngine(t, transcript)

	_, err := e.Send(context.Background(), protocol.Command{Prefix: 'F', Op: 201})
	assert.ErrorIs(t, err, driver.ErrCouponAlreadyOpen)
}

func TestStatus(t *testing.T) {
	e, _ := newEngine(t, "W \\x1d\\xff\nR :1234567\\r\n")
	status, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte(":1234567"), status)

	e, _ = newEngine(t, "W \\x1d\\xff\nR junk\\r\n")
	_, err = e.Status(context.Background())
	assert.ErrorIs(t, err, driver.ErrHardwareFailure)
}

func TestFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		op := rapid.Byte().Draw(t, "op")
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")

		gotOp, gotPayload, err := DecodeFrame(EncodeFrame(op, payload))
		if err != nil {
			t.Fatal(err)
		}
		if gotOp != op || !bytes.Equal(gotPayload, payload) {
			t.Fatalf("round trip mismatch")
		}
	})
}

func TestExtendedFrameDetectsSingleByteFlip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.Byte().Draw(t, "prefix")
		op := rapid.Byte().Draw(t, "op")
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		frame := EncodeExtended(prefix, op, payload)

		p, o, data, err := DecodeExtended(frame)
		if err != nil || p != prefix || o != op || !bytes.Equal(data, payload) {
			t.Fatalf("round trip failed: %v", err)
		}

		i := rapid.IntRange(0, len(frame)-1).Draw(t, "index")
		flip := rapid.ByteRange(1, 255).Draw(t, "flip")
		corrupted := append([]byte(nil), frame...)
		corrupted[i] ^= flip
		if _, _, _, err := DecodeExtended(corrupted); err == nil {
			t.Fatalf("flip at %d not detected", i)
		} else if !errors.Is(err, driver.ErrChecksumMismatch) && !errors.Is(err, driver.ErrMalformedFrame) {
			t.Fatalf("unexpected error %v", err)
		}
	})
}

func TestParseReply(t *testing.T) {
	code, body, err := ParseReply([]byte(":E05"))
	require.NoError(t, err)
	assert.Equal(t, 5, code)
	assert.Nil(t, body)

	_, _, err = ParseReply([]byte(":Exx"))
	assert.ErrorIs(t, err, driver.ErrMalformedFrame)

	_, _, err = ParseReply(nil)
	assert.ErrorIs(t, err, driver.ErrMalformedFrame)
}
