// internal/protocol/escbyte/engine.go
package escbyte

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

// OpReadX is the X reading command, sent automatically when the device
// refuses a command because the day has no X reading yet.
const OpReadX byte = 207

const (
	DefaultBusyAttempts = 10
	DefaultBusyDelay    = 100 * time.Millisecond
)

// Engine speaks the ESC framed single byte command protocol.
type Engine struct {
	port     *protocol.Port
	mapper   *driver.ErrorMapper
	logger   *zap.Logger
	clock    clockwork.Clock
	attempts int
	delay    time.Duration
	warnings map[int]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for busy waits.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithBusyRetry sets how many times a command is sent while the device
// answers with a retryable code, and the pause between sends. attempts of 1
// disables retrying.
func WithBusyRetry(attempts int, delay time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.attempts = attempts
		}
		e.delay = delay
	}
}

// WithWarnings marks device codes that are logged instead of failing the
// command.
func WithWarnings(codes ...int) Option {
	return func(e *Engine) {
		for _, c := range codes {
			e.warnings[c] = true
		}
	}
}

// NewEngine creates an engine over port. Without options it sends each
// command once and treats CodeNoPaper as a warning.
func NewEngine(port *protocol.Port, mapper *driver.ErrorMapper, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		port:     port,
		mapper:   mapper,
		logger:   logger.With(zap.String("engine", "escbyte")),
		clock:    clockwork.NewRealClock(),
		attempts: 1,
		delay:    DefaultBusyDelay,
		warnings: map[int]bool{CodeNoPaper: true},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send writes cmd and returns the decoded reply. Commands with a Prefix use
// the extended frame and are never retried.
//
// A busy answer (a retryable code) makes the engine sleep and resend the same
// command, up to the configured attempts. The device may still answer every
// earlier send, so after a success on attempt n the engine reads and drops n
// pending replies.
func (e *Engine) Send(ctx context.Context, cmd protocol.Command) (*protocol.Reply, error) {
	if cmd.Prefix != 0 {
		return e.sendExtended(ctx, cmd)
	}

	var lastErr error
	for attempt := 0; attempt < e.attempts; attempt++ {
		reply, err := e.sendOnce(ctx, cmd)
		if err == nil {
			e.drain(ctx, attempt)
			return reply, nil
		}
		if !driver.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt+1 == e.attempts {
			break
		}
		e.logger.Debug("Device busy, retrying",
			zap.Uint8("op", cmd.Op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if err := e.sleep(ctx); err != nil {
			return nil, err
		}
	}
	if e.attempts == 1 {
		return nil, lastErr
	}
	code, _ := driver.CodeOf(lastErr)
	return nil, &driver.DriverError{
		Kind:    driver.KindTransport,
		Vendor:  e.mapper.Vendor,
		Code:    code,
		Message: fmt.Sprintf("device busy after %d attempts", e.attempts),
		Err:     fmt.Errorf("%w: %w", driver.ErrTimeout, lastErr),
	}
}

// Status sends the status request and returns the raw status digits,
// including the leading ':'.
func (e *Engine) Status(ctx context.Context) ([]byte, error) {
	if err := e.port.Write(ctx, StatusRequest); err != nil {
		return nil, err
	}
	line, err := e.readLine(ctx)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 || line[0] != ':' {
		return nil, fmt.Errorf("%w: broken status reply %q", driver.ErrHardwareFailure, line)
	}
	return line, nil
}

func (e *Engine) sendOnce(ctx context.Context, cmd protocol.Command) (*protocol.Reply, error) {
	frame := EncodeFrame(cmd.Op, cmd.Payload)
	readX := false
	for {
		if err := e.port.Write(ctx, frame); err != nil {
			return nil, err
		}
		line, err := e.readLine(ctx)
		if err != nil {
			return nil, err
		}
		code, body, err := ParseReply(line)
		if err != nil {
			return nil, err
		}
		if code == 0 {
			return &protocol.Reply{Fields: [][]byte{body}, Raw: line}, nil
		}

		if e.warnings[code] {
			e.logger.Warn("Printer warning",
				zap.Int("code", code),
				zap.Error(e.mapper.Check(code, "")),
			)
			return &protocol.Reply{Status: code, Fields: [][]byte{line[1:]}, Raw: line}, nil
		}
		if code == CodeReadXPending && cmd.Op != OpReadX && !readX {
			e.logger.Info("Read X pending, emitting it before resending", zap.Uint8("op", cmd.Op))
			if _, err := e.sendOnce(ctx, protocol.Command{Op: OpReadX}); err != nil {
				return nil, fmt.Errorf("failed to emit pending read X: %w", err)
			}
			readX = true
			continue
		}
		return nil, e.mapper.Check(code, fmt.Sprintf("command %d: %s", cmd.Op, e.describe(code)))
	}
}

func (e *Engine) sendExtended(ctx context.Context, cmd protocol.Command) (*protocol.Reply, error) {
	if err := e.port.Write(ctx, EncodeExtended(cmd.Prefix, cmd.Op, cmd.Payload)); err != nil {
		return nil, err
	}
	line, err := e.readLine(ctx)
	if err != nil {
		return nil, err
	}
	// One checksum byte trails the CR; the device computes it over the
	// line but the reference firmware never fails it, so it is only read.
	if _, err := e.port.ReadByte(ctx); err != nil {
		return nil, err
	}
	code, body, err := ParseExtendedReply(line)
	if err != nil {
		return nil, err
	}
	if code != 0 && !e.warnings[code] {
		return nil, e.mapper.Check(code, fmt.Sprintf("command %c%d: %s", cmd.Prefix, cmd.Op, e.describe(code)))
	}
	return &protocol.Reply{Status: code, Fields: [][]byte{body}, Raw: line}, nil
}

// drain discards replies to earlier sends of a retried command. A missing
// reply only means the device dropped that send.
func (e *Engine) drain(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		line, err := e.readLine(ctx)
		if err != nil {
			e.logger.Warn("Pending reply not received", zap.Int("index", i), zap.Error(err))
			return
		}
		e.logger.Debug("Ignoring reply", zap.ByteString("reply", line))
	}
}

// ReadLine reads one CR terminated line that follows a command reply, as
// in a fiscal memory dump. The CR is stripped.
func (e *Engine) ReadLine(ctx context.Context) ([]byte, error) {
	return e.readLine(ctx)
}

func (e *Engine) readLine(ctx context.Context) ([]byte, error) {
	line, err := e.port.ReadUntil(ctx, CR)
	if err != nil {
		return nil, err
	}
	return line[:len(line)-1], nil
}

func (e *Engine) sleep(ctx context.Context) error {
	select {
	case <-e.clock.After(e.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) describe(code int) string {
	if entry, ok := e.mapper.Lookup(code); ok {
		return entry.Description
	}
	return fmt.Sprintf("unhandled error %d", code)
}
