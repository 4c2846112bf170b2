// internal/protocol/port.go
package protocol

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"ecf-service/pkg/driver"
)

// DefaultMaxEmptyReads is how many consecutive empty reads a single
// ReadByte/ReadN/ReadUntil call tolerates before giving up.
const DefaultMaxEmptyReads = 5

const readChunk = 256

// Port wraps a Transport with the buffered reads the protocol engines need.
// It is not safe for concurrent use; a device session owns exactly one Port.
type Port struct {
	transport     Transport
	logger        *zap.Logger
	buf           []byte
	maxEmptyReads int
}

// PortOption configures a Port.
type PortOption func(*Port)

// WithMaxEmptyReads overrides DefaultMaxEmptyReads.
func WithMaxEmptyReads(n int) PortOption {
	return func(p *Port) {
		if n > 0 {
			p.maxEmptyReads = n
		}
	}
}

// NewPort creates a port over t.
func NewPort(t Transport, logger *zap.Logger, opts ...PortOption) *Port {
	p := &Port{
		transport:     t,
		logger:        logger.With(zap.String("component", "port")),
		maxEmptyReads: DefaultMaxEmptyReads,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Transport returns the underlying transport.
func (p *Port) Transport() Transport {
	return p.transport
}

// Write sends data as a single frame.
func (p *Port) Write(ctx context.Context, data []byte) error {
	if p.logger.Core().Enabled(zap.DebugLevel) {
		p.logger.Debug("tx", zap.String("hex", hex.EncodeToString(data)), zap.Int("len", len(data)))
	}
	if err := p.transport.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadByte returns the next byte from the device.
func (p *Port) ReadByte(ctx context.Context) (byte, error) {
	b, err := p.ReadN(ctx, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadN returns exactly n bytes.
func (p *Port) ReadN(ctx context.Context, n int) ([]byte, error) {
	empty := 0
	for len(p.buf) < n {
		if err := p.fill(ctx, &empty); err != nil {
			return nil, err
		}
	}
	out := p.take(n)
	p.logRx(out)
	return out, nil
}

// ReadUntil returns everything up to and including delim.
func (p *Port) ReadUntil(ctx context.Context, delim byte) ([]byte, error) {
	empty := 0
	for {
		if i := bytes.IndexByte(p.buf, delim); i >= 0 {
			out := p.take(i + 1)
			p.logRx(out)
			return out, nil
		}
		if err := p.fill(ctx, &empty); err != nil {
			return nil, err
		}
	}
}

// Discard drops any buffered input and returns how many bytes were dropped.
func (p *Port) Discard() int {
	n := len(p.buf)
	p.buf = p.buf[:0]
	return n
}

func (p *Port) fill(ctx context.Context, empty *int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := p.transport.Read(ctx, readChunk)
	if err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}
	if len(data) == 0 {
		*empty++
		if *empty > p.maxEmptyReads {
			return fmt.Errorf("%w: no reply after %d reads", driver.ErrTimeout, *empty)
		}
		return nil
	}
	*empty = 0
	p.buf = append(p.buf, data...)
	return nil
}

func (p *Port) take(n int) []byte {
	out := make([]byte, n)
	copy(out, p.buf[:n])
	p.buf = append(p.buf[:0], p.buf[n:]...)
	return out
}

func (p *Port) logRx(data []byte) {
	if p.logger.Core().Enabled(zap.DebugLevel) {
		p.logger.Debug("rx", zap.String("hex", hex.EncodeToString(data)), zap.Int("len", len(data)))
	}
}
