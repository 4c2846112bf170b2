// internal/protocol/fiscnet/engine.go
package fiscnet

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

// Engine speaks the FiscNet text protocol.
type Engine struct {
	port   *protocol.Port
	mapper *driver.ErrorMapper
	logger *zap.Logger
	nextID int
}

// NewEngine creates an engine over port.
func NewEngine(port *protocol.Port, mapper *driver.ErrorMapper, logger *zap.Logger) *Engine {
	return &Engine{
		port:   port,
		mapper: mapper,
		logger: logger.With(zap.String("engine", "fiscnet")),
	}
}

// Send issues cmd.Name with cmd.Params. A non zero status is mapped through
// the vendor table with the device's Circunstancia text as the message.
func (e *Engine) Send(ctx context.Context, cmd protocol.Command) (*protocol.Reply, error) {
	id := e.nextID
	e.nextID = (e.nextID + 1) % 10000

	frame, err := EncodeRequest(id, cmd.Name, cmd.Params)
	if err != nil {
		return nil, err
	}
	if err := e.port.Write(ctx, frame); err != nil {
		return nil, err
	}
	raw, err := e.readFrame(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	if reply.ID != id {
		return nil, fmt.Errorf("%w: sent %d, got %d", driver.ErrUnexpectedReplyID, id, reply.ID)
	}
	code, err := strconv.Atoi(reply.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: bad status %q", driver.ErrMalformedFrame, reply.Name)
	}
	if code != 0 {
		e.logger.Debug("Device error",
			zap.String("command", cmd.Name),
			zap.Int("code", code),
			zap.String("circunstancia", reply.Values["Circunstancia"]),
		)
		return nil, e.mapper.Check(code, reply.Values["Circunstancia"])
	}
	return &protocol.Reply{Values: reply.Values, Raw: raw}, nil
}

// readFrame reads up to the first '}' that is not inside a quoted value.
func (e *Engine) readFrame(ctx context.Context) ([]byte, error) {
	var (
		frame   []byte
		quoted  bool
		escaped bool
	)
	for {
		c, err := e.port.ReadByte(ctx)
		if err != nil {
			return nil, err
		}
		if len(frame) == 0 && c != Start {
			// Seen once after a power cycle; the rest of the line is junk.
			n := e.port.Discard()
			return nil, fmt.Errorf("%w: reply starts with %q, %d bytes discarded", driver.ErrMalformedFrame, c, n)
		}
		frame = append(frame, c)
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == End && !quoted:
			return frame, nil
		}
	}
}
