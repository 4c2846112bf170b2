// internal/protocol/stxetx/engine.go
package stxetx

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

// DefaultExtension is sent when a command has no extension word.
const DefaultExtension = "0000"

// Engine speaks the STX/ETX framed protocol of the Epson FB printers.
type Engine struct {
	port   *protocol.Port
	mapper *driver.ErrorMapper
	logger *zap.Logger
	id     byte
}

// NewEngine creates an engine over port.
func NewEngine(port *protocol.Port, mapper *driver.ErrorMapper, logger *zap.Logger) *Engine {
	return &Engine{
		port:   port,
		mapper: mapper,
		logger: logger.With(zap.String("engine", "stxetx")),
		id:     FirstID,
	}
}

func (e *Engine) nextID() byte {
	if e.id == 0xff {
		e.id = wrapToID
	} else {
		e.id++
	}
	return e.id
}

// Send writes cmd and waits for its final reply.
//
// The exchange is: write the frame, read one ACK, then read reply frames.
// Every reply is checksum verified and acknowledged; replies carrying the
// Intermediate id are collected and the loop continues until the reply with
// the id in flight arrives.
func (e *Engine) Send(ctx context.Context, cmd protocol.Command) (*protocol.Reply, error) {
	ext := cmd.Ext
	if ext == "" {
		ext = DefaultExtension
	}
	id := e.nextID()
	frame, err := EncodeRequest(id, cmd.Name, ext, cmd.Args)
	if err != nil {
		return nil, err
	}
	if err := e.port.Write(ctx, frame); err != nil {
		return nil, err
	}

	ack, err := e.port.ReadByte(ctx)
	if err != nil {
		return nil, err
	}
	if ack != ACK {
		return nil, fmt.Errorf("%w: expected ACK, got %#02x", driver.ErrUnexpectedResponse, ack)
	}

	reply := &protocol.Reply{}
	for {
		raw, err := e.readFrame(ctx)
		if err != nil {
			return nil, err
		}
		replyID, fields, err := DecodeFrame(raw)
		if err != nil {
			return nil, err
		}
		if err := e.port.Write(ctx, []byte{ACK}); err != nil {
			return nil, err
		}
		if replyID == Intermediate {
			e.logger.Debug("Intermediate reply", zap.String("command", cmd.Name), zap.Int("fields", len(fields)))
			reply.Intermediate = append(reply.Intermediate, fields)
			continue
		}
		if replyID != id {
			return nil, fmt.Errorf("%w: sent %#02x, got %#02x", driver.ErrUnexpectedReplyID, id, replyID)
		}

		st, data, err := ParseStatus(fields)
		if err != nil {
			return nil, err
		}
		reply.Status = int(st.Reply)
		reply.PrinterStatus = st.Printer
		reply.FiscalStatus = st.Fiscal
		reply.Fields = data
		reply.Raw = raw
		if err := e.mapper.Check(int(st.Reply), ""); err != nil {
			e.logger.Debug("Device error",
				zap.String("command", cmd.Name),
				zap.String("status", st.String()),
				zap.Uint16("printer_status", st.Printer),
				zap.Uint16("fiscal_status", st.Fiscal),
			)
			return reply, err
		}
		return reply, nil
	}
}

// readFrame reads from STX to the first unescaped ETX plus the four
// checksum characters.
func (e *Engine) readFrame(ctx context.Context) ([]byte, error) {
	first, err := e.port.ReadByte(ctx)
	if err != nil {
		return nil, err
	}
	if first != STX {
		n := e.port.Discard()
		return nil, fmt.Errorf("%w: expected STX, got %#02x, %d bytes discarded", driver.ErrMalformedFrame, first, n)
	}
	frame := []byte{first}
	escaped := false
	for {
		c, err := e.port.ReadByte(ctx)
		if err != nil {
			return nil, err
		}
		frame = append(frame, c)
		switch {
		case escaped:
			escaped = false
		case c == ESC && len(frame) > 2:
			escaped = true
		case c == ETX && len(frame) > 2:
			sum, err := e.port.ReadN(ctx, 4)
			if err != nil {
				return nil, err
			}
			return append(frame, sum...), nil
		}
	}
}
