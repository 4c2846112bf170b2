// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/pkg/driver"
)

// SerialConnection implements Transport for serial connections
type SerialConnection struct {
	config *SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
	stats  ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	sc.logger.Info("Opening serial port",
		zap.String("port", sc.config.Port),
		zap.Int("baud_rate", sc.config.BaudRate),
		zap.String("parity", sc.config.Parity),
	)

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		Parity:   parseParity(sc.config.Parity),
		StopBits: parseStopBits(sc.config.StopBits),
	}

	port, err := serial.Open(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(sc.config.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	if sc.config.DTR {
		if err := port.SetDTR(true); err != nil {
			sc.logger.Warn("Failed to raise DTR", zap.Error(err))
		}
	}
	// Stale bytes from a previous session would desync the first reply.
	if err := port.ResetInputBuffer(); err != nil {
		sc.logger.Warn("Failed to flush input buffer", zap.Error(err))
	}
	if err := port.ResetOutputBuffer(); err != nil {
		sc.logger.Warn("Failed to flush output buffer", zap.Error(err))
	}

	sc.port = port
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Info("Serial port opened successfully")
	return nil
}

func parseParity(p string) serial.Parity {
	switch p {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

func parseStopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	if err := sc.port.Drain(); err != nil {
		sc.logger.Warn("Failed to drain serial port", zap.Error(err))
	}
	if err := sc.port.Close(); err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.port = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return driver.ErrNotConnected
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startTime := time.Now()
	n, err := sc.port.Write(data)
	if err != nil {
		sc.stats.ErrorCount++
		sc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	sc.stats.recordWrite(n, time.Since(startTime))
	return nil
}

// Read reads up to maxBytes. A read timeout yields an empty slice.
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil, driver.ErrNotConnected
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	buffer := make([]byte, maxBytes)

	go func() {
		n, err := sc.port.Read(buffer)
		if err != nil && !errors.Is(err, io.EOF) {
			done <- result{err: fmt.Errorf("failed to read from serial port: %w", err)}
			return
		}
		data := make([]byte, n)
		copy(data, buffer[:n])
		done <- result{data: data}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			sc.stats.ErrorCount++
			return nil, r.err
		}
		sc.stats.recordRead(len(r.data))
		return r.data, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Stats returns a copy of the connection statistics.
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.stats
}

// SerialPortInfo describes a serial port found on the host.
type SerialPortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// ListSerialPorts enumerates the serial ports of the host, including USB
// serial adapters.
func ListSerialPorts() ([]SerialPortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, listErr := serial.GetPortsList()
		if listErr != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", listErr)
		}
		ports := make([]SerialPortInfo, 0, len(names))
		for _, n := range names {
			ports = append(ports, SerialPortInfo{Name: n})
		}
		return ports, nil
	}

	ports := make([]SerialPortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, SerialPortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VendorID:     d.VID,
			ProductID:    d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	return ports, nil
}
