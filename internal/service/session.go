// internal/service/session.go
package service

import (
	"fmt"
	"sync"
	"time"

	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
	"ecf-service/internal/utils"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/fiscal"
)

// Session is the single live connection to a device. All calls through it
// are serialized by mu so the transport never sees interleaved frames.
type Session struct {
	mu sync.Mutex

	device      *model.Device
	drv         driver.Driver
	transport   protocol.Transport
	printer     *fiscal.Printer
	connectedAt time.Time
	logger      *utils.DeviceLogger
}

// Device returns the registered device behind the session.
func (s *Session) Device() *model.Device { return s.device }

// Driver returns the live driver.
func (s *Session) Driver() driver.Driver { return s.drv }

// ConnectedAt is when the session was opened.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// Fiscal returns the coupon state machine, or ErrNotSupported when the device
// is not a fiscal printer.
func (s *Session) Fiscal() (*fiscal.Printer, error) {
	if s.printer == nil {
		return nil, fmt.Errorf("%w: %s/%s is not a fiscal printer", driver.ErrNotSupported, s.device.Brand, s.device.Model)
	}
	return s.printer, nil
}

// Reports returns the report capable side of the driver.
func (s *Session) Reports() (driver.ReportCapable, error) {
	r, ok := s.drv.(driver.ReportCapable)
	if !ok {
		return nil, fmt.Errorf("%w: reports", driver.ErrNotSupported)
	}
	return r, nil
}

// Printer returns the non fiscal printing side of the driver.
func (s *Session) Printer() (driver.NonFiscalPrintable, error) {
	p, ok := s.drv.(driver.NonFiscalPrintable)
	if !ok {
		return nil, fmt.Errorf("%w: non fiscal printing", driver.ErrNotSupported)
	}
	return p, nil
}

// Drawer returns the cash drawer side of the driver.
func (s *Session) Drawer() (driver.DrawerCapable, error) {
	d, ok := s.drv.(driver.DrawerCapable)
	if !ok {
		return nil, fmt.Errorf("%w: cash drawer", driver.ErrNotSupported)
	}
	return d, nil
}

func (s *Session) close() error {
	var firstErr error
	if err := s.drv.Close(); err != nil {
		firstErr = err
	}
	if s.transport != nil && s.transport.IsOpen() {
		if err := s.transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
