// internal/discovery/serial/scanner.go
package serial

import (
	"context"

	"go.uber.org/zap"

	"ecf-service/internal/discovery"
	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
)

// PortLister enumerates serial ports.
type PortLister func() ([]protocol.SerialPortInfo, error)

// Scanner turns the host serial ports into candidates. Fiscal printers do
// not identify themselves on the line, so plain ports carry no brand; USB
// serial adapters are matched by vendor and product id.
type Scanner struct {
	list     PortLister
	defaults map[string]interface{}
	logger   *zap.Logger
}

// NewScanner creates a serial scanner. defaults are copied into every
// candidate connection config; list defaults to protocol.ListSerialPorts.
func NewScanner(list PortLister, defaults map[string]interface{}, logger *zap.Logger) *Scanner {
	if list == nil {
		list = protocol.ListSerialPorts
	}
	return &Scanner{list: list, defaults: defaults, logger: logger.With(zap.String("scanner", "serial"))}
}

func (s *Scanner) Type() string { return "serial" }

func (s *Scanner) IsAvailable() bool { return true }

func (s *Scanner) Scan(ctx context.Context) ([]*discovery.Candidate, error) {
	ports, err := s.list()
	if err != nil {
		return nil, err
	}
	found := make([]*discovery.Candidate, 0, len(ports))
	for _, p := range ports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cfg := make(map[string]interface{}, len(s.defaults)+1)
		for k, v := range s.defaults {
			cfg[k] = v
		}
		cfg["port"] = p.Name

		c := &discovery.Candidate{
			ConnectionType:   model.ConnectionTypeSerial,
			ConnectionConfig: cfg,
			Description:      p.Name,
			SerialNumber:     p.SerialNumber,
		}
		if p.IsUSB {
			if brand, deviceModel, confidence, ok := discovery.IdentifyHex(p.VendorID, p.ProductID); ok {
				c.Brand, c.Model, c.Confidence = brand, deviceModel, confidence
			}
		}
		found = append(found, c)
	}
	s.logger.Debug("Serial ports listed", zap.Int("count", len(found)))
	return found, nil
}
