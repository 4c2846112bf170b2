// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"ecf-service/internal/discovery"
	"ecf-service/internal/model"
)

// Scanner lists USB printers by descriptor. Devices are never opened, so a
// scan does not disturb a printer in use.
type Scanner struct {
	logger *zap.Logger
}

// NewScanner creates a USB scanner.
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{logger: logger.With(zap.String("scanner", "usb"))}
}

func (s *Scanner) Type() string { return "usb" }

// IsAvailable reports whether libusb enumeration is expected to work.
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return true
	}
	return false
}

// Scan walks the bus and keeps known vendors and printer class devices.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.Candidate, error) {
	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	var found []*discovery.Candidate
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if ctx.Err() != nil {
			return false
		}
		if c := s.candidate(desc); c != nil {
			found = append(found, c)
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Scanner) candidate(desc *gousb.DeviceDesc) *discovery.Candidate {
	brand, deviceModel, confidence, known := discovery.Identify(uint16(desc.Vendor), uint16(desc.Product))
	if !known && !isPrinter(desc) {
		return nil
	}
	if !known {
		confidence = 0.2
	}
	s.logger.Debug("USB printer found",
		zap.String("vendor_id", desc.Vendor.String()),
		zap.String("product_id", desc.Product.String()),
		zap.String("brand", string(brand)),
		zap.String("model", deviceModel),
	)
	return &discovery.Candidate{
		ConnectionType: model.ConnectionTypeUSB,
		ConnectionConfig: map[string]interface{}{
			"vendor_id":  desc.Vendor.String(),
			"product_id": desc.Product.String(),
		},
		Brand:       brand,
		Model:       deviceModel,
		Description: fmt.Sprintf("%s bus %d address %d", discovery.VendorName(uint16(desc.Vendor)), desc.Bus, desc.Address),
		Confidence:  confidence,
	}
}

// isPrinter checks the device class and, for composite devices, the
// interface classes of every configuration.
func isPrinter(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}
