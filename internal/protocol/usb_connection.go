// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/pkg/driver"
)

// USBConnection implements Transport for USB bulk printers
type USBConnection struct {
	config   *USBConfig
	ctx      *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	done     func()
	outEndpt *gousb.OutEndpoint
	inEndpt  *gousb.InEndpoint
	logger   *zap.Logger
	mutex    sync.Mutex
	isOpen   bool
	stats    ProtocolStats
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) *USBConnection {
	return &USBConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "usb"),
			zap.String("vendor_id", config.VendorID),
			zap.String("product_id", config.ProductID),
		),
	}
}

// Open opens the USB connection
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}

	uc.logger.Info("Opening USB connection",
		zap.String("vendor_id", uc.config.VendorID),
		zap.String("product_id", uc.config.ProductID),
		zap.Int("out_endpoint", uc.config.OutEndpoint),
	)

	vendorID, err := parseHexID(uc.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}

	productID, err := parseHexID(uc.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	uc.ctx = gousb.NewContext()

	device, err := uc.findAndOpenDevice(vendorID, productID)
	if err != nil {
		uc.ctx.Close()
		return fmt.Errorf("failed to find USB device: %w", err)
	}

	// The printer class driver grabs the interface on Linux.
	if err := device.SetAutoDetach(true); err != nil {
		uc.logger.Warn("Failed to enable kernel driver auto detach", zap.Error(err))
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	outEndpt, err := intf.OutEndpoint(uc.config.OutEndpoint & 0x7f)
	if err != nil {
		done()
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("failed to get out endpoint: %w", err)
	}

	var inEndpt *gousb.InEndpoint
	if uc.config.InEndpoint != 0 {
		inEndpt, err = intf.InEndpoint(uc.config.InEndpoint & 0x7f)
		if err != nil {
			// Write only printers have no in endpoint.
			uc.logger.Warn("No in endpoint found", zap.Error(err))
			inEndpt = nil
		}
	}

	uc.device = device
	uc.intf = intf
	uc.done = done
	uc.outEndpt = outEndpt
	uc.inEndpt = inEndpt
	uc.isOpen = true
	uc.stats.IsConnected = true
	uc.stats.LastActivity = time.Now()

	uc.logger.Info("USB connection opened successfully")
	return nil
}

// Close closes the USB connection
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	if uc.done != nil {
		uc.done()
		uc.done = nil
		uc.intf = nil
	}

	if uc.device != nil {
		uc.device.Close()
		uc.device = nil
	}

	if uc.ctx != nil {
		uc.ctx.Close()
		uc.ctx = nil
	}

	uc.outEndpt = nil
	uc.inEndpt = nil
	uc.isOpen = false
	uc.stats.IsConnected = false

	uc.logger.Info("USB connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.isOpen && uc.device != nil && uc.outEndpt != nil
}

// Write writes data to the USB connection
func (uc *USBConnection) Write(ctx context.Context, data []byte) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.outEndpt == nil {
		return driver.ErrNotConnected
	}

	wctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	startTime := time.Now()
	n, err := uc.outEndpt.WriteContext(wctx, data)
	if err != nil {
		uc.stats.ErrorCount++
		uc.logger.Error("USB write failed", zap.Error(err))
		return fmt.Errorf("failed to write to USB device: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	uc.stats.recordWrite(n, time.Since(startTime))
	return nil
}

func (uc *USBConnection) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.config.Timeout)
}

// Read reads up to maxBytes from the in endpoint. A timeout yields an empty
// slice so the caller can count it as an empty read.
func (uc *USBConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.inEndpt == nil {
		return nil, fmt.Errorf("%w: no in endpoint", driver.ErrNotConnected)
	}

	rctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	buffer := make([]byte, maxBytes)
	n, err := uc.inEndpt.ReadContext(rctx, buffer)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if rctx.Err() != nil || errors.Is(err, gousb.TransferTimedOut) {
			uc.stats.recordRead(0)
			return []byte{}, nil
		}
		uc.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from USB device: %w", err)
	}

	uc.stats.recordRead(n)
	return buffer[:n], nil
}

// GetProtocolType returns the protocol type
func (uc *USBConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeUSB
}

// Stats returns a copy of the connection statistics.
func (uc *USBConnection) Stats() ProtocolStats {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.stats
}

// Helper methods

// parseHexID parses hex ID string (0x1234 or 1234)
func parseHexID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.ToLower(hexStr), "0x")

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}

	return gousb.ID(id), nil
}

// findAndOpenDevice finds and opens the USB device
func (uc *USBConnection) findAndOpenDevice(vendorID, productID gousb.ID) (*gousb.Device, error) {
	// Find device by vendor and product ID
	devices, err := uc.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != vendorID || desc.Product != productID {
			return false
		}

		return true
	})

	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if uc.config.SerialNumber != "" {
		devices = uc.filterBySerial(devices)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("USB device not found (VID: %04X, PID: %04X)", vendorID, productID)
	}

	if len(devices) > 1 {
		// Close extra devices
		for i := 1; i < len(devices); i++ {
			devices[i].Close()
		}
		uc.logger.Warn("Multiple matching USB devices found, using first one")
	}

	return devices[0], nil
}

// filterBySerial keeps the devices whose serial number string matches and
// closes the rest.
func (uc *USBConnection) filterBySerial(devices []*gousb.Device) []*gousb.Device {
	var kept []*gousb.Device
	for _, d := range devices {
		sn, err := d.SerialNumber()
		if err == nil && sn == uc.config.SerialNumber {
			kept = append(kept, d)
			continue
		}
		d.Close()
	}
	return kept
}
