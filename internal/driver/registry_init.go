// internal/driver/registry_init.go
package driver

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"ecf-service/internal/driver/daruma"
	"ecf-service/internal/driver/epson"
	"ecf-service/internal/driver/escpos"
	"ecf-service/internal/driver/fiscnet"
	"ecf-service/internal/driver/virtual"
	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

// Options carries the settings the default factories need.
type Options struct {
	BusyAttempts int
	BusyDelay    time.Duration
	// LegacyConfig is an ini file with [fiscnet] label overrides.
	LegacyConfig string

	Fs              afero.Fs
	VirtualStateDir string
	VirtualOutput   io.Writer
	Clock           clockwork.Clock
}

// VirtualDevices hands out one simulated device per device id so power and
// drawer state survive reconnects.
type VirtualDevices struct {
	devices *xsync.MapOf[string, *virtual.Device]
}

func NewVirtualDevices() *VirtualDevices {
	return &VirtualDevices{devices: xsync.NewMapOf[string, *virtual.Device]()}
}

// Get returns the device for id, creating it on first use.
func (v *VirtualDevices) Get(id string) *virtual.Device {
	d, _ := v.devices.LoadOrCompute(id, virtual.NewDevice)
	return d
}

// RegisterDefaultDrivers registers all default device drivers
func RegisterDefaultDrivers(registry *Registry, opts Options, virtuals *VirtualDevices, logger *zap.Logger) error {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	registerDarumaDrivers(registry, opts)
	if err := registerFiscNetDrivers(registry, opts); err != nil {
		return err
	}
	registerEpsonDrivers(registry)
	registerESCPOSDrivers(registry)
	registerVirtualDrivers(registry, opts, virtuals)

	logger.Info("Printer drivers registered", zap.Int("drivers", len(registry.ListDrivers())))
	return nil
}

func requirePort(device *model.Device, port *protocol.Port) error {
	if port == nil && device.DeviceID != "" {
		return fmt.Errorf("driver %s/%s needs a port", device.Brand, device.Model)
	}
	return nil
}

func registerDarumaDrivers(registry *Registry, opts Options) {
	darumaOpts := []daruma.Option{daruma.WithClock(opts.Clock)}
	if opts.BusyAttempts > 0 {
		darumaOpts = append(darumaOpts, daruma.WithBusyRetry(opts.BusyAttempts, opts.BusyDelay))
	}

	registry.Register(model.BrandDaruma, "FS345", func(device *model.Device, port *protocol.Port, logger *zap.Logger) (driver.Driver, error) {
		if err := requirePort(device, port); err != nil {
			return nil, err
		}
		return daruma.NewFS345(port, logger, darumaOpts...), nil
	})
	registry.Register(model.BrandDaruma, "FS2100", func(device *model.Device, port *protocol.Port, logger *zap.Logger) (driver.Driver, error) {
		if err := requirePort(device, port); err != nil {
			return nil, err
		}
		return daruma.NewFS2100(port, logger, darumaOpts...), nil
	})
}

func registerFiscNetDrivers(registry *Registry, opts Options) error {
	labels, err := fiscnet.LoadLabels(opts.LegacyConfig)
	if err != nil {
		return fmt.Errorf("failed to load fiscnet labels: %w", err)
	}
	factory := func(device *model.Device, port *protocol.Port, logger *zap.Logger) (driver.Driver, error) {
		if err := requirePort(device, port); err != nil {
			return nil, err
		}
		return fiscnet.New(port, logger, fiscnet.WithClock(opts.Clock), fiscnet.WithLabels(labels)), nil
	}
	registry.Register(model.BrandFiscNet, "FiscNetECF", factory)
	registry.Register(model.BrandFiscNet, AnyModel, factory)
	return nil
}

func registerEpsonDrivers(registry *Registry) {
	registry.Register(model.BrandEpson, "FBII", func(device *model.Device, port *protocol.Port, logger *zap.Logger) (driver.Driver, error) {
		if err := requirePort(device, port); err != nil {
			return nil, err
		}
		return epson.NewFBII(port, logger), nil
	})
	registry.Register(model.BrandEpson, "FBIII", func(device *model.Device, port *protocol.Port, logger *zap.Logger) (driver.Driver, error) {
		if err := requirePort(device, port); err != nil {
			return nil, err
		}
		return epson.NewFBIII(port, logger), nil
	})
}

// registerESCPOSDrivers registers one factory per printer profile. A
// "charset" entry in the connection config overrides the profile's code
// page.
func registerESCPOSDrivers(registry *Registry) {
	for _, profile := range escpos.Profiles {
		profile := profile
		registry.Register(model.DeviceBrand(profile.Brand), profile.Model, func(device *model.Device, port *protocol.Port, logger *zap.Logger) (driver.Driver, error) {
			if err := requirePort(device, port); err != nil {
				return nil, err
			}
			var opts []escpos.Option
			if cs, ok := device.ConnectionConfig["charset"].(string); ok && cs != "" {
				opts = append(opts, escpos.WithCharset(cs))
			}
			return escpos.New(port, profile, logger, opts...), nil
		})
	}
}

func registerVirtualDrivers(registry *Registry, opts Options, virtuals *VirtualDevices) {
	factory := func(device *model.Device, _ *protocol.Port, logger *zap.Logger) (driver.Driver, error) {
		vopts := []virtual.Option{virtual.WithClock(opts.Clock)}
		if opts.VirtualOutput != nil {
			vopts = append(vopts, virtual.WithOutput(opts.VirtualOutput))
		}
		// trait checks get a throwaway device and no state file
		if device.DeviceID == "" || virtuals == nil {
			return virtual.New(virtual.NewDevice(), logger, vopts...), nil
		}
		if opts.VirtualStateDir != "" {
			vopts = append(vopts, virtual.WithStateDir(opts.Fs, filepath.Join(opts.VirtualStateDir, device.DeviceID)))
		}
		return virtual.New(virtuals.Get(device.DeviceID), logger, vopts...), nil
	}
	registry.Register(model.BrandVirtual, "Simple", factory)
	registry.Register(model.BrandVirtual, AnyModel, factory)
}
