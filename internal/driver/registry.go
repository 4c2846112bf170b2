// internal/driver/registry.go
package driver

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

// AnyModel matches every model of a brand.
const AnyModel = "*"

// ErrNoDriver is returned when no factory matches a device.
var ErrNoDriver = errors.New("no driver registered")

// DriverFactory creates a driver talking over port. Virtual drivers ignore
// the port, so it may be nil for them.
type DriverFactory func(device *model.Device, port *protocol.Port, logger *zap.Logger) (driver.Driver, error)

// DriverKey uniquely identifies a driver
type DriverKey struct {
	Brand model.DeviceBrand `json:"brand"`
	Model string            `json:"model"`
}

func (k DriverKey) String() string {
	return string(k.Brand) + "/" + k.Model
}

// Registry manages device driver registration and creation
type Registry struct {
	drivers map[DriverKey]DriverFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a new driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		drivers: make(map[DriverKey]DriverFactory),
		logger:  logger.With(zap.String("component", "driver_registry")),
	}
}

// Register registers a driver factory. Registering the same key twice
// replaces the earlier factory.
func (r *Registry) Register(brand model.DeviceBrand, deviceModel string, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drivers[DriverKey{Brand: brand, Model: deviceModel}] = factory
	r.logger.Debug("Driver registered",
		zap.String("brand", string(brand)),
		zap.String("model", deviceModel),
	)
}

func (r *Registry) lookup(brand model.DeviceBrand, deviceModel string) (DriverFactory, bool) {
	if f, ok := r.drivers[DriverKey{Brand: brand, Model: deviceModel}]; ok {
		return f, true
	}
	f, ok := r.drivers[DriverKey{Brand: brand, Model: AnyModel}]
	return f, ok
}

// CreateDriver creates a driver instance for device. The exact model is
// tried first, then the brand wildcard.
func (r *Registry) CreateDriver(device *model.Device, port *protocol.Port) (driver.Driver, error) {
	r.mu.RLock()
	factory, ok := r.lookup(device.Brand, device.Model)
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: brand=%s, model=%s", ErrNoDriver, device.Brand, device.Model)
	}
	return factory(device, port, r.logger)
}

// IsSupported checks if a device is supported
func (r *Registry) IsSupported(brand model.DeviceBrand, deviceModel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lookup(brand, deviceModel)
	return ok
}

// ListDrivers returns all registered drivers sorted by brand and model.
func (r *Registry) ListDrivers() []DriverKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]DriverKey, 0, len(r.drivers))
	for key := range r.drivers {
		keys = append(keys, key)
	}
	sortKeys(keys)
	return keys
}

// SupportedPrinters lists the registered models whose driver provides
// trait. Virtual drivers are left out unless includeVirtual is set.
//
// Each factory is instantiated once with a nil port; driver constructors do no
// I/O, so this only inspects the returned type.
func (r *Registry) SupportedPrinters(trait model.Capability, includeVirtual bool) []DriverKey {
	r.mu.RLock()
	candidates := make(map[DriverKey]DriverFactory, len(r.drivers))
	for key, f := range r.drivers {
		if key.Brand == model.BrandVirtual && !includeVirtual {
			continue
		}
		candidates[key] = f
	}
	r.mu.RUnlock()

	nopLogger := zap.NewNop()
	var keys []DriverKey
	for key, f := range candidates {
		d, err := f(&model.Device{Brand: key.Brand, Model: key.Model}, nil, nopLogger)
		if err != nil {
			r.logger.Warn("Driver instantiation failed", zap.String("driver", key.String()), zap.Error(err))
			continue
		}
		if HasTrait(d, trait) {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys
}

// GetSupportedBrands returns all brands with at least one registered driver.
func (r *Registry) GetSupportedBrands() []model.DeviceBrand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brandSet := make(map[model.DeviceBrand]bool)
	for key := range r.drivers {
		brandSet[key.Brand] = true
	}

	brands := make([]model.DeviceBrand, 0, len(brandSet))
	for brand := range brandSet {
		brands = append(brands, brand)
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i] < brands[j] })
	return brands
}

// HasTrait reports whether d implements the contract behind trait.
func HasTrait(d driver.Driver, trait model.Capability) bool {
	switch trait {
	case model.CapabilityCoupon:
		_, ok := d.(driver.CouponProtocol)
		return ok
	case model.CapabilityReports:
		_, ok := d.(driver.ReportCapable)
		return ok
	case model.CapabilitySintegra:
		_, ok := d.(driver.SintegraCapable)
		return ok
	case model.CapabilityPrint, model.CapabilityCut, model.CapabilityBarcode, model.CapabilityQR:
		_, ok := d.(driver.NonFiscalPrintable)
		return ok
	case model.CapabilityGraphics:
		_, ok := d.(driver.GraphicsCapable)
		return ok
	case model.CapabilityDrawer:
		_, ok := d.(driver.DrawerCapable)
		return ok
	}
	return false
}

// Traits lists every capability d provides.
func Traits(d driver.Driver) []model.Capability {
	all := []model.Capability{
		model.CapabilityCoupon,
		model.CapabilityReports,
		model.CapabilitySintegra,
		model.CapabilityPrint,
		model.CapabilityCut,
		model.CapabilityBarcode,
		model.CapabilityQR,
		model.CapabilityGraphics,
		model.CapabilityDrawer,
	}
	var out []model.Capability
	for _, c := range all {
		if HasTrait(d, c) {
			out = append(out, c)
		}
	}
	return out
}

func sortKeys(keys []DriverKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Brand != keys[j].Brand {
			return keys[i].Brand < keys[j].Brand
		}
		return keys[i].Model < keys[j].Model
	})
}
