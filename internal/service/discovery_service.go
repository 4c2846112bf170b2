// internal/service/discovery_service.go
package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ecf-service/internal/discovery"
	drivers "ecf-service/internal/driver"
	"ecf-service/internal/model"
	"ecf-service/internal/utils"
)

// DiscoveryService finds attached printers and lists the models the
// registry can drive.
type DiscoveryService struct {
	manager  *discovery.Manager
	registry *drivers.Registry
	logger   *utils.ServiceLogger
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(manager *discovery.Manager, registry *drivers.Registry, logger *zap.Logger) *DiscoveryService {
	return &DiscoveryService{
		manager:  manager,
		registry: registry,
		logger:   utils.NewServiceLogger(logger, "discovery-service"),
	}
}

// Scan runs one scanner, or all of them for "" and "all".
func (ds *DiscoveryService) Scan(ctx context.Context, scanType string) ([]*discovery.Candidate, error) {
	scanType = strings.ToLower(scanType)
	var (
		found []*discovery.Candidate
		err   error
	)
	if scanType == "" || scanType == "all" {
		found, err = ds.manager.ScanAll(ctx)
	} else {
		found, err = ds.manager.ScanByType(ctx, scanType)
	}
	if err != nil {
		ds.logger.Warn("Device scan failed", zap.String("type", scanType), zap.Error(err))
		return nil, err
	}
	ds.logger.Info("Device scan completed", zap.String("type", scanType), zap.Int("found", len(found)))
	return found, nil
}

// Scanners lists the scanner types usable on this host.
func (ds *DiscoveryService) Scanners() []string {
	return ds.manager.Available()
}

// SupportedPrinters lists the registered models providing trait. An empty
// trait lists every registered driver.
func (ds *DiscoveryService) SupportedPrinters(trait model.Capability, includeVirtual bool) []drivers.DriverKey {
	if trait == "" {
		keys := ds.registry.ListDrivers()
		if includeVirtual {
			return keys
		}
		out := keys[:0]
		for _, k := range keys {
			if k.Brand != model.BrandVirtual {
				out = append(out, k)
			}
		}
		return out
	}
	return ds.registry.SupportedPrinters(trait, includeVirtual)
}
