// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ecf-service/internal/model"
)

// Scanner finds printers attached to the host.
type Scanner interface {
	Scan(ctx context.Context) ([]*Candidate, error)
	Type() string
	IsAvailable() bool
}

// Candidate is a printer that could be registered. ConnectionConfig is
// ready to be used as a device connection config.
type Candidate struct {
	ConnectionType   model.ConnectionType   `json:"connection_type"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	Brand            model.DeviceBrand      `json:"brand,omitempty"`
	Model            string                 `json:"model,omitempty"`
	Description      string                 `json:"description,omitempty"`
	SerialNumber     string                 `json:"serial_number,omitempty"`
	// Confidence is 1 for an exact vendor/product match, lower when only
	// the vendor is known and 0 for an unidentified port.
	Confidence float64 `json:"confidence"`
	Supported  bool    `json:"supported"`
}

// SupportFunc reports whether a driver is registered for brand and model.
type SupportFunc func(brand model.DeviceBrand, deviceModel string) bool

// Manager runs the registered scanners.
type Manager struct {
	scanners  map[string]Scanner
	supported SupportFunc
	logger    *zap.Logger
}

// NewManager creates a scanner manager. supported may be nil.
func NewManager(supported SupportFunc, logger *zap.Logger) *Manager {
	return &Manager{
		scanners:  make(map[string]Scanner),
		supported: supported,
		logger:    logger.With(zap.String("component", "discovery")),
	}
}

// Register adds a scanner, replacing any scanner of the same type.
func (m *Manager) Register(s Scanner) {
	m.scanners[s.Type()] = s
	m.logger.Debug("Scanner registered", zap.String("type", s.Type()))
}

// ScanAll runs every available scanner. A failing scanner is logged and
// skipped.
func (m *Manager) ScanAll(ctx context.Context) ([]*Candidate, error) {
	var all []*Candidate
	for _, t := range m.Available() {
		found, err := m.scanners[t].Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn("Scanner failed", zap.String("type", t), zap.Error(err))
			continue
		}
		m.logger.Info("Scan completed", zap.String("type", t), zap.Int("found", len(found)))
		all = append(all, found...)
	}
	return m.mark(all), nil
}

// ScanByType runs a single scanner.
func (m *Manager) ScanByType(ctx context.Context, scannerType string) ([]*Candidate, error) {
	s, ok := m.scanners[strings.ToLower(scannerType)]
	if !ok {
		return nil, fmt.Errorf("unknown scanner type: %s", scannerType)
	}
	if !s.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}
	found, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return m.mark(found), nil
}

// Available returns the types of the scanners usable on this host, sorted.
func (m *Manager) Available() []string {
	var types []string
	for t, s := range m.scanners {
		if s.IsAvailable() {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

func (m *Manager) mark(candidates []*Candidate) []*Candidate {
	for _, c := range candidates {
		if m.supported != nil && c.Model != "" {
			c.Supported = m.supported(c.Brand, c.Model)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}
