// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"ecf-service/internal/model"
)

var validBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// decodeConfig fills out from a loosely typed connection map, accepting
// JSON numbers for ints and strings like "3s" for durations.
func decodeConfig(in map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// CreateProtocol creates a transport based on connection type and configuration
func CreateProtocol(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	switch connectionType {
	case model.ConnectionTypeSerial:
		cfg, err := ParseSerialConfig(config)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating serial protocol",
			zap.String("port", cfg.Port),
			zap.Int("baud_rate", cfg.BaudRate),
		)
		return NewSerialConnection(cfg, logger), nil

	case model.ConnectionTypeUSB:
		cfg, err := ParseUSBConfig(config)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating USB protocol",
			zap.String("vendor_id", cfg.VendorID),
			zap.String("product_id", cfg.ProductID),
		)
		return NewUSBConnection(cfg, logger), nil

	case model.ConnectionTypeTCP:
		cfg, err := ParseTCPConfig(config)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating TCP protocol",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.Bool("ssl", cfg.SSL),
		)
		return NewTCPConnection(cfg, logger), nil

	default:
		return nil, fmt.Errorf("unsupported protocol type: %s", connectionType)
	}
}

// ParseSerialConfig decodes and validates a serial connection map on top of
// DefaultSerialConfig.
func ParseSerialConfig(config map[string]interface{}) (*SerialConfig, error) {
	cfg := DefaultSerialConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid serial config: %w", err)
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial port is required")
	}
	if !slices.Contains(validBaudRates, cfg.BaudRate) {
		return nil, fmt.Errorf("invalid baud rate: %d", cfg.BaudRate)
	}
	switch cfg.Parity {
	case "none", "odd", "even", "mark", "space":
	default:
		return nil, fmt.Errorf("invalid parity: %q", cfg.Parity)
	}
	return &cfg, nil
}

// ParseUSBConfig decodes and validates a USB connection map.
func ParseUSBConfig(config map[string]interface{}) (*USBConfig, error) {
	cfg := DefaultUSBConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid USB config: %w", err)
	}
	if cfg.VendorID == "" {
		return nil, fmt.Errorf("USB vendor_id is required")
	}
	if cfg.ProductID == "" {
		return nil, fmt.Errorf("USB product_id is required")
	}
	if _, err := parseHexID(cfg.VendorID); err != nil {
		return nil, fmt.Errorf("invalid USB vendor_id: %w", err)
	}
	if _, err := parseHexID(cfg.ProductID); err != nil {
		return nil, fmt.Errorf("invalid USB product_id: %w", err)
	}
	return &cfg, nil
}

// ParseTCPConfig decodes and validates a TCP connection map.
func ParseTCPConfig(config map[string]interface{}) (*TCPConfig, error) {
	cfg := DefaultTCPConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid TCP config: %w", err)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("TCP host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port number: %d", cfg.Port)
	}
	return &cfg, nil
}

// ValidateConfig validates configuration for a specific protocol type
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	var err error
	switch connectionType {
	case model.ConnectionTypeSerial:
		_, err = ParseSerialConfig(config)
	case model.ConnectionTypeUSB:
		_, err = ParseUSBConfig(config)
	case model.ConnectionTypeTCP:
		_, err = ParseTCPConfig(config)
	case model.ConnectionTypeVirtual:
	default:
		err = fmt.Errorf("unsupported connection type: %s", connectionType)
	}
	return err
}
