package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecf-service/internal/model"
)

func TestParseSerialConfigDefaults(t *testing.T) {
	cfg, err := ParseSerialConfig(map[string]interface{}{
		"port":    "/dev/ttyS0",
		"timeout": "500ms",
	})
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.BaudRate)
	assert.Equal(t, 8, cfg.DataBits)
	assert.Equal(t, "none", cfg.Parity)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.True(t, cfg.DTR)
}

func TestParseSerialConfigWeakTypes(t *testing.T) {
	// JSON decoded maps carry numbers as float64.
	cfg, err := ParseSerialConfig(map[string]interface{}{
		"port":      "COM3",
		"baud_rate": float64(115200),
		"parity":    "even",
	})
	require.NoError(t, err)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, "even", cfg.Parity)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		conn    model.ConnectionType
		config  map[string]interface{}
		wantErr bool
	}{
		{"serial ok", model.ConnectionTypeSerial, map[string]interface{}{"port": "/dev/ttyUSB0"}, false},
		{"serial no port", model.ConnectionTypeSerial, map[string]interface{}{}, true},
		{"serial bad baud", model.ConnectionTypeSerial, map[string]interface{}{"port": "x", "baud_rate": 1234}, true},
		{"serial bad parity", model.ConnectionTypeSerial, map[string]interface{}{"port": "x", "parity": "weird"}, true},
		{"usb ok", model.ConnectionTypeUSB, map[string]interface{}{"vendor_id": "0x04b8", "product_id": "0e15"}, false},
		{"usb bad id", model.ConnectionTypeUSB, map[string]interface{}{"vendor_id": "zz", "product_id": "0e15"}, true},
		{"tcp ok", model.ConnectionTypeTCP, map[string]interface{}{"host": "10.0.0.5"}, false},
		{"tcp bad port", model.ConnectionTypeTCP, map[string]interface{}{"host": "h", "port": 70000}, true},
		{"virtual", model.ConnectionTypeVirtual, nil, false},
		{"unknown", model.ConnectionType("CARRIER_PIGEON"), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.conn, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateProtocol(t *testing.T) {
	tr, err := CreateProtocol(model.ConnectionTypeTCP, map[string]interface{}{"host": "printer.local"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionTypeTCP, tr.GetProtocolType())
	assert.False(t, tr.IsOpen())

	_, err = CreateProtocol(model.ConnectionTypeVirtual, nil, zap.NewNop())
	assert.Error(t, err)
}
