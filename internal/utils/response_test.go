package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecf-service/internal/config"
	"ecf-service/pkg/driver"
)

func TestStatusForError(t *testing.T) {
	mapper := driver.NewErrorMapper("test", 0, map[int]driver.ErrorEntry{
		10: {Err: driver.ErrOutOfPaper, Kind: driver.KindHardware},
		11: {Err: driver.ErrCommand, Kind: driver.KindCommand},
	})

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", fmt.Errorf("price: %w", driver.ErrInvalidArgument), http.StatusBadRequest},
		{"capability", driver.ErrCapability, http.StatusBadRequest},
		{"state", driver.ErrCouponNotOpen, http.StatusConflict},
		{"not supported", driver.ErrNotSupported, http.StatusNotImplemented},
		{"timeout", fmt.Errorf("read: %w", driver.ErrTimeout), http.StatusServiceUnavailable},
		{"busy", driver.ErrBusy, http.StatusServiceUnavailable},
		{"checksum", driver.ErrChecksumMismatch, http.StatusBadGateway},
		{"hardware", mapper.Check(10, ""), http.StatusUnprocessableEntity},
		{"command", mapper.Check(11, ""), http.StatusUnprocessableEntity},
		{"unmapped code", mapper.Check(99, ""), http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestDriverErrorResponseCarriesDeviceCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mapper := driver.NewErrorMapper("test", 0, map[int]driver.ErrorEntry{
		10: {Err: driver.ErrOutOfPaper, Kind: driver.KindHardware},
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")
	DriverErrorResponse(c, "Failed to add item", mapper.Check(10, "sem papel"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DEVICE_REFUSED", resp.Error.Code)
	assert.Equal(t, "hardware", resp.Error.Kind)
	require.NotNil(t, resp.Error.DeviceCode)
	assert.Equal(t, 10, *resp.Error.DeviceCode)
}

func TestNewLoggerRotatesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ecf.log")
	logger, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "timestamp")

	_, err = NewLogger(&config.LoggingConfig{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}
