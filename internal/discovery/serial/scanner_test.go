package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
)

func TestScanBuildsConnectionConfigs(t *testing.T) {
	list := func() ([]protocol.SerialPortInfo, error) {
		return []protocol.SerialPortInfo{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VendorID: "04B8", ProductID: "0E15", SerialNumber: "X1"},
		}, nil
	}
	s := NewScanner(list, map[string]interface{}{"baud_rate": 9600}, zaptest.NewLogger(t))

	found, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, model.ConnectionTypeSerial, found[0].ConnectionType)
	assert.Equal(t, "/dev/ttyS0", found[0].ConnectionConfig["port"])
	assert.Equal(t, 9600, found[0].ConnectionConfig["baud_rate"])
	assert.Empty(t, found[0].Brand)
	assert.Zero(t, found[0].Confidence)

	assert.Equal(t, model.BrandEpson, found[1].Brand)
	assert.Equal(t, "TMT20", found[1].Model)
	assert.Equal(t, "X1", found[1].SerialNumber)
	assert.Equal(t, "/dev/ttyUSB0", found[1].ConnectionConfig["port"])
}

func TestScanPropagatesListError(t *testing.T) {
	boom := errors.New("no ports")
	s := NewScanner(func() ([]protocol.SerialPortInfo, error) { return nil, boom }, nil, zaptest.NewLogger(t))
	_, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, boom)
}
