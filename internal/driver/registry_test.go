package driver

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/driver/daruma"
	"ecf-service/internal/driver/epson"
	"ecf-service/internal/driver/escpos"
	"ecf-service/internal/driver/virtual"
	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

func newTestRegistry(t *testing.T, opts Options) (*Registry, *VirtualDevices) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	r := NewRegistry(logger)
	v := NewVirtualDevices()
	require.NoError(t, RegisterDefaultDrivers(r, opts, v, logger))
	return r, v
}

func testPort(t *testing.T) *protocol.Port {
	pc, err := protocol.NewPlaybackString("")
	require.NoError(t, err)
	return protocol.NewPort(pc, zaptest.NewLogger(t))
}

func TestCreateDriverExactMatch(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	port := testPort(t)

	tests := []struct {
		brand model.DeviceBrand
		model string
		check func(t *testing.T, d driver.Driver)
	}{
		{model.BrandDaruma, "FS345", func(t *testing.T, d driver.Driver) { assert.IsType(t, &daruma.FS345{}, d) }},
		{model.BrandDaruma, "FS2100", func(t *testing.T, d driver.Driver) { assert.IsType(t, &daruma.FS2100{}, d) }},
		{model.BrandEpson, "FBII", func(t *testing.T, d driver.Driver) { assert.IsType(t, &epson.FBII{}, d) }},
		{model.BrandEpson, "FBIII", func(t *testing.T, d driver.Driver) { assert.IsType(t, &epson.FBIII{}, d) }},
		{model.BrandEpson, "TMT20", func(t *testing.T, d driver.Driver) {
			p, ok := d.(*escpos.Printer)
			require.True(t, ok)
			assert.Equal(t, "TMT20", p.Profile().Model)
		}},
		{"elgin", "I9", func(t *testing.T, d driver.Driver) { assert.Equal(t, 57, d.(*escpos.Printer).MaxCharacters()) }},
		{model.BrandFiscNet, "FiscNetECF", func(t *testing.T, d driver.Driver) { assert.Equal(t, "fiscnet", d.Info().Brand) }},
	}
	for _, tt := range tests {
		t.Run(string(tt.brand)+"/"+tt.model, func(t *testing.T) {
			d, err := r.CreateDriver(&model.Device{DeviceID: "dev-1", Brand: tt.brand, Model: tt.model}, port)
			require.NoError(t, err)
			tt.check(t, d)
		})
	}
}

func TestCreateDriverFallsBackToBrandWildcard(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})

	d, err := r.CreateDriver(&model.Device{DeviceID: "dev-1", Brand: model.BrandFiscNet, Model: "ECF-IF"}, testPort(t))
	require.NoError(t, err)
	assert.Equal(t, "FiscNetECF", d.Info().Model)

	assert.True(t, r.IsSupported(model.BrandFiscNet, "anything"))
	assert.False(t, r.IsSupported(model.BrandEpson, "TM-U220"))

	_, err = r.CreateDriver(&model.Device{Brand: model.BrandEpson, Model: "TM-U220"}, nil)
	assert.ErrorIs(t, err, ErrNoDriver)
}

func TestCreateDriverNeedsPort(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	_, err := r.CreateDriver(&model.Device{DeviceID: "dev-1", Brand: model.BrandDaruma, Model: "FS345"}, nil)
	assert.Error(t, err)
}

func TestEscposCharsetOverride(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	d, err := r.CreateDriver(&model.Device{
		DeviceID:         "dev-1",
		Brand:            model.BrandEpson,
		Model:            "TP650",
		ConnectionConfig: model.JSONObject{"charset": "cp860"},
	}, testPort(t))
	require.NoError(t, err)
	assert.Equal(t, "cp860", d.Info().Charset)
}

func TestSupportedPrinters(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})

	fiscal := r.SupportedPrinters(model.CapabilityCoupon, false)
	assert.Equal(t, []DriverKey{
		{model.BrandDaruma, "FS2100"},
		{model.BrandDaruma, "FS345"},
		{model.BrandEpson, "FBII"},
		{model.BrandEpson, "FBIII"},
		{model.BrandFiscNet, "*"},
		{model.BrandFiscNet, "FiscNetECF"},
	}, fiscal)

	withVirtual := r.SupportedPrinters(model.CapabilityCoupon, true)
	assert.Contains(t, withVirtual, DriverKey{model.BrandVirtual, "Simple"})
	assert.Len(t, withVirtual, len(fiscal)+2)

	graphics := r.SupportedPrinters(model.CapabilityGraphics, false)
	assert.Len(t, graphics, len(escpos.Profiles))
	assert.NotContains(t, graphics, DriverKey{model.BrandEpson, "FBII"})

	sintegra := r.SupportedPrinters(model.CapabilitySintegra, false)
	assert.Contains(t, sintegra, DriverKey{model.BrandDaruma, "FS345"})
	assert.NotContains(t, sintegra, DriverKey{model.BrandEpson, "FBIII"})
}

func TestTraits(t *testing.T) {
	p := virtual.New(virtual.NewDevice(), zap.NewNop())
	traits := Traits(p)
	assert.Contains(t, traits, model.CapabilityCoupon)
	assert.Contains(t, traits, model.CapabilityDrawer)
	assert.Contains(t, traits, model.CapabilityPrint)

	fb := epson.NewFBII(nil, zap.NewNop())
	assert.Equal(t, []model.Capability{model.CapabilityCoupon}, Traits(fb))
}

func TestVirtualDevicesAreSharedPerID(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	r, v := newTestRegistry(t, Options{Fs: fs, VirtualStateDir: "/state", VirtualOutput: &out})
	device := &model.Device{DeviceID: "till-3", Brand: model.BrandVirtual, Model: "Simple"}

	d, err := r.CreateDriver(device, nil)
	require.NoError(t, err)
	p := d.(*virtual.Printer)
	ctx := context.Background()

	require.NoError(t, p.PrintLine(ctx, "hello"))
	assert.Contains(t, out.String(), "hello")

	v.Get("till-3").SetOff(true)
	assert.ErrorIs(t, p.PrintLine(ctx, "x"), driver.ErrPrinterOffline)
	assert.False(t, v.Get("till-4").IsOff())

	assert.ErrorIs(t, p.OpenTill(ctx), driver.ErrPrinterOffline)
	exists, err := afero.Exists(fs, "/state/till-3/"+virtual.StateFile)
	require.NoError(t, err)
	assert.False(t, exists, "offline printer must not write state")

	v.Get("till-3").SetOff(false)
	require.NoError(t, p.CloseTill(ctx, false))
	exists, err = afero.Exists(fs, "/state/till-3/"+virtual.StateFile)
	require.NoError(t, err)
	assert.True(t, exists)
}
