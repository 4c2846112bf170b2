package epson

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/protocol"
	"ecf-service/internal/protocol/stxetx"
	"ecf-service/pkg/driver"
)

// script records one exchange per command with the engine's running ids.
type script struct {
	t  *testing.T
	sb strings.Builder
	id byte
}

func newScript(t *testing.T) *script { return &script{t: t, id: stxetx.FirstID} }

func (s *script) reply(cmd, ext string, args []string, st stxetx.Status, fields ...string) *script {
	s.id++
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	if ext == "" {
		ext = stxetx.DefaultExtension
	}
	frame, err := stxetx.EncodeRequest(s.id, cmd, ext, raw)
	require.NoError(s.t, err)
	data := make([][]byte, len(fields))
	for i, f := range fields {
		data[i] = []byte(f)
	}
	s.sb.WriteString("W " + protocol.EscapeTranscript(frame) + "\n")
	s.sb.WriteString("R " + protocol.EscapeTranscript(append([]byte{stxetx.ACK}, stxetx.EncodeReply(s.id, st, data)...)) + "\n")
	s.sb.WriteString("W " + protocol.EscapeTranscript([]byte{stxetx.ACK}) + "\n")
	return s
}

func (s *script) ok(cmd, ext string, args []string, fields ...string) *script {
	return s.reply(cmd, ext, args, stxetx.Status{}, fields...)
}

func (s *script) port() (*protocol.Port, *protocol.PlaybackConnection) {
	pc, err := protocol.NewPlaybackString(s.sb.String())
	require.NoError(s.t, err)
	return protocol.NewPort(pc, zaptest.NewLogger(s.t)), pc
}

func (s *script) fbii() (*FBII, *protocol.PlaybackConnection) {
	port, pc := s.port()
	return NewFBII(port, zaptest.NewLogger(s.t)), pc
}

func (s *script) fbiii() (*FBIII, *protocol.PlaybackConnection) {
	port, pc := s.port()
	return NewFBIII(port, zaptest.NewLogger(s.t)), pc
}

func args(a ...string) []string { return a }

func coca() driver.ItemRequest {
	return driver.ItemRequest{
		Code:        "123",
		Description: "Coca",
		Price:       decimal.RequireFromString("2.50"),
		TaxCode:     "T01",
		Quantity:    decimal.NewFromInt(1),
		Unit:        driver.UnitEmpty,
	}
}

func TestCouponFlow(t *testing.T) {
	s := newScript(t).
		ok(cmdOpenCoupon, "", args("", "")).
		ok(cmdAddItem, "", args("123", "Coca", "1000", "UN", "250", "T01")).
		ok(cmdAddItem, "", args("9", "Agua", "2500", "LT", "100", "T01")).
		ok(cmdTotals, "", nil, "500").
		ok(cmdPay, "", args("1", "300", ""), "200").
		ok(cmdPay, "", args("2", "300", "visa"), "-100").
		ok(cmdCloseCoupon, "", args("Obrigado", "Ana", "Rua A", "12345678900")).
		ok(cmdCounters, "", nil, "000042", "000040", "000007", "000003")
	d, pc := s.fbii()
	ctx := context.Background()

	require.NoError(t, d.CouponIdentifyCustomer(ctx, driver.Customer{Name: "Ana", Address: "Rua A", Document: "12345678900"}))
	require.NoError(t, d.CouponOpen(ctx))

	id, err := d.CouponAddItem(ctx, coca())
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	id, err = d.CouponAddItem(ctx, driver.ItemRequest{
		Code: "9", Description: "Agua", Price: decimal.NewFromInt(1), TaxCode: "T01",
		Quantity: decimal.RequireFromString("2.5"), Unit: driver.UnitLiters,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	total, err := d.CouponTotalize(ctx, decimal.Zero, decimal.Zero, driver.TaxICMS)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(5)))

	due, err := d.CouponAddPayment(ctx, "1", decimal.NewFromInt(3), "")
	require.NoError(t, err)
	assert.True(t, due.Equal(decimal.NewFromInt(2)))
	due, err = d.CouponAddPayment(ctx, "2", decimal.NewFromInt(3), "visa")
	require.NoError(t, err)
	assert.True(t, due.IsZero())

	coo, err := d.CouponClose(ctx, "Obrigado")
	require.NoError(t, err)
	assert.Equal(t, 42, coo)
	assert.True(t, pc.Done())
}

func TestItemIDsRestartOnOpen(t *testing.T) {
	s := newScript(t).
		ok(cmdOpenCoupon, "", args("", "")).
		ok(cmdAddItem, "", args("123", "Coca", "1000", "UN", "250", "T01")).
		ok(cmdCancelCoupon, extCancelCoupon, args("1")).
		ok(cmdOpenCoupon, "", args("", "")).
		ok(cmdAddItem, "", args("123", "Coca", "1000", "UN", "250", "T01"))
	d, pc := s.fbii()
	ctx := context.Background()

	require.NoError(t, d.CouponOpen(ctx))
	_, err := d.CouponAddItem(ctx, coca())
	require.NoError(t, err)
	require.NoError(t, d.CouponCancel(ctx))
	require.NoError(t, d.CouponOpen(ctx))
	id, err := d.CouponAddItem(ctx, coca())
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.True(t, pc.Done())
}

func TestCustomUnit(t *testing.T) {
	s := newScript(t).ok(cmdAddItem, "", args("123", "Coca", "1000", "cx", "250", "T01"))
	d, pc := s.fbii()
	item := coca()
	item.Unit = driver.UnitCustom
	item.UnitDesc = "cx"

	_, err := d.CouponAddItem(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, pc.Done())
}

func TestDeviceErrorIsUnmapped(t *testing.T) {
	s := newScript(t).reply(cmdOpenCoupon, "", args("", ""), stxetx.Status{Reply: 0x0101})
	d, _ := s.fbii()

	err := d.CouponOpen(context.Background())
	require.Error(t, err)
	code, ok := driver.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, 0x0101, code)
}

func TestTotalizeRejectsAdjustments(t *testing.T) {
	d, pc := newScript(t).fbii()

	_, err := d.CouponTotalize(context.Background(), decimal.NewFromInt(1), decimal.Zero, driver.TaxICMS)
	assert.ErrorIs(t, err, driver.ErrNotSupported)
	assert.True(t, pc.Done())
}

func TestCloseFailureWrapsCloseCoupon(t *testing.T) {
	s := newScript(t).reply(cmdCloseCoupon, "", args("", "", "", ""), stxetx.Status{Reply: 0x0a05})
	d, _ := s.fbii()

	_, err := d.CouponClose(context.Background(), "")
	assert.ErrorIs(t, err, driver.ErrCloseCoupon)
}

func TestHasOpenCoupon(t *testing.T) {
	tests := []struct {
		name   string
		fiscal uint16
		want   bool
	}{
		{"idle", 0x0000, false},
		{"fiscal", 0x0001, true},
		{"non fiscal", 0x1000, true},
		{"other bits", 0xc000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScript(t).reply(cmdStatus, "", nil, stxetx.Status{Fiscal: tt.fiscal})
			d, pc := s.fbii()

			open, err := d.HasOpenCoupon(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, open)
			assert.True(t, pc.Done())
		})
	}
}

func TestCloseTillCancelsOpenCoupon(t *testing.T) {
	s := newScript(t).
		reply(cmdStatus, "", nil, stxetx.Status{Fiscal: fiscalCouponOpen}).
		ok(cmdCancelCoupon, extCancelCoupon, args("1")).
		ok(cmdReduceZ, "", nil)
	d, pc := s.fbii()

	require.NoError(t, d.CloseTill(context.Background(), false))
	assert.True(t, pc.Done())
}

func TestTillOperations(t *testing.T) {
	s := newScript(t).
		ok(cmdOpenDay, "", nil).
		ok(cmdReadX, "", nil).
		ok(cmdCashVoucher, "", args(voucherSupply, "1050")).
		ok(cmdCashVoucher, "", args(voucherRemoval, "300"))
	d, pc := s.fbii()
	ctx := context.Background()

	require.NoError(t, d.OpenTill(ctx))
	require.NoError(t, d.Summarize(ctx))
	require.NoError(t, d.TillAddCash(ctx, decimal.RequireFromString("10.50")))
	require.NoError(t, d.TillRemoveCash(ctx, decimal.NewFromInt(3)))

	pending, err := d.HasPendingReduce(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
	assert.ErrorIs(t, d.TillReadMemoryByReductions(ctx, 1, 2), driver.ErrNotSupported)
	assert.ErrorIs(t, d.CouponCancelItem(ctx, 1), driver.ErrNotSupported)
	assert.True(t, pc.Done())
}

func TestTaxConstants(t *testing.T) {
	s := newScript(t).ok(cmdTaxes, "", nil,
		"T01", "1800", "0",
		"T02", "1200", "0",
		"S01", "0500", "0",
	)
	d, pc := s.fbii()

	taxes, err := d.TaxConstants(context.Background())
	require.NoError(t, err)
	require.Len(t, taxes, 6)
	assert.Equal(t, driver.TaxCustom, taxes[0].Type)
	assert.Equal(t, "T01", taxes[0].Code)
	assert.True(t, taxes[0].Value.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, driver.TaxService, taxes[2].Type)
	assert.True(t, taxes[2].Value.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, []string{"F", "I", "N"}, []string{taxes[3].Code, taxes[4].Code, taxes[5].Code})
	assert.Nil(t, taxes[3].Value)
	assert.True(t, pc.Done())
}

func TestTaxConstantsUnknownRegister(t *testing.T) {
	s := newScript(t).ok(cmdTaxes, "", nil, "X01", "1800", "0")
	d, _ := s.fbii()

	_, err := d.TaxConstants(context.Background())
	assert.ErrorIs(t, err, driver.ErrMalformedFrame)
}

func TestPaymentConstantsStopAtEndOfList(t *testing.T) {
	s := newScript(t).
		ok(cmdPayment, "", args("1"), "Dinheiro", "N").
		ok(cmdPayment, "", args("2"), "Cartao   ", "S").
		reply(cmdPayment, "", args("3"), stxetx.Status{Reply: stxetx.StatusEndOfList})
	d, pc := s.fbii()

	methods, err := d.PaymentConstants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []driver.PaymentConstant{
		{Code: "1", Description: "Dinheiro"},
		{Code: "2", Description: "Cartao"},
	}, methods)
	assert.True(t, pc.Done())
}

func TestSerialAndCounters(t *testing.T) {
	s := newScript(t).
		ok(cmdDetails, "", nil, "EP011234567890 ", "FBII").
		ok(cmdCounters, "", nil, "000042", "000040", "000007", "000003")
	d, pc := s.fbii()
	ctx := context.Background()

	serial, err := d.Serial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EP011234567890", serial)

	c, err := d.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, driver.Counters{COO: 42, CCF: 40, CRZ: 7, GNF: 3}, c)
	assert.True(t, pc.Done())
}

func TestCountersMalformed(t *testing.T) {
	s := newScript(t).ok(cmdCounters, "", nil, "000042", "x")
	d, _ := s.fbii()

	_, err := d.Counters(context.Background())
	assert.ErrorIs(t, err, driver.ErrMalformedFrame)
}

func TestFBIIIItemAdjustments(t *testing.T) {
	s := newScript(t).
		ok(cmdOpenCoupon, "", args("", "")).
		ok(cmdAddItem, "", args("123", "Coca", "1000", "UN", "250", "T01")).
		ok(cmdAdjustItem, extDiscount, args("1", "50")).
		ok(cmdAddItem, "", args("123", "Coca", "1000", "UN", "250", "T01")).
		ok(cmdAdjustItem, extMarkup, args("2", "25"))
	d, pc := s.fbiii()
	ctx := context.Background()

	require.NoError(t, d.CouponOpen(ctx))
	discounted := coca()
	discounted.Discount = decimal.RequireFromString("0.50")
	id, err := d.CouponAddItem(ctx, discounted)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	marked := coca()
	marked.Surcharge = decimal.RequireFromString("0.25")
	id, err = d.CouponAddItem(ctx, marked)
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.Equal(t, "FBIII", d.Info().Model)
	assert.True(t, pc.Done())
}

func TestPaymentCommittedWhenDueIsMalformed(t *testing.T) {
	s := newScript(t).ok(cmdPay, "", args("1", "1000", ""), "??")
	d, pc := s.fbii()

	_, err := d.CouponAddPayment(context.Background(), "1", decimal.NewFromInt(10), "")
	require.Error(t, err)
	assert.True(t, driver.IsCommitted(err))
	assert.ErrorIs(t, err, driver.ErrMalformedFrame)
	assert.True(t, pc.Done())
}

func TestCloseCommittedWhenCountersFail(t *testing.T) {
	s := newScript(t).
		ok(cmdCloseCoupon, "", args("", "", "", "")).
		reply(cmdCounters, "", nil, stxetx.Status{Reply: 0x0101})
	d, pc := s.fbii()

	_, err := d.CouponClose(context.Background(), "")
	require.Error(t, err)
	assert.True(t, driver.IsCommitted(err))
	assert.NotErrorIs(t, err, driver.ErrCloseCoupon)
	assert.True(t, pc.Done())
}

func TestFBIIIItemCommittedWhenDiscountFails(t *testing.T) {
	s := newScript(t).
		ok(cmdAddItem, "", args("123", "Coca", "1000", "UN", "250", "T01")).
		reply(cmdAdjustItem, extDiscount, args("1", "50"), stxetx.Status{Reply: 0x0101})
	d, pc := s.fbiii()

	item := coca()
	item.Discount = decimal.RequireFromString("0.50")
	id, err := d.CouponAddItem(context.Background(), item)
	require.Error(t, err)
	assert.True(t, driver.IsCommitted(err))
	assert.Equal(t, 1, id)
	assert.True(t, pc.Done())
}

func TestCapabilities(t *testing.T) {
	caps := NewFBII(nil, zaptest.NewLogger(t)).Capabilities()
	assert.NoError(t, caps.CheckString(driver.CapCustomerName, strings.Repeat("a", 30)))
	assert.Error(t, caps.CheckString(driver.CapCustomerName, strings.Repeat("a", 31)))
	assert.Error(t, caps.CheckString(driver.CapItemCode, strings.Repeat("1", 15)))
}
