package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecf-service/internal/model"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/fiscal"
)

func item(description, price string) *AddItemRequest {
	return &AddItemRequest{
		ItemRequest: driver.ItemRequest{
			Code:        "789",
			Description: description,
			Price:       decimal.RequireFromString(price),
			Quantity:    decimal.NewFromInt(1),
		},
		Tax: driver.TaxNone,
	}
}

func TestCouponLifecycleIsJournaled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	device := f.connectVirtual(t, "caixa-01")

	_, err := f.coupons.Open(ctx, "caixa-01")
	require.NoError(t, err)

	res, err := f.coupons.AddItem(ctx, "caixa-01", item("CAFE", "4.50"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ItemID)
	assert.Equal(t, "TN", res.Coupon.Items[1].TaxCode, "logical tax resolved to the device code")

	_, err = f.coupons.AddItem(ctx, "caixa-01", item("PAO", "5.50"))
	require.NoError(t, err)

	res, err = f.coupons.Totalize(ctx, "caixa-01", &TotalizeRequest{})
	require.NoError(t, err)
	assert.True(t, res.Value.Equal(decimal.NewFromInt(10)))
	assert.True(t, res.Coupon.IsTotalized)

	res, err = f.coupons.AddPayment(ctx, "caixa-01", &PaymentRequest{Method: "M", Value: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.True(t, res.Value.IsZero())

	res, err = f.coupons.Close(ctx, "caixa-01", "obrigado")
	require.NoError(t, err)
	assert.Equal(t, 1, res.COO)
	assert.False(t, res.Coupon.IsOpen)
	assert.Contains(t, f.output.String(), "Troco: 10.00")

	entries := f.journal.entries()
	require.Len(t, entries, 6)
	for _, op := range entries {
		assert.Equal(t, model.OperationStatusSuccess, op.Status, op.OperationType)
		assert.Equal(t, device.ID, op.DeviceID)
		assert.NotNil(t, op.CompletedAt)
	}
	closed := entries[5]
	assert.Equal(t, model.OperationCouponClose, closed.OperationType)
	require.NotNil(t, closed.COO)
	assert.Equal(t, 1, *closed.COO)
	assert.Equal(t, "10.00", closed.Amount.StringFixed(2))
	assert.Equal(t, "obrigado", closed.Request["message"])

	var couponEvents int
	for _, et := range f.events.types() {
		if et == model.EventCouponChanged {
			couponEvents++
		}
	}
	assert.Equal(t, 6, couponEvents)
}

func TestCouponStateViolationIsJournaledAsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	_, err := f.coupons.Open(ctx, "caixa-01")
	require.NoError(t, err)

	_, err = f.coupons.AddPayment(ctx, "caixa-01", &PaymentRequest{Method: "M", Value: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, driver.ErrPaymentAddition)
	assert.Equal(t, driver.KindState, driver.KindOf(err))

	_, err = f.coupons.Open(ctx, "caixa-01")
	require.ErrorIs(t, err, driver.ErrCouponAlreadyOpen)

	entries := f.journal.entries()
	require.Len(t, entries, 3)
	failed := entries[1]
	assert.Equal(t, model.OperationCouponAddPayment, failed.OperationType)
	assert.Equal(t, model.OperationStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "cannot add payment")
	assert.Nil(t, failed.ErrorCode)

	assert.Contains(t, f.events.types(), model.EventOperationFailed)

	status, err := f.coupons.Status(ctx, "caixa-01")
	require.NoError(t, err)
	assert.True(t, status.DeviceOpen)
	assert.True(t, status.Coupon.IsOpen)
	assert.Equal(t, fiscal.TillOpen, status.Till)
}

func TestAddItemQuantityDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")
	_, err := f.coupons.Open(ctx, "caixa-01")
	require.NoError(t, err)

	var omitted AddItemRequest
	require.NoError(t, json.Unmarshal([]byte(`{"code":"1","description":"CAFE","price":"4.50","tax":"NONE"}`), &omitted))
	require.Nil(t, omitted.Quantity)
	res, err := f.coupons.AddItem(ctx, "caixa-01", &omitted)
	require.NoError(t, err)
	assert.True(t, res.Coupon.Items[res.ItemID].Quantity.Equal(decimal.NewFromInt(1)))

	var zero AddItemRequest
	require.NoError(t, json.Unmarshal([]byte(`{"code":"2","description":"BRINDE","price":"1.00","quantity":"0","tax":"NONE"}`), &zero))
	require.NotNil(t, zero.Quantity)
	res, err = f.coupons.AddItem(ctx, "caixa-01", &zero)
	require.NoError(t, err)
	assert.True(t, res.Coupon.Items[res.ItemID].Quantity.IsZero(), "an explicit zero is not rewritten")
}

func TestCouponCancelAndItemCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	_, err := f.coupons.Open(ctx, "caixa-01")
	require.NoError(t, err)
	res, err := f.coupons.AddItem(ctx, "caixa-01", item("CAFE", "4.50"))
	require.NoError(t, err)

	_, err = f.coupons.CancelItem(ctx, "caixa-01", 99)
	assert.ErrorIs(t, err, driver.ErrCancelItem)

	res, err = f.coupons.CancelItem(ctx, "caixa-01", res.ItemID)
	require.NoError(t, err)
	assert.Empty(t, res.Coupon.Items)

	res, err = f.coupons.Cancel(ctx, "caixa-01")
	require.NoError(t, err)
	assert.False(t, res.Coupon.IsOpen)
	assert.NotEqual(t, uuid.Nil, res.OperationID)
}

func TestCouponOnNonFiscalPrinterIsNotSupported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	sess, err := f.devices.Session("caixa-01")
	require.NoError(t, err)
	sess.printer = nil

	_, err = f.coupons.Open(ctx, "caixa-01")
	assert.ErrorIs(t, err, driver.ErrNotSupported)
}

func TestTillOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	res, err := f.till.Open(ctx, "caixa-01")
	require.NoError(t, err)
	assert.Equal(t, fiscal.TillOpen, res.Till)

	_, err = f.till.AddCash(ctx, "caixa-01", decimal.RequireFromString("50"))
	require.NoError(t, err)
	_, err = f.till.RemoveCash(ctx, "caixa-01", decimal.Zero)
	assert.ErrorIs(t, err, driver.ErrInvalidValue)

	_, err = f.till.ReadMemory(ctx, "caixa-01", f.clock.Now().AddDate(0, 0, 1), f.clock.Now())
	assert.ErrorIs(t, err, driver.ErrInvalidArgument)
	_, err = f.till.ReadMemoryByReductions(ctx, "caixa-01", 1, 3)
	require.NoError(t, err)

	_, err = f.till.GerencialReport(ctx, "caixa-01", []string{"FECHAMENTO", "TURNO 1"})
	require.NoError(t, err)
	assert.Contains(t, f.output.String(), "RELATORIO GERENCIAL")
	assert.Contains(t, f.output.String(), "TURNO 1\n")

	res, err = f.till.Close(ctx, "caixa-01", false)
	require.NoError(t, err)
	assert.Equal(t, fiscal.TillClosed, res.Till)

	_, err = f.till.Close(ctx, "caixa-01", false)
	assert.ErrorIs(t, err, driver.ErrReduceZ)

	pending, err := f.till.PendingReduce(ctx, "caixa-01")
	require.NoError(t, err)
	assert.False(t, pending)

	var cash *model.FiscalOperation
	for _, op := range f.journal.entries() {
		if op.OperationType == model.OperationTillAddCash {
			cash = op
		}
	}
	require.NotNil(t, cash)
	assert.Equal(t, "50", cash.Amount.String())
	assert.Contains(t, f.events.types(), model.EventTillChanged)
}

func TestPaymentReceiptDuplicateNeedsSupport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	req := &PaymentReceiptRequest{COO: 7, Method: "R", Value: decimal.NewFromInt(30), Lines: []string{"VIA CLIENTE"}}
	_, err := f.till.PaymentReceipt(ctx, "caixa-01", req)
	require.NoError(t, err)
	assert.Contains(t, f.output.String(), "RECIBO DE PAGAMENTO coo=7")

	req.Duplicate = true
	_, err = f.till.PaymentReceipt(ctx, "caixa-01", req)
	assert.ErrorIs(t, err, driver.ErrNotSupported)
}

func TestPrintService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	_, err := f.print.PrintLines(ctx, "caixa-01", &PrintLinesRequest{
		Lines: []PrintLine{{Text: "TITULO", Center: true, Bold: true}, {Text: "corpo"}},
		Cut:   true,
	})
	require.NoError(t, err)
	out := f.output.String()
	assert.Contains(t, out, "   TITULO   ")
	assert.Contains(t, out, "corpo\n")
	assert.Contains(t, out, "paper cut")

	_, err = f.print.PrintLines(ctx, "caixa-01", &PrintLinesRequest{})
	assert.ErrorIs(t, err, driver.ErrInvalidArgument)

	_, err = f.print.PrintQRCode(ctx, "caixa-01", "https://example.com", true)
	require.NoError(t, err)
	assert.Contains(t, f.output.String(), "QRCODE https://example.com", "printers without graphics fall back to native qr")

	_, err = f.print.OpenDrawer(ctx, "caixa-01")
	require.NoError(t, err)
	open, err := f.print.DrawerStatus(ctx, "caixa-01")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestOperationTimestampsFollowClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	_, err := f.coupons.Open(ctx, "caixa-01")
	require.NoError(t, err)
	op := f.journal.entries()[0]
	assert.Equal(t, f.clock.Now(), op.StartedAt)
	assert.Equal(t, 0, *op.DurationMs)
	assert.WithinDuration(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local), *op.CompletedAt, 0)
}
