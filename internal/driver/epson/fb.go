// internal/driver/epson/fb.go
package epson

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/charset"
	"ecf-service/internal/protocol"
	"ecf-service/internal/protocol/stxetx"
	"ecf-service/pkg/driver"
)

// FB command words.
const (
	cmdStatus       = "0001"
	cmdDetails      = "0402"
	cmdTaxes        = "0542"
	cmdPayment      = "050D"
	cmdReduceZ      = "0801"
	cmdReadX        = "0802"
	cmdOpenDay      = "0805"
	cmdCounters     = "0907"
	cmdOpenCoupon   = "0A01"
	cmdAddItem      = "0A02"
	cmdTotals       = "0A03"
	cmdPay          = "0A05"
	cmdCloseCoupon  = "0A06"
	cmdAdjustItem   = "0A07"
	cmdCancelCoupon = "0A18"
	cmdCashVoucher  = "0E01"

	extCancelCoupon = "0008"
	extDiscount     = "0010"
	extMarkup       = "0011"
)

// Fiscal status bits of an open document.
const (
	fiscalCouponOpen    = 0x0001
	nonFiscalCouponOpen = 0x1000
)

// Cash voucher kinds.
const (
	voucherSupply  = "1"
	voucherRemoval = "2"
)

var units = map[driver.UnitType]string{
	driver.UnitEmpty:  "UN",
	driver.UnitWeight: "KG",
	driver.UnitMeters: "M",
	driver.UnitLiters: "LT",
}

// FBII drives the Epson FB II fiscal printer over the STX/ETX protocol.
type FBII struct {
	engine   *stxetx.Engine
	logger   *zap.Logger
	model    string
	customer driver.Customer
	// FB II does not report item numbers; they are counted from the open.
	items int
}

// NewFBII creates a driver over port.
func NewFBII(port *protocol.Port, logger *zap.Logger) *FBII {
	return newFB(port, logger, "FBII")
}

func newFB(port *protocol.Port, logger *zap.Logger, model string) *FBII {
	logger = logger.With(zap.String("driver", "epson"), zap.String("model", model))
	return &FBII{
		engine: stxetx.NewEngine(port, stxetx.Errors, logger),
		logger: logger,
		model:  model,
	}
}

func (d *FBII) Info() driver.Info {
	return driver.Info{Brand: "epson", Model: d.model, Fiscal: true, Charset: charset.ASCII}
}

func (d *FBII) Close() error { return nil }

func (d *FBII) Setup(ctx context.Context) error { return nil }

func (d *FBII) IdentifyCustomerAtEnd() bool { return true }

func (d *FBII) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		driver.CapItemCode:        driver.LengthCapability(0, 14),
		driver.CapItemDescription: driver.LengthCapability(0, 233),
		driver.CapCustomerID:      driver.LengthCapability(0, 28),
		driver.CapCustomerName:    driver.LengthCapability(0, 30),
		driver.CapCustomerAddress: driver.LengthCapability(0, 79),
	}
}

func (d *FBII) send(ctx context.Context, name, ext string, args ...string) (*protocol.Reply, error) {
	fields := make([][]byte, len(args))
	for i, a := range args {
		fields[i] = charset.MustEncode(charset.ASCII, a)
	}
	return d.engine.Send(ctx, protocol.Command{Name: name, Ext: ext, Args: fields})
}

func cents(v decimal.Decimal) string {
	return strconv.FormatInt(v.Shift(2).IntPart(), 10)
}

func parseCents(b []byte) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(string(b)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not an amount", driver.ErrMalformedFrame, b)
	}
	return v.Shift(-2), nil
}

func intField(reply *protocol.Reply, i int) (int, error) {
	f := reply.Field(i)
	n, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil {
		return 0, fmt.Errorf("%w: field %d %q is not a number", driver.ErrMalformedFrame, i, f)
	}
	return n, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Coupon

func (d *FBII) CouponIdentifyCustomer(ctx context.Context, customer driver.Customer) error {
	d.customer = customer
	return nil
}

func (d *FBII) HasOpenCoupon(ctx context.Context) (bool, error) {
	reply, err := d.send(ctx, cmdStatus, "")
	if err != nil {
		return false, err
	}
	return reply.FiscalStatus&(fiscalCouponOpen|nonFiscalCouponOpen) != 0, nil
}

func (d *FBII) CouponOpen(ctx context.Context) error {
	if _, err := d.send(ctx, cmdOpenCoupon, "", "", ""); err != nil {
		return err
	}
	d.items = 0
	return nil
}

func (d *FBII) CouponAddItem(ctx context.Context, item driver.ItemRequest) (int, error) {
	unit := units[item.Unit]
	if item.Unit == driver.UnitCustom {
		unit = item.UnitDesc
	}
	if _, err := d.send(ctx, cmdAddItem, "",
		truncate(item.Code, 14),
		truncate(item.Description, 233),
		strconv.FormatInt(item.Quantity.Shift(3).IntPart(), 10),
		unit,
		cents(item.Price),
		item.TaxCode,
	); err != nil {
		return 0, err
	}
	d.items++
	return d.items, nil
}

// CouponCancelItem is not part of the FB II command set this driver
// speaks.
func (d *FBII) CouponCancelItem(ctx context.Context, itemID int) error {
	return fmt.Errorf("%w: item cancellation on %s", driver.ErrNotSupported, d.model)
}

func (d *FBII) CouponCancel(ctx context.Context) error {
	_, err := d.send(ctx, cmdCancelCoupon, extCancelCoupon, "1")
	return err
}

func (d *FBII) CancelLastCoupon(ctx context.Context) error {
	return d.CouponCancel(ctx)
}

// CouponTotalize reads the coupon total. Subtotal adjustments are not
// available; item adjustments exist on FB III only.
func (d *FBII) CouponTotalize(ctx context.Context, discount, surcharge decimal.Decimal, tax driver.TaxType) (decimal.Decimal, error) {
	if !discount.IsZero() || !surcharge.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: subtotal discount or surcharge on %s", driver.ErrNotSupported, d.model)
	}
	reply, err := d.send(ctx, cmdTotals, "")
	if err != nil {
		return decimal.Zero, err
	}
	return parseCents(reply.Field(0))
}

// CouponAddPayment returns the amount still due as reported by the
// printer.
func (d *FBII) CouponAddPayment(ctx context.Context, method string, value decimal.Decimal, description string) (decimal.Decimal, error) {
	reply, err := d.send(ctx, cmdPay, "", method, cents(value), truncate(description, 80))
	if err != nil {
		return decimal.Zero, err
	}
	due, err := parseCents(reply.Field(0))
	if err != nil {
		return decimal.Zero, driver.Committed(err)
	}
	if due.IsNegative() {
		return decimal.Zero, nil
	}
	return due, nil
}

func (d *FBII) CouponClose(ctx context.Context, message string) (int, error) {
	c := d.customer
	if _, err := d.send(ctx, cmdCloseCoupon, "",
		message,
		truncate(c.Name, 30),
		truncate(c.Address, 79),
		truncate(c.Document, 28),
	); err != nil {
		return 0, fmt.Errorf("%w: %w", driver.ErrCloseCoupon, err)
	}
	d.customer = driver.Customer{}
	counters, err := d.Counters(ctx)
	if err != nil {
		return 0, driver.Committed(err)
	}
	return counters.COO, nil
}

// Till

func (d *FBII) Summarize(ctx context.Context) error {
	_, err := d.send(ctx, cmdReadX, "")
	return err
}

func (d *FBII) OpenTill(ctx context.Context) error {
	_, err := d.send(ctx, cmdOpenDay, "")
	return err
}

func (d *FBII) CloseTill(ctx context.Context, previousDay bool) error {
	open, err := d.HasOpenCoupon(ctx)
	if err != nil {
		return err
	}
	if open {
		if err := d.CouponCancel(ctx); err != nil {
			return err
		}
	}
	_, err = d.send(ctx, cmdReduceZ, "")
	return err
}

func (d *FBII) TillAddCash(ctx context.Context, value decimal.Decimal) error {
	_, err := d.send(ctx, cmdCashVoucher, "", voucherSupply, cents(value))
	return err
}

func (d *FBII) TillRemoveCash(ctx context.Context, value decimal.Decimal) error {
	_, err := d.send(ctx, cmdCashVoucher, "", voucherRemoval, cents(value))
	return err
}

func (d *FBII) TillReadMemory(ctx context.Context, start, end time.Time) error {
	return fmt.Errorf("%w: fiscal memory reading on %s", driver.ErrNotSupported, d.model)
}

func (d *FBII) TillReadMemoryByReductions(ctx context.Context, start, end int) error {
	return fmt.Errorf("%w: fiscal memory reading on %s", driver.ErrNotSupported, d.model)
}

// HasPendingReduce always reports false; the printer refuses sales itself
// when a reduction is due.
func (d *FBII) HasPendingReduce(ctx context.Context) (bool, error) {
	return false, nil
}

// Constants

// TaxConstants reads the rate table as triples of name, rate in hundredths
// and a flag. Names starting with T are ICMS rates, S are service rates.
func (d *FBII) TaxConstants(ctx context.Context) ([]driver.TaxConstant, error) {
	reply, err := d.send(ctx, cmdTaxes, "")
	if err != nil {
		return nil, err
	}
	var constants []driver.TaxConstant
	for i := 0; i+1 < len(reply.Fields); i += 3 {
		name := string(reply.Fields[i])
		var typ driver.TaxType
		switch {
		case strings.HasPrefix(name, "T"):
			typ = driver.TaxCustom
		case strings.HasPrefix(name, "S"):
			typ = driver.TaxService
		default:
			return nil, fmt.Errorf("%w: unknown tax register %q", driver.ErrMalformedFrame, name)
		}
		value, err := parseCents(reply.Fields[i+1])
		if err != nil {
			return nil, err
		}
		constants = append(constants, driver.TaxConstant{Type: typ, Code: name, Value: &value})
	}
	return append(constants,
		driver.TaxConstant{Type: driver.TaxSubstitution, Code: "F"},
		driver.TaxConstant{Type: driver.TaxExemption, Code: "I"},
		driver.TaxConstant{Type: driver.TaxNone, Code: "N"},
	), nil
}

// PaymentConstants walks the payment table from slot 1 until the printer
// answers end of list.
func (d *FBII) PaymentConstants(ctx context.Context) ([]driver.PaymentConstant, error) {
	var methods []driver.PaymentConstant
	for i := 1; i <= 20; i++ {
		code := strconv.Itoa(i)
		reply, err := d.send(ctx, cmdPayment, "", code)
		if stxetx.IsEndOfList(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		methods = append(methods, driver.PaymentConstant{
			Code:        code,
			Description: strings.TrimSpace(string(reply.Field(0))),
		})
	}
	return methods, nil
}

func (d *FBII) Serial(ctx context.Context) (string, error) {
	reply, err := d.send(ctx, cmdDetails, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(reply.Field(0))), nil
}

// Counters reads COO, CCF, CRZ and GNF from the counters reply, fields 0
// to 3 in that order.
func (d *FBII) Counters(ctx context.Context) (driver.Counters, error) {
	reply, err := d.send(ctx, cmdCounters, "")
	if err != nil {
		return driver.Counters{}, err
	}
	var c driver.Counters
	for i, dst := range []*int{&c.COO, &c.CCF, &c.CRZ, &c.GNF} {
		if *dst, err = intField(reply, i); err != nil {
			return driver.Counters{}, err
		}
	}
	return c, nil
}

// FBIII adds per item discount and markup.
type FBIII struct {
	*FBII
}

// NewFBIII creates a driver over port.
func NewFBIII(port *protocol.Port, logger *zap.Logger) *FBIII {
	return &FBIII{FBII: newFB(port, logger, "FBIII")}
}

func (d *FBIII) CouponAddItem(ctx context.Context, item driver.ItemRequest) (int, error) {
	id, err := d.FBII.CouponAddItem(ctx, item)
	if err != nil {
		return 0, err
	}
	switch {
	case !item.Discount.IsZero():
		err = d.ApplyDiscount(ctx, id, item.Discount)
	case !item.Surcharge.IsZero():
		err = d.ApplyMarkup(ctx, id, item.Surcharge)
	}
	return id, driver.Committed(err)
}

// ApplyDiscount discounts value from item id.
func (d *FBIII) ApplyDiscount(ctx context.Context, id int, value decimal.Decimal) error {
	_, err := d.send(ctx, cmdAdjustItem, extDiscount, strconv.Itoa(id), cents(value))
	return err
}

// ApplyMarkup adds value to item id.
func (d *FBIII) ApplyMarkup(ctx context.Context, id int, value decimal.Decimal) error {
	_, err := d.send(ctx, cmdAdjustItem, extMarkup, strconv.Itoa(id), cents(value))
	return err
}
