// internal/driver/daruma/fs345.go
package daruma

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/charset"
	"ecf-service/internal/protocol"
	"ecf-service/internal/protocol/escbyte"
	"ecf-service/pkg/driver"
)

// FS345 command bytes.
const (
	cmdOpenCoupon       byte = 200
	cmdIdentifyCustomer byte = 201
	cmdCancelItem       byte = 205
	cmdCancelCoupon     byte = 206
	cmdReadX            byte = escbyte.OpReadX
	cmdReduceZ          byte = 208
	cmdReadMemory       byte = 209
	cmdGerencialOpen    byte = 211
	cmdGerencialClose   byte = 212
	cmdGerencialPrint   byte = 213
	cmdOpenVoucher      byte = 217
	cmdOpenBoundReceipt byte = 219
	cmdAddItem          byte = 223
	cmdGetTaxCodes      byte = 231
	cmdGetIdentifier    byte = 236
	cmdGetMessages      byte = 238
	cmdGetFiscalRegs    byte = 240
	cmdTotalize         byte = 241
	cmdPayment          byte = 242
	cmdCloseCoupon      byte = 243
	cmdGetRegisters     byte = 244
	cmdGetDates         byte = 250
)

const (
	cashInType  = 'B'
	cashOutType = 'A'

	// The bound receipt and gerencial report share their print and close
	// commands.
	cmdBoundReceiptPrint = cmdGerencialPrint
	cmdBoundReceiptClose = cmdGerencialClose
)

var fs345Units = map[driver.UnitType]string{
	driver.UnitWeight: "Kg",
	driver.UnitMeters: "m ",
	driver.UnitLiters: "Lt",
	driver.UnitEmpty:  "  ",
}

// Option configures a Daruma driver.
type Option func(*options)

type options struct {
	clock    clockwork.Clock
	attempts int
	delay    time.Duration
}

// WithClock sets the clock used for Z reduction timestamps and busy waits.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithBusyRetry overrides the FS2100 busy retry policy.
func WithBusyRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.attempts = attempts
		o.delay = delay
	}
}

// FS345 drives the Daruma FS345 over the ESC framed protocol.
type FS345 struct {
	engine   *escbyte.Engine
	logger   *zap.Logger
	clock    clockwork.Clock
	model    string
	customer driver.Customer
}

// NewFS345 creates a driver over port.
func NewFS345(port *protocol.Port, logger *zap.Logger, opts ...Option) *FS345 {
	o := options{clock: clockwork.NewRealClock(), attempts: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return newFS345(port, logger, "FS345", o)
}

func newFS345(port *protocol.Port, logger *zap.Logger, model string, o options) *FS345 {
	logger = logger.With(zap.String("driver", "daruma"), zap.String("model", model))
	engineOpts := []escbyte.Option{escbyte.WithClock(o.clock)}
	if o.attempts > 1 {
		engineOpts = append(engineOpts, escbyte.WithBusyRetry(o.attempts, o.delay))
	}
	return &FS345{
		engine: escbyte.NewEngine(port, escbyte.Errors, logger, engineOpts...),
		logger: logger,
		clock:  o.clock,
		model:  model,
	}
}

func (d *FS345) Info() driver.Info {
	return driver.Info{Brand: "daruma", Model: d.model, Fiscal: true, Charset: charset.ABICOMPName}
}

func (d *FS345) Close() error { return nil }

func (d *FS345) Setup(ctx context.Context) error { return nil }

func (d *FS345) IdentifyCustomerAtEnd() bool { return true }

func (d *FS345) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		driver.CapItemCode:           driver.LengthCapability(0, 13),
		driver.CapItemID:             driver.RangeCapability(decimal.Zero, 3, 0),
		driver.CapItemsQuantity:      driver.RangeCapability(decimal.NewFromInt(1), 5, 3),
		driver.CapItemPrice:          driver.RangeCapability(decimal.Zero, 7, 3),
		driver.CapItemDescription:    driver.LengthCapability(0, 173),
		driver.CapPaymentValue:       driver.RangeCapability(decimal.Zero, 10, 2),
		driver.CapPromotionalMessage: driver.LengthCapability(0, 384),
		driver.CapPaymentDescription: driver.LengthCapability(0, 48),
		driver.CapCustomerName:       driver.LengthCapability(0, 42),
		driver.CapCustomerID:         driver.LengthCapability(0, 42),
		driver.CapCustomerAddress:    driver.LengthCapability(0, 42),
		driver.CapRemoveCash:         driver.RangeCapability(decimal.NewFromInt(1), 10, 2),
		driver.CapAddCash:            driver.RangeCapability(decimal.NewFromInt(1), 10, 2),
	}
}

// send runs a basic command and returns the reply body.
func (d *FS345) send(ctx context.Context, op byte, payload []byte) ([]byte, error) {
	reply, err := d.engine.Send(ctx, protocol.Command{Op: op, Payload: payload})
	if err != nil {
		return nil, err
	}
	return reply.Field(0), nil
}

func (d *FS345) sendString(ctx context.Context, op byte, payload string) ([]byte, error) {
	return d.send(ctx, op, []byte(payload))
}

func (d *FS345) encode(text string) []byte {
	return charset.MustEncode(charset.ABICOMPName, text)
}

func (d *FS345) decode(b []byte) string {
	s, err := charset.Decode(charset.ABICOMPName, b)
	if err != nil {
		return string(b)
	}
	return s
}

// Status

// status reads the raw status digits. Each position after the leading ':' is
// a hex digit holding four flags.
func (d *FS345) status(ctx context.Context) (deviceStatus, error) {
	raw, err := d.engine.Status(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) < 7 {
		return nil, fmt.Errorf("%w: status reply %q too short", driver.ErrMalformedFrame, raw)
	}
	return deviceStatus(raw), nil
}

type deviceStatus []byte

func (s deviceStatus) bit(pos, bit int) bool {
	c := s[pos]
	var v byte
	switch {
	case c >= '0' && c <= '9':
		v = c - '0'
	case c >= 'a' && c <= 'f':
		v = c - 'a' + 10
	case c >= 'A' && c <= 'F':
		v = c - 'A' + 10
	}
	return (v>>bit)&1 == 1
}

func (s deviceStatus) pendingReduce() bool { return s.bit(2, 1) }
func (s deviceStatus) couponOpen() bool    { return s.bit(4, 2) }

// checkStatus reads the status and fails on any condition that blocks a
// fiscal command.
func (d *FS345) checkStatus(ctx context.Context) (deviceStatus, error) {
	st, err := d.status(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.verify(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (d *FS345) verify(st deviceStatus) error {
	switch {
	case st.pendingReduce():
		return driver.ErrPendingReduceZ
	case st.bit(1, 2):
		return fmt.Errorf("%w: mechanical failure", driver.ErrHardwareFailure)
	case !st.bit(1, 1):
		return fmt.Errorf("%w: not properly authenticated", driver.ErrAuthentication)
	case st.bit(1, 0):
		return driver.ErrOutOfPaper
	case st.bit(2, 3):
		return driver.ErrPrinterOffline
	}
	if st.bit(2, 0) {
		d.logger.Info("Almost out of paper")
	}
	if st.bit(6, 1) {
		return driver.ErrReduceZ
	}
	return nil
}

func (d *FS345) checkCouponOpen(ctx context.Context) error {
	st, err := d.checkStatus(ctx)
	if err != nil {
		return err
	}
	if !st.couponOpen() {
		return driver.ErrCouponNotOpen
	}
	return nil
}

// Coupon

func (d *FS345) CouponIdentifyCustomer(ctx context.Context, customer driver.Customer) error {
	d.customer = customer
	return nil
}

func (d *FS345) HasOpenCoupon(ctx context.Context) (bool, error) {
	st, err := d.status(ctx)
	if err != nil {
		return false, err
	}
	return st.couponOpen(), nil
}

func (d *FS345) CouponOpen(ctx context.Context) error {
	st, err := d.checkStatus(ctx)
	if err != nil {
		return err
	}
	if st.couponOpen() {
		return driver.ErrCouponAlreadyOpen
	}
	_, err = d.send(ctx, cmdOpenCoupon, nil)
	return err
}

func (d *FS345) unit(item driver.ItemRequest, table map[driver.UnitType]string) string {
	if item.Unit == driver.UnitCustom {
		return item.UnitDesc
	}
	return table[item.Unit]
}

func (d *FS345) CouponAddItem(ctx context.Context, item driver.ItemRequest) (int, error) {
	mode, value := 0, item.Discount
	if !item.Surcharge.IsZero() {
		mode, value = 1, item.Surcharge
	}
	code := item.Code
	if code == "" {
		code = "-"
	}
	payload := []byte(fmt.Sprintf("%2s%13s%d%04d%010d%08d%s",
		item.TaxCode, truncate(code, 13), mode,
		scaled(value, 2), scaled(item.Price, 3), scaled(item.Quantity, 3),
		d.unit(item, fs345Units)))
	payload = append(payload, d.encode(truncate(item.Description, 174))...)
	payload = append(payload, escbyte.FF)

	body, err := d.send(ctx, cmdAddItem, payload)
	if err != nil {
		return 0, err
	}
	id, err := atoi(body, 1, 4)
	if err != nil {
		return 0, driver.Committed(err)
	}
	return id, nil
}

func (d *FS345) CouponCancelItem(ctx context.Context, itemID int) error {
	_, err := d.sendString(ctx, cmdCancelItem, fmt.Sprintf("%03d", itemID))
	return err
}

func (d *FS345) CouponCancel(ctx context.Context) error {
	// With a Z pending the coupon is cancelled without the full status check
	// so a forgotten coupon does not block the reduction.
	st, err := d.status(ctx)
	if err != nil {
		return err
	}
	if !st.pendingReduce() {
		if err := d.verify(st); err != nil {
			return err
		}
	}
	_, err = d.send(ctx, cmdCancelCoupon, nil)
	return err
}

func (d *FS345) CancelLastCoupon(ctx context.Context) error {
	_, err := d.send(ctx, cmdCancelCoupon, nil)
	return err
}

func (d *FS345) CouponTotalize(ctx context.Context, discount, surcharge decimal.Decimal, tax driver.TaxType) (decimal.Decimal, error) {
	if err := d.checkCouponOpen(ctx); err != nil {
		return decimal.Zero, err
	}
	mode, value := 1, discount
	if !surcharge.IsZero() {
		if tax != driver.TaxICMS {
			return decimal.Zero, fmt.Errorf("%w: a surcharge on this printer needs the ICMS tax type", driver.ErrInvalidArgument)
		}
		mode, value = 3, surcharge
	}
	body, err := d.sendString(ctx, cmdTotalize, fmt.Sprintf("%d%012d", mode, scaled(value, 2)))
	if err != nil {
		return decimal.Zero, err
	}
	total, err := cents(body)
	if err != nil {
		return decimal.Zero, driver.Committed(err)
	}
	return total, nil
}

func (d *FS345) CouponAddPayment(ctx context.Context, method string, value decimal.Decimal, description string) (decimal.Decimal, error) {
	if err := d.checkCouponOpen(ctx); err != nil {
		return decimal.Zero, err
	}
	return d.addPayment(ctx, method, value, description)
}

func (d *FS345) addPayment(ctx context.Context, method string, value decimal.Decimal, description string) (decimal.Decimal, error) {
	if len(method) != 1 {
		return decimal.Zero, fmt.Errorf("%w: payment method %q is not a single letter", driver.ErrInvalidArgument, method)
	}
	payload := []byte(fmt.Sprintf("%c%012d", method[0], scaled(value, 2)))
	payload = append(payload, d.encode(truncate(description, 48))...)
	payload = append(payload, escbyte.FF)

	body, err := d.send(ctx, cmdPayment, payload)
	if err != nil {
		return decimal.Zero, err
	}
	// Some firmware prefixes the remaining value with an 8 byte block
	// starting with 'N'.
	if len(body) > 8 && body[0] == 'N' {
		body = body[8:]
	}
	remaining, err := cents(body)
	if err != nil {
		return decimal.Zero, driver.Committed(err)
	}
	return remaining, nil
}

func (d *FS345) CouponClose(ctx context.Context, message string) (int, error) {
	if err := d.checkCouponOpen(ctx); err != nil {
		return 0, err
	}
	if c := d.customer; c.Name != "" || c.Address != "" || c.Document != "" {
		name := orDefault(c.Name, "No client")
		address := orDefault(c.Address, "No address")
		document := orDefault(c.Document, "No document")
		payload := d.encode(fmt.Sprintf("%-84s%-84s%-84s", name, address, document))
		if _, err := d.send(ctx, cmdIdentifyCustomer, payload); err != nil {
			return 0, err
		}
	}
	payload := append(d.encode(message), escbyte.FF)
	if _, err := d.send(ctx, cmdCloseCoupon, payload); err != nil {
		return 0, fmt.Errorf("%w: %w", driver.ErrCloseCoupon, err)
	}
	d.customer = driver.Customer{}

	regs, err := d.registers(ctx)
	if err != nil {
		return 0, driver.Committed(err)
	}
	return regs.coo, nil
}

// Till

func (d *FS345) Summarize(ctx context.Context) error {
	_, err := d.send(ctx, cmdReadX, nil)
	return err
}

func (d *FS345) OpenTill(ctx context.Context) error {
	return d.Summarize(ctx)
}

func (d *FS345) CloseTill(ctx context.Context, previousDay bool) error {
	st, err := d.status(ctx)
	if err != nil {
		return err
	}
	if st.couponOpen() {
		if _, err := d.send(ctx, cmdCancelCoupon, nil); err != nil {
			return err
		}
	}
	_, err = d.sendString(ctx, cmdReduceZ, d.clock.Now().Format("020106150405"))
	return err
}

func (d *FS345) voucher(ctx context.Context, kind byte, value decimal.Decimal) error {
	payload := append([]byte(fmt.Sprintf("%c1%s%012d", kind, strings.Repeat("0", 12), scaled(value, 2))), escbyte.FF)
	_, err := d.send(ctx, cmdOpenVoucher, payload)
	return err
}

func (d *FS345) TillAddCash(ctx context.Context, value decimal.Decimal) error {
	if err := d.voucher(ctx, cashInType, value); err != nil {
		return err
	}
	_, err := d.addPayment(ctx, string(rune(cashOutType)), value, "")
	return err
}

func (d *FS345) TillRemoveCash(ctx context.Context, value decimal.Decimal) error {
	return d.voucher(ctx, cashOutType, value)
}

func (d *FS345) TillReadMemory(ctx context.Context, start, end time.Time) error {
	_, err := d.sendString(ctx, cmdReadMemory, "x"+start.Format("020106")+end.Format("020106"))
	return err
}

// maxMemoryLines bounds a fiscal memory dump that never sends its end
// marker.
const maxMemoryLines = 100000

// TillReadMemoryToSerial sends the fiscal memory between two dates down the
// line instead of printing it. The dump ends with a line whose last byte is
// FF.
func (d *FS345) TillReadMemoryToSerial(ctx context.Context, start, end time.Time) ([]string, error) {
	if _, err := d.sendString(ctx, cmdReadMemory, "s"+start.Format("020106")+end.Format("020106")); err != nil {
		return nil, err
	}
	var lines []string
	for i := 0; i < maxMemoryLines; i++ {
		line, err := d.engine.ReadLine(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading fiscal memory line %d: %w", i+1, err)
		}
		if n := len(line); n > 0 && line[n-1] == escbyte.FF {
			return lines, nil
		}
		text, err := charset.Decode(charset.CP860, line)
		if err != nil {
			return nil, err
		}
		lines = append(lines, text)
	}
	return nil, fmt.Errorf("%w: fiscal memory dump longer than %d lines", driver.ErrMalformedFrame, maxMemoryLines)
}

func (d *FS345) TillReadMemoryByReductions(ctx context.Context, start, end int) error {
	_, err := d.sendString(ctx, cmdReadMemory, fmt.Sprintf("x00%04d00%04d", start, end))
	return err
}

func (d *FS345) HasPendingReduce(ctx context.Context) (bool, error) {
	st, err := d.status(ctx)
	if err != nil {
		return false, err
	}
	return st.pendingReduce(), nil
}

// Constants and counters

type taxSlot struct {
	letter byte
	index  int
	rate   string
}

// taxSlots parses the 14 five byte slots of command 231: a register letter
// followed by the rate digits, "////" for an empty slot.
func (d *FS345) taxSlots(ctx context.Context) ([]taxSlot, error) {
	body, err := d.send(ctx, cmdGetTaxCodes, nil)
	if err != nil {
		return nil, err
	}
	if len(body) < 1+14*5 {
		return nil, fmt.Errorf("%w: tax codes reply has %d bytes", driver.ErrMalformedFrame, len(body))
	}
	codes := body[1:]
	var slots []taxSlot
	for i := 0; i < 14; i++ {
		rate := string(codes[i*5+1 : i*5+5])
		if rate == "////" {
			continue
		}
		slots = append(slots, taxSlot{letter: codes[i*5], index: i, rate: strings.ReplaceAll(rate, ".", "")})
	}
	return slots, nil
}

func slotType(letter byte) (driver.TaxType, error) {
	switch {
	case letter >= 'A' && letter <= 'P':
		return driver.TaxCustom, nil
	case letter >= 'a' && letter <= 'p':
		return driver.TaxService, nil
	}
	return "", fmt.Errorf("%w: unknown tax register %q", driver.ErrMalformedFrame, letter)
}

func (d *FS345) TaxConstants(ctx context.Context) ([]driver.TaxConstant, error) {
	return d.taxConstants(ctx, func(s taxSlot) string {
		return "T" + strings.ToLower(string(s.letter))
	}, []string{"Fb", "Ib", "Nb"})
}

func (d *FS345) taxConstants(ctx context.Context, code func(taxSlot) string, extra []string) ([]driver.TaxConstant, error) {
	slots, err := d.taxSlots(ctx)
	if err != nil {
		return nil, err
	}
	constants := make([]driver.TaxConstant, 0, len(slots)+3)
	for _, s := range slots {
		typ, err := slotType(s.letter)
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(s.rate)
		if err != nil {
			return nil, fmt.Errorf("%w: tax rate %q", driver.ErrMalformedFrame, s.rate)
		}
		rate = rate.Shift(-2)
		constants = append(constants, driver.TaxConstant{Type: typ, Code: code(s), Value: &rate})
	}
	constants = append(constants,
		driver.TaxConstant{Type: driver.TaxSubstitution, Code: extra[0]},
		driver.TaxConstant{Type: driver.TaxExemption, Code: extra[1]},
		driver.TaxConstant{Type: driver.TaxNone, Code: extra[2]},
	)
	return constants, nil
}

// PaymentConstants reads the 16 payment method slots of command 238. Slots
// are 18 bytes starting at offset 708; an unused slot has 0xFF at byte 2.
func (d *FS345) PaymentConstants(ctx context.Context) ([]driver.PaymentConstant, error) {
	body, err := d.send(ctx, cmdGetMessages, nil)
	if err != nil {
		return nil, err
	}
	const offset, size = 708, 18
	if len(body) < offset+16*size {
		return nil, fmt.Errorf("%w: messages reply has %d bytes", driver.ErrMalformedFrame, len(body))
	}
	raw := body[offset:]
	var methods []driver.PaymentConstant
	for i := 0; i < 16; i++ {
		slot := raw[i*size : (i+1)*size]
		if slot[2] == escbyte.FF {
			continue
		}
		methods = append(methods, driver.PaymentConstant{
			Code:        string(rune('A' + i)),
			Description: strings.TrimSpace(d.decode(slot[1:])),
		})
	}
	return methods, nil
}

func (d *FS345) Serial(ctx context.Context) (string, error) {
	body, err := d.send(ctx, cmdGetIdentifier, nil)
	if err != nil {
		return "", err
	}
	return slice(body, 1, 9)
}

type registers struct {
	couponStart, coo, gnf, cro, crz int
}

// registers parses command 244. Offsets are relative to the body after its
// two byte echo of the command.
func (d *FS345) registers(ctx context.Context) (registers, error) {
	body, err := d.send(ctx, cmdGetRegisters, nil)
	if err != nil {
		return registers{}, err
	}
	if len(body) < 2 {
		return registers{}, fmt.Errorf("%w: registers reply too short", driver.ErrMalformedFrame)
	}
	b := body[2:]
	var r registers
	for _, f := range []struct {
		dst      *int
		from, to int
	}{
		{&r.couponStart, 0, 6},
		{&r.coo, 6, 12},
		{&r.gnf, 13, 18},
		{&r.cro, 34, 38},
		{&r.crz, 38, 42},
	} {
		if *f.dst, err = atoi(b, f.from, f.to); err != nil {
			return registers{}, err
		}
	}
	return r, nil
}

// Counters reports the COO as the CCF; the FS345 has no separate CCF.
func (d *FS345) Counters(ctx context.Context) (driver.Counters, error) {
	r, err := d.registers(ctx)
	if err != nil {
		return driver.Counters{}, err
	}
	return driver.Counters{COO: r.coo, CCF: r.coo, GNF: r.gnf, CRZ: r.crz}, nil
}

// Sintegra

func (d *FS345) Sintegra(ctx context.Context) (*driver.SintegraData, error) {
	regs, err := d.registers(ctx)
	if err != nil {
		return nil, err
	}
	body, err := d.send(ctx, cmdGetFiscalRegs, nil)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: fiscal registers reply too short", driver.ErrMalformedFrame)
	}
	fiscal := body[2:]
	slots, err := d.taxSlots(ctx)
	if err != nil {
		return nil, err
	}

	var taxes []driver.SintegraTax
	for _, s := range slots {
		typ := "ISS"
		if s.letter >= 'A' && s.letter <= 'P' {
			typ = "ICMS"
		}
		sold, err := centsAt(fiscal, 88+s.index*14, 102+s.index*14)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, driver.SintegraTax{Code: s.rate, Value: sold, Type: typ})
	}
	for _, t := range []struct {
		code     string
		from, to int
	}{
		{"DESC", 19, 32},
		{"CANC", 33, 46},
		{"I", 47, 60},
		{"N", 61, 74},
		{"F", 75, 88},
	} {
		v, err := centsAt(fiscal, t.from, t.to)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, driver.SintegraTax{Code: t.code, Value: v, Type: "ICMS"})
	}

	periodTotal := decimal.Zero
	for _, t := range taxes {
		periodTotal = periodTotal.Add(t.Value)
	}
	oldTotal, err := centsAt(fiscal, 0, 18)
	if err != nil {
		return nil, err
	}

	dates, err := d.send(ctx, cmdGetDates, nil)
	if err != nil {
		return nil, err
	}
	opening, err := d.openingDate(dates)
	if err != nil {
		return nil, err
	}

	identifier, err := d.send(ctx, cmdGetIdentifier, nil)
	if err != nil {
		return nil, err
	}
	serial, err := slice(identifier, 1, 9)
	if err != nil {
		return nil, err
	}
	serialID, err := atoi(identifier, 13, 17)
	if err != nil {
		return nil, err
	}

	return &driver.SintegraData{
		OpeningDate: opening,
		Serial:      serial,
		SerialID:    serialID,
		CouponStart: regs.couponStart,
		CouponEnd:   regs.coo,
		CRO:         regs.cro,
		CRZ:         regs.crz,
		COO:         regs.coo,
		PeriodTotal: periodTotal,
		Total:       periodTotal.Add(oldTotal),
		Taxes:       taxes,
	}, nil
}

func (d *FS345) openingDate(dates []byte) (time.Time, error) {
	s, err := slice(dates, 0, 6)
	if err != nil {
		return time.Time{}, err
	}
	if s == "000000" {
		now := d.clock.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("020106", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: opening date %q", driver.ErrMalformedFrame, s)
	}
	return t, nil
}

// Reports

func (d *FS345) GerencialReportOpen(ctx context.Context) error {
	_, err := d.send(ctx, cmdGerencialOpen, nil)
	return err
}

func (d *FS345) printLines(ctx context.Context, op byte, text string) error {
	for _, line := range strings.Split(text, "\n") {
		if _, err := d.send(ctx, op, append(d.encode(line), escbyte.FF)); err != nil {
			return err
		}
	}
	return nil
}

func (d *FS345) GerencialReportPrint(ctx context.Context, text string) error {
	return d.printLines(ctx, cmdGerencialPrint, text)
}

func (d *FS345) GerencialReportClose(ctx context.Context) error {
	_, err := d.send(ctx, cmdGerencialClose, nil)
	return err
}

func (d *FS345) PaymentReceiptOpen(ctx context.Context, identifier string, coo int, method string, value decimal.Decimal) error {
	if len(identifier) != 1 || len(method) != 1 {
		return fmt.Errorf("%w: receipt identifier and method must be single letters", driver.ErrInvalidArgument)
	}
	_, err := d.sendString(ctx, cmdOpenBoundReceipt,
		fmt.Sprintf("%c%c%06d%012d", identifier[0], method[0], coo, scaled(value, 2)))
	return err
}

func (d *FS345) PaymentReceiptPrint(ctx context.Context, text string) error {
	return d.printLines(ctx, cmdBoundReceiptPrint, text)
}

func (d *FS345) PaymentReceiptClose(ctx context.Context) error {
	_, err := d.send(ctx, cmdBoundReceiptClose, nil)
	return err
}
