// internal/driver/virtual/printer.go
package virtual

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"ecf-service/pkg/driver"
)

// MaxCharacters is the simulated paper width.
const MaxCharacters = 72

var paymentMethods = []driver.PaymentConstant{
	{Code: "M", Description: "Dinheiro"},
	{Code: "C", Description: "Cheque"},
	{Code: "B", Description: "Boleto"},
	{Code: "R", Description: "Cartão Crédito"},
	{Code: "D", Description: "Cartão Débito"},
	{Code: "F", Description: "Financeira"},
	{Code: "G", Description: "Vale Compras"},
}

func rate(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

var taxConstants = []driver.TaxConstant{
	{Type: driver.TaxSubstitution, Code: "TS"},
	{Type: driver.TaxExemption, Code: "TE"},
	{Type: driver.TaxNone, Code: "TN"},
	{Type: driver.TaxCustom, Code: "T1", Value: rate(18)},
	{Type: driver.TaxCustom, Code: "T2", Value: rate(12)},
	{Type: driver.TaxCustom, Code: "T3", Value: rate(5)},
	{Type: driver.TaxService, Code: "S0", Value: rate(3)},
}

type couponItem struct {
	quantity decimal.Decimal
	price    decimal.Decimal
	adjust   decimal.Decimal
}

func (i couponItem) total() decimal.Decimal {
	return i.quantity.Mul(i.price).Add(i.adjust)
}

// Option configures a Printer.
type Option func(*Printer)

// WithOutput sends the simulated paper to w.
func WithOutput(w io.Writer) Option {
	return func(p *Printer) { p.out = w }
}

// WithStateDir persists the till state as StateFile under dir on fs.
func WithStateDir(fs afero.Fs, dir string) Option {
	return func(p *Printer) {
		p.store = stateStore{fs: fs, path: filepath.Join(dir, StateFile)}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(p *Printer) { p.clock = c }
}

// Printer simulates a fiscal printer that also accepts non fiscal output.
type Printer struct {
	device *Device
	out    io.Writer
	store  stateStore
	clock  clockwork.Clock
	logger *zap.Logger

	tillClosed  bool
	openingDate time.Time
	counters    driver.Counters
	cro         int

	customer    driver.Customer
	couponOpen  bool
	itemCount   int
	items       map[int]couponItem
	totalized   bool
	total       decimal.Decimal
	hasPayments bool
	paid        decimal.Decimal

	centered bool
}

// New creates a printer over device and loads the persisted till state.
func New(device *Device, logger *zap.Logger, opts ...Option) *Printer {
	p := &Printer{
		device:   device,
		out:      io.Discard,
		clock:    clockwork.NewRealClock(),
		logger:   logger.With(zap.String("driver", "virtual")),
		counters: driver.Counters{COO: 1, CCF: 1, GNF: 1, CRZ: 1},
		cro:      1,
	}
	for _, opt := range opts {
		opt(p)
	}
	now := p.clock.Now()
	p.openingDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	p.tillClosed = p.store.load().TillClosed
	p.resetCoupon()
	return p
}

func (p *Printer) Info() driver.Info {
	return driver.Info{Brand: "virtual", Model: "Simple", Fiscal: true, Charset: "utf-8", MaxChars: MaxCharacters}
}

func (p *Printer) Close() error { return nil }

func (p *Printer) Setup(ctx context.Context) error { return p.check() }

func (p *Printer) IdentifyCustomerAtEnd() bool { return false }

func (p *Printer) MaxCharacters() int { return MaxCharacters }

func (p *Printer) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		driver.CapItemCode:           driver.LengthCapability(0, 48),
		driver.CapItemID:             driver.BoundedCapability(decimal.Zero, decimal.NewFromInt(32767)),
		driver.CapItemsQuantity:      driver.RangeCapability(decimal.Zero, 14, 4),
		driver.CapItemPrice:          driver.RangeCapability(decimal.Zero, 14, 4),
		driver.CapItemDescription:    driver.LengthCapability(0, 200),
		driver.CapPaymentValue:       driver.RangeCapability(decimal.Zero, 14, 4),
		driver.CapPromotionalMessage: driver.LengthCapability(0, 492),
		driver.CapPaymentDescription: driver.LengthCapability(0, 80),
		driver.CapCustomerName:       driver.LengthCapability(0, 30),
		driver.CapCustomerID:         driver.LengthCapability(0, 29),
		driver.CapCustomerAddress:    driver.LengthCapability(0, 80),
	}
}

func (p *Printer) check() error {
	if p.device.IsOff() {
		return driver.ErrPrinterOffline
	}
	return nil
}

func (p *Printer) printf(format string, args ...any) error {
	if _, err := fmt.Fprintf(p.out, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (p *Printer) feedLine() error {
	return p.printf("%s\n", strings.Repeat("-", MaxCharacters))
}

func (p *Printer) saveState() error {
	return p.store.save(persistedState{TillClosed: p.tillClosed})
}

func (p *Printer) resetCoupon() {
	p.couponOpen = false
	p.itemCount = 0
	p.items = map[int]couponItem{}
	p.totalized = false
	p.total = decimal.Zero
	p.hasPayments = false
	p.paid = decimal.Zero
	p.centered = false
}

// Coupon

func (p *Printer) HasOpenCoupon(ctx context.Context) (bool, error) {
	return p.couponOpen, nil
}

func (p *Printer) CouponIdentifyCustomer(ctx context.Context, customer driver.Customer) error {
	if err := p.check(); err != nil {
		return err
	}
	p.customer = customer
	return nil
}

func (p *Printer) CouponOpen(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.couponOpen {
		return driver.ErrCouponAlreadyOpen
	}
	if err := p.printf("\nCUPOM SIMULADO  %s  COO:%d\n", p.clock.Now().Format("02/01/2006 15:04:05"), p.counters.COO); err != nil {
		return err
	}
	if err := p.printf("ITEM CODIGO DESCRICAO QTD.UN.VL. UNIT R$ ST A/T VL ITEM R$\n"); err != nil {
		return err
	}
	p.couponOpen = true
	return nil
}

func (p *Printer) requireOpen() error {
	if err := p.check(); err != nil {
		return err
	}
	if !p.couponOpen {
		return driver.ErrCouponNotOpen
	}
	return nil
}

func (p *Printer) CouponAddItem(ctx context.Context, item driver.ItemRequest) (int, error) {
	if err := p.requireOpen(); err != nil {
		return 0, err
	}
	if p.totalized {
		return 0, fmt.Errorf("%w: coupon already totalized", driver.ErrItemAddition)
	}
	p.itemCount++
	id := p.itemCount
	p.items[id] = couponItem{
		quantity: item.Quantity,
		price:    item.Price,
		adjust:   item.Surcharge.Sub(item.Discount),
	}
	if err := p.printf("%03d %s %s\n", id, item.Code, item.Description); err != nil {
		return id, driver.Committed(err)
	}
	if err := p.printf("  %s x %s %s\n", item.Quantity, item.Price.StringFixed(2), item.TaxCode); err != nil {
		return id, driver.Committed(err)
	}
	return id, nil
}

func (p *Printer) CouponCancelItem(ctx context.Context, itemID int) error {
	if err := p.requireOpen(); err != nil {
		return err
	}
	if _, ok := p.items[itemID]; !ok {
		return fmt.Errorf("%w: no item with id %d", driver.ErrCancelItem, itemID)
	}
	if p.totalized {
		return fmt.Errorf("%w: coupon already totalized", driver.ErrCancelItem)
	}
	delete(p.items, itemID)
	return p.printf("cancel_item %d\n", itemID)
}

func (p *Printer) CouponCancel(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	if err := p.feedLine(); err != nil {
		return err
	}
	if err := p.printf("    Cupom Cancelado\n"); err != nil {
		return err
	}
	p.resetCoupon()
	return p.feedLine()
}

func (p *Printer) CancelLastCoupon(ctx context.Context) error {
	return p.CouponCancel(ctx)
}

// CouponTotalize applies discount and surcharge as percentages of the item
// total, each rounded to cents.
func (p *Printer) CouponTotalize(ctx context.Context, discount, surcharge decimal.Decimal, tax driver.TaxType) (decimal.Decimal, error) {
	if err := p.requireOpen(); err != nil {
		return decimal.Zero, err
	}
	if p.totalized {
		return decimal.Zero, driver.ErrAlreadyTotalized
	}
	if len(p.items) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no items added", driver.ErrCouponTotalize)
	}
	total := decimal.Zero
	for _, item := range p.items {
		total = total.Add(item.total())
	}
	hundred := decimal.NewFromInt(100)
	total = total.
		Sub(total.Mul(discount).Div(hundred).RoundBank(2)).
		Add(total.Mul(surcharge).Div(hundred).RoundBank(2))
	if !total.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: total must be greater than zero", driver.ErrCouponTotalize)
	}
	p.total = total
	p.totalized = true
	if err := p.printf("\nPagamentos:\n"); err != nil {
		return total, driver.Committed(err)
	}
	return total, nil
}

func paymentDescription(code string) (string, bool) {
	for _, m := range paymentMethods {
		if m.Code == code {
			return m.Description, true
		}
	}
	return "", false
}

func (p *Printer) CouponAddPayment(ctx context.Context, method string, value decimal.Decimal, description string) (decimal.Decimal, error) {
	if err := p.check(); err != nil {
		return decimal.Zero, err
	}
	if !p.totalized {
		return decimal.Zero, fmt.Errorf("%w: coupon not totalized", driver.ErrPaymentAddition)
	}
	name, ok := paymentDescription(method)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown payment method %q", driver.ErrInvalidArgument, method)
	}
	p.paid = p.paid.Add(value)
	p.hasPayments = true
	remaining := decimal.Max(p.total.Sub(p.paid), decimal.Zero)
	if err := p.printf("  %s - %s\n", name, value.StringFixed(2)); err != nil {
		return remaining, driver.Committed(err)
	}
	return remaining, nil
}

func (p *Printer) CouponClose(ctx context.Context, message string) (int, error) {
	if err := p.requireOpen(); err != nil {
		return 0, err
	}
	switch {
	case !p.totalized:
		return 0, fmt.Errorf("%w: coupon not totalized", driver.ErrCloseCoupon)
	case !p.hasPayments:
		return 0, fmt.Errorf("%w: no payments added", driver.ErrCloseCoupon)
	case p.total.GreaterThan(p.paid):
		return 0, fmt.Errorf("%w: payments do not cover the total", driver.ErrCloseCoupon)
	}
	if change := p.paid.Sub(p.total); change.IsPositive() {
		if err := p.printf("Troco: %s\n", change.StringFixed(2)); err != nil {
			return 0, err
		}
	}
	if p.customer.Document != "" {
		if err := p.printf("CPF/CNPJ: %s %s\n", p.customer.Document, p.customer.Name); err != nil {
			return 0, err
		}
	}
	if err := p.feedLine(); err != nil {
		return 0, err
	}
	if err := p.printf("%s\n", message); err != nil {
		return 0, err
	}
	coo := p.counters.COO
	p.counters.COO++
	p.counters.CCF++
	p.customer = driver.Customer{}
	p.resetCoupon()
	p.logger.Debug("Coupon closed", zap.Int("coo", coo))
	return coo, nil
}

// Till

func (p *Printer) Summarize(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	if err := p.printf("LEITURA X\n"); err != nil {
		return err
	}
	if err := p.feedLine(); err != nil {
		return err
	}
	p.tillClosed = false
	return p.saveState()
}

func (p *Printer) OpenTill(ctx context.Context) error {
	return p.Summarize(ctx)
}

// CloseTill emits the Z reduction once per day.
func (p *Printer) CloseTill(ctx context.Context, previousDay bool) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.tillClosed {
		return fmt.Errorf("%w: reduce Z was already sent today", driver.ErrReduceZ)
	}
	p.tillClosed = true
	if err := p.saveState(); err != nil {
		return err
	}
	p.counters.CRZ++
	if err := p.printf("REDUÇÃO Z\n"); err != nil {
		return err
	}
	return p.feedLine()
}

func (p *Printer) cashMovement(label string, value decimal.Decimal) error {
	if err := p.check(); err != nil {
		return err
	}
	if err := p.printf("%s: %s\n", label, value.StringFixed(2)); err != nil {
		return err
	}
	p.counters.GNF++
	return p.feedLine()
}

func (p *Printer) TillAddCash(ctx context.Context, value decimal.Decimal) error {
	return p.cashMovement("SUPRIMENTO", value)
}

func (p *Printer) TillRemoveCash(ctx context.Context, value decimal.Decimal) error {
	return p.cashMovement("SANGRIA", value)
}

func (p *Printer) readMemory() error {
	if err := p.check(); err != nil {
		return err
	}
	if err := p.printf("LEITURA MF\n"); err != nil {
		return err
	}
	return p.feedLine()
}

func (p *Printer) TillReadMemory(ctx context.Context, start, end time.Time) error {
	return p.readMemory()
}

func (p *Printer) TillReadMemoryByReductions(ctx context.Context, start, end int) error {
	return p.readMemory()
}

func (p *Printer) HasPendingReduce(ctx context.Context) (bool, error) {
	return false, p.check()
}

// Constants

func (p *Printer) TaxConstants(ctx context.Context) ([]driver.TaxConstant, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return append([]driver.TaxConstant(nil), taxConstants...), nil
}

func (p *Printer) PaymentConstants(ctx context.Context) ([]driver.PaymentConstant, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return append([]driver.PaymentConstant(nil), paymentMethods...), nil
}

func (p *Printer) Serial(ctx context.Context) (string, error) {
	return "Virtual", p.check()
}

func (p *Printer) Counters(ctx context.Context) (driver.Counters, error) {
	return p.counters, p.check()
}

func (p *Printer) Sintegra(ctx context.Context) (*driver.SintegraData, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return &driver.SintegraData{
		OpeningDate: p.openingDate,
		Serial:      "Serial",
		SerialID:    1234567890,
		CouponStart: 0,
		CouponEnd:   10,
		CRO:         p.cro,
		CRZ:         p.counters.CRZ,
		COO:         p.counters.COO,
		PeriodTotal: decimal.Zero,
		Total:       decimal.Zero,
		Taxes:       []driver.SintegraTax{},
	}, nil
}

// Reports

func (p *Printer) GerencialReportOpen(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	p.counters.GNF++
	return p.printf("      RELATORIO GERENCIAL\n\n")
}

func (p *Printer) GerencialReportPrint(ctx context.Context, text string) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.printf("%s", text)
}

func (p *Printer) GerencialReportClose(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.feedLine()
}

func (p *Printer) PaymentReceiptOpen(ctx context.Context, identifier string, coo int, method string, value decimal.Decimal) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.printf("    RECIBO DE PAGAMENTO coo=%d\n", coo)
}

func (p *Printer) PaymentReceiptPrint(ctx context.Context, text string) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.printf("%s", text)
}

func (p *Printer) PaymentReceiptClose(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.feedLine()
}

// Non fiscal output. Text styles are accepted and not rendered.

func (p *Printer) Centralize(ctx context.Context) error {
	p.centered = true
	return nil
}

func (p *Printer) Descentralize(ctx context.Context) error {
	p.centered = false
	return nil
}

func (p *Printer) SetBold(ctx context.Context) error           { return nil }
func (p *Printer) UnsetBold(ctx context.Context) error         { return nil }
func (p *Printer) SetCondensed(ctx context.Context) error      { return nil }
func (p *Printer) UnsetCondensed(ctx context.Context) error    { return nil }
func (p *Printer) SetDoubleHeight(ctx context.Context) error   { return nil }
func (p *Printer) UnsetDoubleHeight(ctx context.Context) error { return nil }

func (p *Printer) PrintLine(ctx context.Context, text string) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.centered {
		text = center(text, MaxCharacters)
	}
	return p.printf("%s\n", text)
}

func (p *Printer) PrintInline(ctx context.Context, text string) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.printf("%s", text)
}

func (p *Printer) PrintBarcode(ctx context.Context, code string) error {
	return p.printf("=== BARCODE %s ===\n", code)
}

func (p *Printer) PrintQRCode(ctx context.Context, code string) error {
	return p.printf("=== QRCODE %s ===\n", code)
}

func (p *Printer) CutPaper(ctx context.Context) error {
	return p.printf("\n--- paper cut ---\n")
}

func (p *Printer) OpenDrawer(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	p.device.SetDrawerOpen(true)
	return nil
}

func (p *Printer) IsDrawerOpen(ctx context.Context) (bool, error) {
	return p.device.DrawerOpen(), p.check()
}

// center pads text on both sides to width runes, extra space going right.
func center(text string, width int) string {
	n := len([]rune(text))
	if n >= width {
		return text
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", width-n-left)
}
