// pkg/fiscal/printer.go
package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/pkg/driver"
)

// TillState is the last till state observed through this printer.
type TillState string

const (
	TillUnknown TillState = "UNKNOWN"
	TillOpen    TillState = "OPEN"
	TillClosed  TillState = "CLOSED"
)

// Coupon is a snapshot of the coupon being issued.
type Coupon struct {
	IsOpen         bool                       `json:"is_open"`
	IsTotalized    bool                       `json:"is_totalized"`
	Items          map[int]driver.ItemRequest `json:"items"`
	TotalizedValue decimal.Decimal            `json:"totalized_value"`
	PaymentsTotal  decimal.Decimal            `json:"payments_total"`
	LastItemID     int                        `json:"last_item_id"`
}

// Printer enforces the fiscal coupon lifecycle on top of a CouponProtocol
// driver. Every precondition is checked before the driver is called and
// local state only changes after the driver succeeds.
//
// A Printer is bound to one device and is not safe for concurrent use.
type Printer struct {
	drv    driver.CouponProtocol
	caps   driver.Capabilities
	logger *zap.Logger
	clock  clockwork.Clock

	coupon Coupon
	till   TillState
}

// Option configures a Printer.
type Option func(*Printer)

// WithClock replaces the wall clock used for date checks.
func WithClock(c clockwork.Clock) Option {
	return func(p *Printer) { p.clock = c }
}

// NewPrinter binds a state machine to drv.
func NewPrinter(drv driver.CouponProtocol, logger *zap.Logger, opts ...Option) *Printer {
	info := drv.Info()
	p := &Printer{
		drv:  drv,
		caps: drv.Capabilities(),
		logger: logger.With(
			zap.String("component", "fiscal_printer"),
			zap.String("brand", info.Brand),
			zap.String("model", info.Model),
		),
		clock: clockwork.NewRealClock(),
		till:  TillUnknown,
	}
	p.resetCoupon()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Driver returns the bound driver.
func (p *Printer) Driver() driver.CouponProtocol { return p.drv }

// Capabilities returns the driver's published constraints.
func (p *Printer) Capabilities() driver.Capabilities { return p.caps }

// Coupon returns a copy of the current coupon state.
func (p *Printer) Coupon() Coupon {
	c := p.coupon
	c.Items = make(map[int]driver.ItemRequest, len(p.coupon.Items))
	for id, it := range p.coupon.Items {
		c.Items[id] = it
	}
	return c
}

// TillState returns the last observed till state.
func (p *Printer) TillState() TillState { return p.till }

func (p *Printer) resetCoupon() {
	p.coupon = Coupon{
		Items:          make(map[int]driver.ItemRequest),
		TotalizedValue: decimal.Zero,
		PaymentsTotal:  decimal.Zero,
	}
}

// Setup runs the driver's initialization sequence.
func (p *Printer) Setup(ctx context.Context) error {
	p.logger.Info("setup")
	return p.drv.Setup(ctx)
}

// IdentifyCustomer sends the buyer identification.
func (p *Printer) IdentifyCustomer(ctx context.Context, customer driver.Customer) error {
	p.logger.Info("identify_customer",
		zap.String("name", customer.Name),
		zap.String("document", customer.Document),
	)
	if err := p.caps.CheckString(driver.CapCustomerName, customer.Name); err != nil {
		return err
	}
	if err := p.caps.CheckString(driver.CapCustomerAddress, customer.Address); err != nil {
		return err
	}
	if err := p.caps.CheckString(driver.CapCustomerID, customer.Document); err != nil {
		return err
	}
	return p.drv.CouponIdentifyCustomer(ctx, customer)
}

// Open starts a new coupon.
func (p *Printer) Open(ctx context.Context) error {
	p.logger.Info("coupon_open")
	if p.coupon.IsOpen {
		return driver.ErrCouponAlreadyOpen
	}
	if err := p.drv.CouponOpen(ctx); err != nil {
		return err
	}
	p.resetCoupon()
	p.coupon.IsOpen = true
	p.till = TillOpen
	return nil
}

// AddItem registers an item and returns the device item number. The
// quantity is sent as given.
func (p *Printer) AddItem(ctx context.Context, item driver.ItemRequest) (int, error) {
	if item.Unit == "" {
		item.Unit = driver.UnitEmpty
	}
	p.logger.Info("add_item",
		zap.String("code", item.Code),
		zap.String("description", item.Description),
		zap.String("price", item.Price.String()),
		zap.String("tax_code", item.TaxCode),
		zap.String("quantity", item.Quantity.String()),
		zap.String("unit", string(item.Unit)),
		zap.String("discount", item.Discount.String()),
		zap.String("surcharge", item.Surcharge.String()),
	)

	if !p.coupon.IsOpen {
		return 0, driver.ErrCouponNotOpen
	}
	if p.coupon.IsTotalized {
		return 0, fmt.Errorf("%w: cannot add more items", driver.ErrAlreadyTotalized)
	}
	if err := validateItem(item); err != nil {
		return 0, err
	}
	if err := p.checkItemCapabilities(item); err != nil {
		return 0, err
	}

	id, err := p.drv.CouponAddItem(ctx, item)
	if err != nil && !driver.IsCommitted(err) {
		return 0, err
	}
	if err != nil {
		// Device item numbers are sequential within a coupon.
		if id == 0 {
			id = p.coupon.LastItemID + 1
		}
		p.logger.Warn("add_item accepted by the device, follow-up failed",
			zap.Int("item_id", id), zap.Error(err))
	}
	p.coupon.Items[id] = item
	p.coupon.LastItemID = id
	return id, err
}

func validateItem(item driver.ItemRequest) error {
	if !item.Discount.IsZero() && !item.Surcharge.IsZero() {
		return fmt.Errorf("%w: discount and surcharge can not be used together", driver.ErrInvalidArgument)
	}
	switch {
	case item.Unit != driver.UnitCustom && item.UnitDesc != "":
		return fmt.Errorf("%w: unit description requires the custom unit", driver.ErrInvalidArgument)
	case item.Unit == driver.UnitCustom && item.UnitDesc == "":
		return fmt.Errorf("%w: custom unit requires a unit description", driver.ErrInvalidArgument)
	case item.Unit == driver.UnitCustom && len([]rune(item.UnitDesc)) != 2:
		return fmt.Errorf("%w: unit description must have 2 characters", driver.ErrInvalidArgument)
	}
	if !item.Price.IsPositive() {
		return fmt.Errorf("%w: item price must be greater than zero", driver.ErrInvalidValue)
	}
	if item.Quantity.IsNegative() {
		return fmt.Errorf("%w: quantity cannot be negative", driver.ErrInvalidValue)
	}
	if item.Surcharge.IsNegative() {
		return fmt.Errorf("%w: surcharge cannot be negative", driver.ErrInvalidArgument)
	}
	if item.Discount.IsNegative() {
		return fmt.Errorf("%w: discount cannot be negative", driver.ErrInvalidArgument)
	}
	return nil
}

func (p *Printer) checkItemCapabilities(item driver.ItemRequest) error {
	if err := p.caps.CheckString(driver.CapItemCode, item.Code); err != nil {
		return err
	}
	if err := p.caps.CheckString(driver.CapItemDescription, item.Description); err != nil {
		return err
	}
	if err := p.caps.CheckValue(driver.CapItemPrice, item.Price); err != nil {
		return err
	}
	return p.caps.CheckValue(driver.CapItemsQuantity, item.Quantity)
}

// CancelItem removes a previously added item.
func (p *Printer) CancelItem(ctx context.Context, itemID int) error {
	p.logger.Info("cancel_item", zap.Int("item_id", itemID))
	if !p.coupon.IsOpen {
		return fmt.Errorf("%w: no coupon open", driver.ErrCancelItem)
	}
	if p.coupon.IsTotalized {
		return fmt.Errorf("%w: coupon already totalized", driver.ErrCancelItem)
	}
	if _, ok := p.coupon.Items[itemID]; !ok {
		return fmt.Errorf("%w: item %d not in coupon", driver.ErrCancelItem, itemID)
	}
	if err := p.drv.CouponCancelItem(ctx, itemID); err != nil {
		return err
	}
	delete(p.coupon.Items, itemID)
	return nil
}

// Totalize fixes the payable value of the coupon and returns it.
func (p *Printer) Totalize(ctx context.Context, discount, surcharge decimal.Decimal, tax driver.TaxType) (decimal.Decimal, error) {
	if tax == "" {
		tax = driver.TaxNone
	}
	p.logger.Info("totalize",
		zap.String("discount", discount.String()),
		zap.String("surcharge", surcharge.String()),
		zap.String("tax", string(tax)),
	)
	if !p.coupon.IsOpen {
		return decimal.Zero, driver.ErrCouponNotOpen
	}
	if p.coupon.IsTotalized {
		return decimal.Zero, fmt.Errorf("%w: coupon already totalized", driver.ErrCouponTotalize)
	}
	if len(p.coupon.Items) == 0 {
		return decimal.Zero, fmt.Errorf("%w: coupon has no items", driver.ErrCouponTotalize)
	}
	if !discount.IsZero() && !surcharge.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: discount and surcharge can not be used together", driver.ErrInvalidArgument)
	}
	if discount.IsNegative() || surcharge.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: discount and surcharge cannot be negative", driver.ErrInvalidArgument)
	}
	if !surcharge.IsZero() && tax == driver.TaxNone {
		return decimal.Zero, fmt.Errorf("%w: a surcharge needs a tax type", driver.ErrInvalidArgument)
	}

	total, err := p.drv.CouponTotalize(ctx, discount, surcharge, tax)
	if err != nil && !driver.IsCommitted(err) {
		return decimal.Zero, err
	}
	if err != nil {
		p.logger.Warn("totalize accepted by the device, total unknown", zap.Error(err))
	}
	p.coupon.IsTotalized = true
	p.coupon.TotalizedValue = total
	return total, err
}

// AddPayment registers a payment and returns what the driver reports, usually
// the remaining value.
func (p *Printer) AddPayment(ctx context.Context, method string, value decimal.Decimal, description string) (decimal.Decimal, error) {
	p.logger.Info("add_payment",
		zap.String("method", method),
		zap.String("value", value.String()),
		zap.String("description", description),
	)
	if !p.coupon.IsTotalized {
		return decimal.Zero, fmt.Errorf("%w: totalize the coupon before adding payments", driver.ErrPaymentAddition)
	}
	if !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: payment value must be greater than zero", driver.ErrInvalidValue)
	}
	if err := p.caps.CheckValue(driver.CapPaymentValue, value); err != nil {
		return decimal.Zero, err
	}
	if err := p.caps.CheckString(driver.CapPaymentDescription, description); err != nil {
		return decimal.Zero, err
	}

	result, err := p.drv.CouponAddPayment(ctx, method, value, description)
	if err != nil && !driver.IsCommitted(err) {
		return decimal.Zero, err
	}
	if err != nil {
		p.logger.Warn("add_payment accepted by the device, follow-up failed",
			zap.String("value", value.String()), zap.Error(err))
	}
	p.coupon.PaymentsTotal = p.coupon.PaymentsTotal.Add(value)
	return result, err
}

// Close finishes the coupon and returns its COO.
func (p *Printer) Close(ctx context.Context, message string) (int, error) {
	p.logger.Info("coupon_close", zap.String("message", message))
	if !p.coupon.IsTotalized {
		return 0, fmt.Errorf("%w: totalize the coupon before closing it", driver.ErrCloseCoupon)
	}
	if p.coupon.PaymentsTotal.IsZero() {
		return 0, fmt.Errorf("%w: there are no payments defined", driver.ErrCloseCoupon)
	}
	if p.coupon.TotalizedValue.GreaterThan(p.coupon.PaymentsTotal) {
		return 0, fmt.Errorf("%w: payments total %s does not cover totalized value %s",
			driver.ErrCloseCoupon, p.coupon.PaymentsTotal.StringFixed(2), p.coupon.TotalizedValue.StringFixed(2))
	}
	if err := p.caps.CheckString(driver.CapPromotionalMessage, message); err != nil {
		return 0, err
	}

	coo, err := p.drv.CouponClose(ctx, message)
	if err != nil && !driver.IsCommitted(err) {
		return 0, err
	}
	if err != nil {
		p.logger.Warn("coupon_close accepted by the device, COO unknown", zap.Error(err))
	}
	p.resetCoupon()
	return coo, err
}

// Cancel cancels the open coupon.
func (p *Printer) Cancel(ctx context.Context) error {
	p.logger.Info("coupon_cancel")
	if err := p.drv.CouponCancel(ctx); err != nil {
		return err
	}
	p.resetCoupon()
	return nil
}

// CancelLastCoupon cancels the last sale or non fiscal coupon.
func (p *Printer) CancelLastCoupon(ctx context.Context) error {
	p.logger.Info("cancel_last_coupon")
	return p.drv.CancelLastCoupon(ctx)
}

// HasOpenCoupon asks the device whether a coupon is open.
func (p *Printer) HasOpenCoupon(ctx context.Context) (bool, error) {
	return p.drv.HasOpenCoupon(ctx)
}

// HasPendingReduce asks the device whether a Z reduction is pending.
func (p *Printer) HasPendingReduce(ctx context.Context) (bool, error) {
	pending, err := p.drv.HasPendingReduce(ctx)
	p.logger.Info("has_pending_reduce", zap.Bool("pending", pending), zap.Error(err))
	return pending, err
}

// TaxConstant returns the device code of the first tax slot of type tax.
func (p *Printer) TaxConstant(ctx context.Context, tax driver.TaxType) (string, error) {
	constants, err := p.drv.TaxConstants(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range constants {
		if c.Type == tax {
			return c.Code, nil
		}
	}
	return "", fmt.Errorf("%w: no tax constant for %s", driver.ErrInvalidArgument, tax)
}

// TaxConstants lists the device tax slots.
func (p *Printer) TaxConstants(ctx context.Context) ([]driver.TaxConstant, error) {
	return p.drv.TaxConstants(ctx)
}

// PaymentConstants lists the device payment methods.
func (p *Printer) PaymentConstants(ctx context.Context) ([]driver.PaymentConstant, error) {
	return p.drv.PaymentConstants(ctx)
}

// Serial returns the device serial number.
func (p *Printer) Serial(ctx context.Context) (string, error) {
	return p.drv.Serial(ctx)
}

// Counters returns the device sequence counters.
func (p *Printer) Counters(ctx context.Context) (driver.Counters, error) {
	return p.drv.Counters(ctx)
}

// Sintegra returns the last reduction summary when the driver supports it.
func (p *Printer) Sintegra(ctx context.Context) (*driver.SintegraData, error) {
	s, ok := p.drv.(driver.SintegraCapable)
	if !ok {
		return nil, fmt.Errorf("%w: sintegra", driver.ErrNotSupported)
	}
	return s.Sintegra(ctx)
}

// today truncates the clock to a local calendar day.
func (p *Printer) today() time.Time {
	now := p.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
