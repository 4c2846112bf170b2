package fiscal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ecf-service/pkg/driver"
)

// fakeDriver keeps a device side view of the coupon so tests can compare it
// with the state machine.
type fakeDriver struct {
	calls []string
	fail  map[string]error
	// after fails the named call once the device side change is applied.
	after   map[string]error
	nextID  int
	items   map[int]decimal.Decimal
	paid    decimal.Decimal
	total   decimal.Decimal
	coo     int
	open    bool
	pending bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fail: map[string]error{}, after: map[string]error{}, items: map[int]decimal.Decimal{}, coo: 41}
}

func (f *fakeDriver) call(name string) error {
	f.calls = append(f.calls, name)
	if err, ok := f.fail[name]; ok {
		return err
	}
	return nil
}

func (f *fakeDriver) followUp(name string) error {
	return driver.Committed(f.after[name])
}

func (f *fakeDriver) Info() driver.Info { return driver.Info{Brand: "fake", Model: "test", Fiscal: true} }
func (f *fakeDriver) Close() error      { return nil }
func (f *fakeDriver) Setup(context.Context) error {
	return f.call("setup")
}

func (f *fakeDriver) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		driver.CapItemCode:           driver.LengthCapability(0, 13),
		driver.CapItemDescription:    driver.LengthCapability(0, 173),
		driver.CapItemPrice:          driver.RangeCapability(decimal.Zero, 7, 3),
		driver.CapItemsQuantity:      driver.RangeCapability(decimal.NewFromInt(1), 5, 3),
		driver.CapPaymentValue:       driver.RangeCapability(decimal.Zero, 10, 2),
		driver.CapPromotionalMessage: driver.LengthCapability(0, 384),
		driver.CapCustomerName:       driver.LengthCapability(0, 42),
		driver.CapAddCash:            driver.RangeCapability(decimal.NewFromInt(1), 10, 2),
	}
}

func (f *fakeDriver) IdentifyCustomerAtEnd() bool { return false }

func (f *fakeDriver) CouponIdentifyCustomer(context.Context, driver.Customer) error {
	return f.call("identify_customer")
}

func (f *fakeDriver) CouponOpen(context.Context) error {
	if err := f.call("open"); err != nil {
		return err
	}
	f.open = true
	f.nextID = 0
	f.items = map[int]decimal.Decimal{}
	f.paid = decimal.Zero
	return nil
}

func (f *fakeDriver) CouponAddItem(_ context.Context, item driver.ItemRequest) (int, error) {
	if err := f.call("add_item"); err != nil {
		return 0, err
	}
	f.nextID++
	f.items[f.nextID] = item.Price.Mul(item.Quantity)
	if err := f.followUp("add_item"); err != nil {
		return 0, err
	}
	return f.nextID, nil
}

func (f *fakeDriver) CouponCancelItem(_ context.Context, id int) error {
	if err := f.call("cancel_item"); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

func (f *fakeDriver) CouponCancel(context.Context) error {
	if err := f.call("cancel"); err != nil {
		return err
	}
	f.open = false
	return nil
}

func (f *fakeDriver) CouponTotalize(_ context.Context, discount, surcharge decimal.Decimal, _ driver.TaxType) (decimal.Decimal, error) {
	if err := f.call("totalize"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, v := range f.items {
		total = total.Add(v)
	}
	f.total = total.Sub(discount).Add(surcharge)
	if err := f.followUp("totalize"); err != nil {
		return decimal.Zero, err
	}
	return f.total, nil
}

func (f *fakeDriver) CouponAddPayment(_ context.Context, _ string, value decimal.Decimal, _ string) (decimal.Decimal, error) {
	if err := f.call("add_payment"); err != nil {
		return decimal.Zero, err
	}
	f.paid = f.paid.Add(value)
	if err := f.followUp("add_payment"); err != nil {
		return decimal.Zero, err
	}
	return f.total.Sub(f.paid), nil
}

func (f *fakeDriver) CouponClose(context.Context, string) (int, error) {
	if err := f.call("close"); err != nil {
		return 0, err
	}
	f.open = false
	f.coo++
	if err := f.followUp("close"); err != nil {
		return 0, err
	}
	return f.coo, nil
}

func (f *fakeDriver) CancelLastCoupon(context.Context) error { return f.call("cancel_last") }
func (f *fakeDriver) HasOpenCoupon(context.Context) (bool, error) {
	return f.open, f.call("has_open_coupon")
}
func (f *fakeDriver) Summarize(context.Context) error { return f.call("summarize") }
func (f *fakeDriver) OpenTill(context.Context) error  { return f.call("open_till") }
func (f *fakeDriver) CloseTill(context.Context, bool) error {
	if err := f.call("close_till"); err != nil {
		return err
	}
	f.open = false
	return nil
}
func (f *fakeDriver) TillAddCash(context.Context, decimal.Decimal) error    { return f.call("add_cash") }
func (f *fakeDriver) TillRemoveCash(context.Context, decimal.Decimal) error { return f.call("remove_cash") }
func (f *fakeDriver) TillReadMemory(context.Context, time.Time, time.Time) error {
	return f.call("read_memory")
}
func (f *fakeDriver) TillReadMemoryByReductions(context.Context, int, int) error {
	return f.call("read_memory_by_reductions")
}
func (f *fakeDriver) HasPendingReduce(context.Context) (bool, error) {
	return f.pending, f.call("has_pending_reduce")
}

func (f *fakeDriver) TaxConstants(context.Context) ([]driver.TaxConstant, error) {
	return []driver.TaxConstant{
		{Type: driver.TaxSubstitution, Code: "F"},
		{Type: driver.TaxExemption, Code: "I"},
		{Type: driver.TaxNone, Code: "N"},
	}, f.call("tax_constants")
}

func (f *fakeDriver) PaymentConstants(context.Context) ([]driver.PaymentConstant, error) {
	return []driver.PaymentConstant{{Code: "01", Description: "Dinheiro"}}, f.call("payment_constants")
}

func (f *fakeDriver) Serial(context.Context) (string, error) { return "FAKE0001", f.call("serial") }
func (f *fakeDriver) Counters(context.Context) (driver.Counters, error) {
	return driver.Counters{COO: f.coo}, f.call("counters")
}

func (f *fakeDriver) countOf(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}
