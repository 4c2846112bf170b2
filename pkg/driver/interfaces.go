// pkg/driver/interfaces.go
package driver

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Driver is implemented by every printer driver.
type Driver interface {
	Info() Info
	Close() error
}

// CouponProtocol is the fiscal contract every ECF driver implements. Calls
// are strictly sequential; a driver owns its transport exclusively.
type CouponProtocol interface {
	Driver

	Setup(ctx context.Context) error
	Capabilities() Capabilities
	// IdentifyCustomerAtEnd reports whether the customer is sent with close
	// instead of right after open.
	IdentifyCustomerAtEnd() bool

	CouponIdentifyCustomer(ctx context.Context, customer Customer) error
	CouponOpen(ctx context.Context) error
	CouponAddItem(ctx context.Context, item ItemRequest) (int, error)
	CouponCancelItem(ctx context.Context, itemID int) error
	CouponCancel(ctx context.Context) error
	CouponTotalize(ctx context.Context, discount, surcharge decimal.Decimal, tax TaxType) (decimal.Decimal, error)
	CouponAddPayment(ctx context.Context, method string, value decimal.Decimal, description string) (decimal.Decimal, error)
	CouponClose(ctx context.Context, message string) (int, error)
	CancelLastCoupon(ctx context.Context) error
	HasOpenCoupon(ctx context.Context) (bool, error)

	Summarize(ctx context.Context) error
	OpenTill(ctx context.Context) error
	CloseTill(ctx context.Context, previousDay bool) error
	TillAddCash(ctx context.Context, value decimal.Decimal) error
	TillRemoveCash(ctx context.Context, value decimal.Decimal) error
	TillReadMemory(ctx context.Context, start, end time.Time) error
	TillReadMemoryByReductions(ctx context.Context, start, end int) error
	HasPendingReduce(ctx context.Context) (bool, error)

	TaxConstants(ctx context.Context) ([]TaxConstant, error)
	PaymentConstants(ctx context.Context) ([]PaymentConstant, error)
	Serial(ctx context.Context) (string, error)
	Counters(ctx context.Context) (Counters, error)
}

// ReportCapable drivers print managerial reports and bound payment receipts.
type ReportCapable interface {
	GerencialReportOpen(ctx context.Context) error
	GerencialReportPrint(ctx context.Context, text string) error
	GerencialReportClose(ctx context.Context) error

	PaymentReceiptOpen(ctx context.Context, identifier string, coo int, method string, value decimal.Decimal) error
	PaymentReceiptPrint(ctx context.Context, text string) error
	PaymentReceiptClose(ctx context.Context) error
}

// DuplicateReceiptCapable drivers reprint the last bound receipt.
type DuplicateReceiptCapable interface {
	PaymentReceiptPrintDuplicate(ctx context.Context) error
}

// SintegraCapable drivers report the data of the last Z reduction.
type SintegraCapable interface {
	Sintegra(ctx context.Context) (*SintegraData, error)
}

// MemoryDumpCapable drivers send the fiscal memory between two dates over
// the connection instead of printing it.
type MemoryDumpCapable interface {
	TillReadMemoryToSerial(ctx context.Context, start, end time.Time) ([]string, error)
}

// NonFiscalPrintable is implemented by plain receipt printers.
type NonFiscalPrintable interface {
	Driver

	MaxCharacters() int
	Centralize(ctx context.Context) error
	Descentralize(ctx context.Context) error
	SetBold(ctx context.Context) error
	UnsetBold(ctx context.Context) error
	SetCondensed(ctx context.Context) error
	UnsetCondensed(ctx context.Context) error
	SetDoubleHeight(ctx context.Context) error
	UnsetDoubleHeight(ctx context.Context) error
	PrintLine(ctx context.Context, text string) error
	PrintInline(ctx context.Context, text string) error
	PrintBarcode(ctx context.Context, code string) error
	PrintQRCode(ctx context.Context, code string) error
	CutPaper(ctx context.Context) error
}

// GraphicsCapable drivers print bitmaps. The matrix is rows x columns.
type GraphicsCapable interface {
	PrintMatrix(ctx context.Context, matrix [][]bool, api int, multiplier int) error
}

// DrawerCapable drivers control a cash drawer.
type DrawerCapable interface {
	OpenDrawer(ctx context.Context) error
	IsDrawerOpen(ctx context.Context) (bool, error)
}
