// pkg/driver/types.go
package driver

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitType is the measurement unit printed next to an item quantity.
type UnitType string

const (
	UnitEmpty  UnitType = "EMPTY"
	UnitWeight UnitType = "WEIGHT"
	UnitMeters UnitType = "METERS"
	UnitLiters UnitType = "LITERS"
	UnitCustom UnitType = "CUSTOM"
)

// TaxType identifies a tax treatment independently of the device code for it.
type TaxType string

const (
	TaxICMS         TaxType = "ICMS"
	TaxSubstitution TaxType = "SUBSTITUTION"
	TaxExemption    TaxType = "EXEMPTION"
	TaxNone         TaxType = "NONE"
	TaxService      TaxType = "SERVICE"
	TaxCustom       TaxType = "CUSTOM"
	TaxISS          TaxType = "ISS"
)

// PaymentMethodType is a logical payment method.
type PaymentMethodType string

const (
	PaymentMoney           PaymentMethodType = "MONEY"
	PaymentCheck           PaymentMethodType = "CHECK"
	PaymentBill            PaymentMethodType = "BILL"
	PaymentCreditCard      PaymentMethodType = "CREDIT_CARD"
	PaymentDebitCard       PaymentMethodType = "DEBIT_CARD"
	PaymentFinancial       PaymentMethodType = "FINANCIAL"
	PaymentGiftCertificate PaymentMethodType = "GIFT_CERTIFICATE"
)

// TaxConstant is a tax slot as reported by the device.
type TaxConstant struct {
	Type  TaxType          `json:"type"`
	Code  string           `json:"code"`
	Value *decimal.Decimal `json:"value,omitempty"`
}

// PaymentConstant is a payment method slot as reported by the device.
type PaymentConstant struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ItemRequest is the input of CouponAddItem. TaxCode and Unit codes are the
// device's own codes.
type ItemRequest struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	TaxCode     string          `json:"tax_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        UnitType        `json:"unit"`
	Discount    decimal.Decimal `json:"discount"`
	Surcharge   decimal.Decimal `json:"surcharge"`
	UnitDesc    string          `json:"unit_desc,omitempty"`
}

// Customer identifies the buyer printed on the coupon.
type Customer struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Document string `json:"document"`
}

// SintegraTax is one tax total in a Z reduction.
type SintegraTax struct {
	Code  string          `json:"code" csv:"code"`
	Value decimal.Decimal `json:"value" csv:"value"`
	// Type is ICMS or ISS.
	Type string `json:"type" csv:"type"`
}

// SintegraData is the per-reduction summary required by the state tax
// authority.
type SintegraData struct {
	OpeningDate time.Time       `json:"opening_date"`
	Serial      string          `json:"serial"`
	SerialID    int             `json:"serial_id"`
	CouponStart int             `json:"coupon_start"`
	CouponEnd   int             `json:"coupon_end"`
	CRZ         int             `json:"crz"`
	CRO         int             `json:"cro"`
	COO         int             `json:"coo"`
	PeriodTotal decimal.Decimal `json:"period_total"`
	Total       decimal.Decimal `json:"total"`
	Taxes       []SintegraTax   `json:"taxes"`
}

// Counters groups the device sequence counters.
type Counters struct {
	COO int `json:"coo"`
	CCF int `json:"ccf"`
	GNF int `json:"gnf"`
	CRZ int `json:"crz"`
}

// Info describes a driver implementation.
type Info struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Fiscal   bool   `json:"fiscal"`
	Charset  string `json:"charset"`
	MaxChars int    `json:"max_characters,omitempty"`
}
