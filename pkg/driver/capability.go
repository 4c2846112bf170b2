// pkg/driver/capability.go
package driver

import (
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Capability field names published by every fiscal driver.
const (
	CapItemCode           = "item_code"
	CapItemID             = "item_id"
	CapItemsQuantity      = "items_quantity"
	CapItemPrice          = "item_price"
	CapItemDescription    = "item_description"
	CapPaymentValue       = "payment_value"
	CapPromotionalMessage = "promotional_message"
	CapPaymentDescription = "payment_description"
	CapCustomerName       = "customer_name"
	CapCustomerID         = "customer_id"
	CapCustomerAddress    = "customer_address"
	CapAddCash            = "add_cash"
	CapRemoveCash         = "remove_cash"
)

// CapabilityMode tells which constraint set a Capability carries.
type CapabilityMode int

const (
	ModeLength CapabilityMode = iota + 1
	ModeRange
)

// Capability rejects out of range values before they are sent to a device.
// A Capability is either a string length constraint or a numeric range
// constraint, never both; use LengthCapability or RangeCapability to build one.
type Capability struct {
	Mode     CapabilityMode   `json:"mode"`
	MinLen   int              `json:"min_len,omitempty"`
	MaxLen   int              `json:"max_len,omitempty"`
	MinSize  decimal.Decimal  `json:"min_size"`
	MaxSize  *decimal.Decimal `json:"max_size,omitempty"`
	Digits   int              `json:"digits,omitempty"`
	Decimals int              `json:"decimals,omitempty"`
}

// LengthCapability constrains a string to [minLen, maxLen] characters.
func LengthCapability(minLen, maxLen int) Capability {
	if minLen < 0 || maxLen < minLen {
		panic(fmt.Sprintf("driver: invalid length capability [%d, %d]", minLen, maxLen))
	}
	return Capability{Mode: ModeLength, MinLen: minLen, MaxLen: maxLen}
}

// RangeCapability constrains a number to min and, when digits > 0, to the
// largest value that fits in digits integer and decimals fractional places.
func RangeCapability(min decimal.Decimal, digits, decimals int) Capability {
	c := Capability{Mode: ModeRange, MinSize: min, Digits: digits, Decimals: decimals}
	if digits > 0 {
		m := maxForDigits(digits, decimals)
		c.MaxSize = &m
	}
	return c
}

// BoundedCapability constrains a number to [min, max] explicitly.
func BoundedCapability(min, max decimal.Decimal) Capability {
	if max.LessThan(min) {
		panic(fmt.Sprintf("driver: invalid range capability [%s, %s]", min, max))
	}
	return Capability{Mode: ModeRange, MinSize: min, MaxSize: &max}
}

// 10^digits - 1 + (1 - 10^-decimals)
func maxForDigits(digits, decimals int) decimal.Decimal {
	ten := decimal.NewFromInt(10)
	max := ten.Pow(decimal.NewFromInt(int64(digits))).Sub(decimal.NewFromInt(1))
	if decimals > 0 {
		frac := decimal.NewFromInt(1).Sub(decimal.New(1, int32(-decimals)))
		max = max.Add(frac)
	}
	return max
}

// CheckString validates a string against a length capability.
func (c Capability) CheckString(field, value string) error {
	if c.Mode != ModeLength {
		return fmt.Errorf("%w: %s is not a string field", ErrCapability, field)
	}
	n := utf8.RuneCountInString(value)
	if n < c.MinLen || n > c.MaxLen {
		return fmt.Errorf("%w: %s length %d outside [%d, %d]", ErrCapability, field, n, c.MinLen, c.MaxLen)
	}
	return nil
}

// CheckValue validates a number against a range capability.
func (c Capability) CheckValue(field string, value decimal.Decimal) error {
	if c.Mode != ModeRange {
		return fmt.Errorf("%w: %s is not a numeric field", ErrCapability, field)
	}
	if value.LessThan(c.MinSize) {
		return fmt.Errorf("%w: %s %s below minimum %s", ErrCapability, field, value, c.MinSize)
	}
	if c.MaxSize != nil && value.GreaterThan(*c.MaxSize) {
		return fmt.Errorf("%w: %s %s above maximum %s", ErrCapability, field, value, *c.MaxSize)
	}
	if c.Digits > 0 && !value.Equal(value.Truncate(int32(c.Decimals))) {
		return fmt.Errorf("%w: %s %s has more than %d decimals", ErrCapability, field, value, c.Decimals)
	}
	return nil
}

// Capabilities maps a field name to its constraint.
type Capabilities map[string]Capability

// CheckString validates value if field is published; unknown fields pass.
func (cs Capabilities) CheckString(field, value string) error {
	c, ok := cs[field]
	if !ok {
		return nil
	}
	return c.CheckString(field, value)
}

// CheckValue validates value if field is published; unknown fields pass.
func (cs Capabilities) CheckValue(field string, value decimal.Decimal) error {
	c, ok := cs[field]
	if !ok {
		return nil
	}
	return c.CheckValue(field, value)
}
