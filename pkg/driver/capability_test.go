package driver

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeCapabilityMaxFromDigits(t *testing.T) {
	tests := []struct {
		digits, decimals int
		want             string
	}{
		{digits: 7, decimals: 3, want: "9999999.999"},
		{digits: 10, decimals: 2, want: "9999999999.99"},
		{digits: 3, decimals: 0, want: "999"},
		{digits: 5, decimals: 3, want: "99999.999"},
	}

	for _, tt := range tests {
		c := RangeCapability(decimal.Zero, tt.digits, tt.decimals)
		require.NotNil(t, c.MaxSize)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(*c.MaxSize), "digits=%d decimals=%d got %s", tt.digits, tt.decimals, c.MaxSize)
		assert.Equal(t, ModeRange, c.Mode)
		assert.Zero(t, c.MaxLen)
	}
}

func TestCapabilityCheckValue(t *testing.T) {
	c := RangeCapability(decimal.NewFromInt(1), 5, 3)

	assert.NoError(t, c.CheckValue("items_quantity", decimal.NewFromInt(1)))
	assert.NoError(t, c.CheckValue("items_quantity", decimal.RequireFromString("99999.999")))

	err := c.CheckValue("items_quantity", decimal.Zero)
	assert.ErrorIs(t, err, ErrCapability)

	err = c.CheckValue("items_quantity", decimal.NewFromInt(100000))
	assert.ErrorIs(t, err, ErrCapability)

	err = c.CheckValue("items_quantity", decimal.RequireFromString("1.0005"))
	assert.ErrorIs(t, err, ErrCapability)
}

func TestCapabilityZeroMinimumIsEnforced(t *testing.T) {
	c := RangeCapability(decimal.Zero, 7, 3)
	assert.ErrorIs(t, c.CheckValue("item_price", decimal.NewFromInt(-1)), ErrCapability)
	assert.NoError(t, c.CheckValue("item_price", decimal.Zero))
}

func TestCapabilityModesAreExclusive(t *testing.T) {
	s := LengthCapability(0, 13)
	assert.Equal(t, ModeLength, s.Mode)
	assert.Nil(t, s.MaxSize)

	err := s.CheckValue("item_code", decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, ErrCapability))

	n := RangeCapability(decimal.Zero, 3, 0)
	assert.ErrorIs(t, n.CheckString("item_id", "1"), ErrCapability)
}

func TestCapabilityCheckString(t *testing.T) {
	c := LengthCapability(0, 13)
	assert.NoError(t, c.CheckString("item_code", "987654"))
	assert.NoError(t, c.CheckString("item_code", "ááááááááááááá"))
	assert.ErrorIs(t, c.CheckString("item_code", "12345678901234"), ErrCapability)
}

func TestCapabilitiesUnknownFieldPasses(t *testing.T) {
	cs := Capabilities{CapItemCode: LengthCapability(0, 2)}
	assert.NoError(t, cs.CheckString(CapCustomerName, "anything goes here"))
	assert.ErrorIs(t, cs.CheckString(CapItemCode, "abc"), ErrCapability)
}

func TestInvalidCapabilityPanics(t *testing.T) {
	assert.Panics(t, func() { LengthCapability(5, 1) })
	assert.Panics(t, func() { BoundedCapability(decimal.NewFromInt(2), decimal.NewFromInt(1)) })
}
