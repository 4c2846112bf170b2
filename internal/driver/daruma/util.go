// internal/driver/daruma/util.go
package daruma

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ecf-service/pkg/driver"
)

// scaled returns v * 10^places truncated toward zero, the fixed point form
// the printer expects.
func scaled(v decimal.Decimal, places int32) int64 {
	return v.Shift(places).IntPart()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func slice(b []byte, from, to int) (string, error) {
	if to > len(b) {
		return "", fmt.Errorf("%w: reply %q has no bytes [%d:%d]", driver.ErrMalformedFrame, b, from, to)
	}
	return string(b[from:to]), nil
}

func atoi(b []byte, from, to int) (int, error) {
	s, err := slice(b, from, to)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", driver.ErrMalformedFrame, s)
	}
	return n, nil
}

// cents parses an integer amount in hundredths.
func cents(b []byte) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(b))
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not an amount", driver.ErrMalformedFrame, s)
	}
	return v.Shift(-2), nil
}

func centsAt(b []byte, from, to int) (decimal.Decimal, error) {
	s, err := slice(b, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return cents([]byte(s))
}
