// pkg/driver/errors.go
package driver

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can decide between retrying,
// cancelling the coupon or giving up.
type ErrorKind int

const (
	KindUnmapped ErrorKind = iota
	KindTransport
	KindIntegrity
	KindRetryable
	KindCommand
	KindHardware
	KindState
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindIntegrity:
		return "integrity"
	case KindRetryable:
		return "retryable"
	case KindCommand:
		return "command"
	case KindHardware:
		return "hardware"
	case KindState:
		return "state"
	default:
		return "unmapped"
	}
}

// State machine violations. These are raised before any byte reaches the wire.
var (
	ErrCouponAlreadyOpen = errors.New("fiscal: coupon already open")
	ErrCouponNotOpen     = errors.New("fiscal: coupon not open")
	ErrAlreadyTotalized  = errors.New("fiscal: coupon already totalized")
	ErrInvalidValue      = errors.New("fiscal: invalid value")
	ErrInvalidArgument   = errors.New("fiscal: invalid argument")
	ErrCancelItem        = errors.New("fiscal: cannot cancel item")
	ErrCouponTotalize    = errors.New("fiscal: cannot totalize coupon")
	ErrPaymentAddition   = errors.New("fiscal: cannot add payment")
	ErrCloseCoupon       = errors.New("fiscal: cannot close coupon")
	ErrItemAddition      = errors.New("fiscal: cannot add item")
	ErrCapability        = errors.New("fiscal: value out of device capability")
	ErrNotSupported      = errors.New("fiscal: operation not supported by driver")
)

// Device reported conditions.
var (
	ErrPendingReduceZ    = errors.New("device: reduce Z pending")
	ErrReduceZ           = errors.New("device: reduce Z already emitted")
	ErrPendingReadX      = errors.New("device: read X pending")
	ErrReadX             = errors.New("device: read X failed")
	ErrOutOfPaper        = errors.New("device: out of paper")
	ErrPrinterOffline    = errors.New("device: printer offline")
	ErrHardwareFailure   = errors.New("device: hardware failure")
	ErrAuthentication    = errors.New("device: authentication failure")
	ErrCommand           = errors.New("device: command rejected")
	ErrCommandParameters = errors.New("device: invalid command parameters")
	ErrInvalidState      = errors.New("device: invalid state for command")
	ErrBusy              = errors.New("device: busy")
	ErrProtocol          = errors.New("device: unmapped status code")
)

// Transport and integrity failures.
var (
	ErrTimeout            = errors.New("protocol: timeout")
	ErrNotConnected       = errors.New("protocol: transport not open")
	ErrChecksumMismatch   = errors.New("protocol: checksum mismatch")
	ErrMalformedFrame     = errors.New("protocol: malformed frame")
	ErrUnexpectedReplyID  = errors.New("protocol: unexpected reply id")
	ErrUnexpectedResponse = errors.New("protocol: unexpected response")
)

// ErrCommitted marks a failure raised after the device accepted a mutating
// command. The change is on paper even though the call returned an error.
var ErrCommitted = errors.New("device: command accepted")

// Committed wraps err, raised by the reads that follow an accepted command,
// with ErrCommitted. It returns nil for a nil err.
func Committed(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w, follow-up failed: %w", ErrCommitted, err)
}

// IsCommitted reports whether err carries ErrCommitted.
func IsCommitted(err error) bool {
	return errors.Is(err, ErrCommitted)
}

// DriverError carries the vendor's numeric code alongside the sentinel the
// code maps to.
type DriverError struct {
	Kind    ErrorKind
	Vendor  string
	Code    int
	Message string
	Err     error
}

func (e *DriverError) Error() string {
	msg := fmt.Sprintf("%s error %d", e.Vendor, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DriverError) Unwrap() error { return e.Err }

// KindOf reports the kind of err. Sentinels that are not wrapped in a
// DriverError are classified by family.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnmapped
	}
	var de *DriverError
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNotConnected):
		return KindTransport
	case errors.Is(err, ErrChecksumMismatch), errors.Is(err, ErrMalformedFrame),
		errors.Is(err, ErrUnexpectedReplyID), errors.Is(err, ErrUnexpectedResponse):
		return KindIntegrity
	case errors.Is(err, ErrCouponAlreadyOpen), errors.Is(err, ErrCouponNotOpen),
		errors.Is(err, ErrAlreadyTotalized), errors.Is(err, ErrCancelItem),
		errors.Is(err, ErrCouponTotalize), errors.Is(err, ErrPaymentAddition),
		errors.Is(err, ErrCloseCoupon), errors.Is(err, ErrItemAddition),
		errors.Is(err, ErrInvalidValue), errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrCapability):
		return KindState
	case errors.Is(err, ErrBusy):
		return KindRetryable
	case errors.Is(err, ErrOutOfPaper), errors.Is(err, ErrHardwareFailure),
		errors.Is(err, ErrPrinterOffline), errors.Is(err, ErrAuthentication):
		return KindHardware
	}
	return KindUnmapped
}

// CodeOf returns the vendor code carried by err, if any.
func CodeOf(err error) (int, bool) {
	var de *DriverError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return 0, false
}

// IsRetryable reports whether err is a transient device condition.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRetryable
}
