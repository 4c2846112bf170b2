// internal/protocol/fiscnet/errors.go
package fiscnet

import "ecf-service/pkg/driver"

// Codes the drivers treat as "register not configured".
const (
	CodeTaxNotLoaded        = 8005
	CodePaymentNotLoaded    = 8014
	CodeAlreadyDefined      = 8036
	CodeNonFiscalNotDefined = 8057
	CodeNoDataInRange       = 8089
)

// Errors maps FiscNet error codes. The device sends its own description in
// the Circunstancia field, which replaces the one below.
var Errors = driver.NewErrorMapper("fiscnet", 0, map[int]driver.ErrorEntry{
	7003:  {driver.KindHardware, driver.ErrOutOfPaper, "out of paper"},
	7004:  {driver.KindHardware, driver.ErrOutOfPaper, "paper near end"},
	8005:  {driver.KindCommand, driver.ErrCommand, "tax rate not loaded"},
	8007:  {driver.KindCommand, driver.ErrCouponTotalize, "cannot totalize coupon"},
	8011:  {driver.KindCommand, driver.ErrPaymentAddition, "cannot add payment"},
	8013:  {driver.KindCommand, driver.ErrCouponTotalize, "cannot totalize coupon"},
	8014:  {driver.KindCommand, driver.ErrPaymentAddition, "payment method not loaded"},
	8017:  {driver.KindCommand, driver.ErrCloseCoupon, "cannot close coupon"},
	8036:  {driver.KindCommand, driver.ErrCommand, "already defined"},
	8044:  {driver.KindCommand, driver.ErrCancelItem, "cannot cancel item"},
	8045:  {driver.KindCommand, driver.ErrCancelItem, "cannot cancel item"},
	8057:  {driver.KindCommand, driver.ErrCommand, "non fiscal register not configured"},
	8068:  {driver.KindCommand, driver.ErrPaymentAddition, "cannot add payment"},
	8086:  {driver.KindCommand, driver.ErrCancelItem, "cannot cancel item"},
	8089:  {driver.KindCommand, driver.ErrCommand, "no data in range"},
	11002: {driver.KindCommand, driver.ErrCommandParameters, "invalid command parameters"},
	11006: {driver.KindCommand, driver.ErrCommand, "command error"},
	11007: {driver.KindState, driver.ErrInvalidState, "invalid state for command"},
	15007: {driver.KindState, driver.ErrPendingReadX, "read X pending"},
	15008: {driver.KindCommand, driver.ErrReadX, "read X failed"},
	15009: {driver.KindState, driver.ErrPendingReduceZ, "reduce Z pending"},
	15011: {driver.KindHardware, driver.ErrOutOfPaper, "out of paper"},
})
