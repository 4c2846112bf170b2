// internal/protocol/escbyte/errors.go
package escbyte

import "ecf-service/pkg/driver"

// Device error codes with special handling.
const (
	CodeNoPaper      = 21
	CodeClockBusy    = 35
	CodeReadXPending = 42
	CodeBusy         = 99
)

// Errors maps the ":Enn" codes of the Daruma FS series.
var Errors = driver.NewErrorMapper("daruma", 0, map[int]driver.ErrorEntry{
	10: {driver.KindState, driver.ErrCouponAlreadyOpen, "document is already open"},
	11: {driver.KindState, driver.ErrCouponNotOpen, "coupon is not open"},
	12: {driver.KindState, driver.ErrCouponNotOpen, "there is no open document to cancel"},
	15: {driver.KindCommand, driver.ErrCancelItem, "there is no such item in the coupon"},
	16: {driver.KindCommand, driver.ErrCommandParameters, "bad discount/markup parameter"},
	21: {driver.KindHardware, driver.ErrOutOfPaper, "no paper"},
	22: {driver.KindState, driver.ErrReduceZ, "reduce Z was already sent today"},
	23: {driver.KindState, driver.ErrPendingReduceZ, "pending reduce Z"},
	24: {driver.KindCommand, driver.ErrCommandParameters, "bad unit specified"},
	35: {driver.KindRetryable, driver.ErrBusy, "clock inoperative"},
	39: {driver.KindCommand, driver.ErrCommandParameters, "bad parameters"},
	42: {driver.KindState, driver.ErrPendingReadX, "read X has not been sent yet"},
	45: {driver.KindCommand, driver.ErrCommandParameters, "required field is blank"},
	99: {driver.KindRetryable, driver.ErrBusy, "device busy"},
})
