// internal/protocol/stxetx/errors.go
package stxetx

import "ecf-service/pkg/driver"

// Reply status words.
const (
	StatusOK        = 0x0000
	StatusEndOfList = 0x090C
)

// Errors maps FB reply status words. Anything else surfaces as an unmapped
// DriverError carrying the raw word.
var Errors = driver.NewErrorMapper("epson", StatusOK, map[int]driver.ErrorEntry{
	StatusEndOfList: {driver.KindCommand, driver.ErrCommand, "end of list"},
})

// IsEndOfList reports whether err is the status that ends a register
// listing.
func IsEndOfList(err error) bool {
	code, ok := driver.CodeOf(err)
	return ok && code == StatusEndOfList
}
