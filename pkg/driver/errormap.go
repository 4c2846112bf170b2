// pkg/driver/errormap.go
package driver

import (
	"fmt"
	"sort"
)

// ErrorEntry describes what a single vendor status code means.
type ErrorEntry struct {
	Kind        ErrorKind
	Err         error
	Description string
}

// ErrorMapper is a static per-vendor table from status code to error.
type ErrorMapper struct {
	Vendor  string
	Success int
	Table   map[int]ErrorEntry
}

// NewErrorMapper builds a mapper. The table is copied so the caller may not
// mutate it afterwards.
func NewErrorMapper(vendor string, success int, table map[int]ErrorEntry) *ErrorMapper {
	t := make(map[int]ErrorEntry, len(table))
	for code, entry := range table {
		t[code] = entry
	}
	return &ErrorMapper{Vendor: vendor, Success: success, Table: t}
}

// Check returns nil for the success code and a *DriverError otherwise.
// detail, when present, replaces the table description.
func (m *ErrorMapper) Check(code int, detail string) error {
	if code == m.Success {
		return nil
	}
	entry, ok := m.Table[code]
	if !ok {
		msg := detail
		if msg == "" {
			msg = fmt.Sprintf("unhandled status code %d", code)
		}
		return &DriverError{Kind: KindUnmapped, Vendor: m.Vendor, Code: code, Message: msg, Err: ErrProtocol}
	}
	msg := entry.Description
	if detail != "" {
		msg = detail
	}
	return &DriverError{Kind: entry.Kind, Vendor: m.Vendor, Code: code, Message: msg, Err: entry.Err}
}

// Lookup returns the entry for code.
func (m *ErrorMapper) Lookup(code int) (ErrorEntry, bool) {
	e, ok := m.Table[code]
	return e, ok
}

// Codes lists the mapped codes in ascending order.
func (m *ErrorMapper) Codes() []int {
	codes := make([]int, 0, len(m.Table))
	for c := range m.Table {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
