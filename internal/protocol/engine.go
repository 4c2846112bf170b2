// internal/protocol/engine.go
package protocol

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

// Engine performs one request/response exchange with a device: encode,
// write, blocking read with the family's bounded retry policy, decode, and
// error check. An Engine owns its Port; callers serialize access.
type Engine interface {
	Send(ctx context.Context, cmd Command) (*Reply, error)
}

// Command is a request in any of the three families. Each engine reads the
// fields that apply to its framing and ignores the rest.
type Command struct {
	// Name is the FiscNet command name or the STX/ETX command word ("0A01").
	Name string
	// Op is the single byte command of ESC framing.
	Op byte
	// Prefix selects the ESC framing extended frame when non zero.
	Prefix byte
	// Ext is the STX/ETX extension word.
	Ext string
	// Payload is appended verbatim after Op.
	Payload []byte
	// Args are the STX/ETX fields, escaped on the wire.
	Args [][]byte
	// Params are the FiscNet named parameters.
	Params []Param
}

// Param is a FiscNet named value. Value may be a string, int, bool,
// decimal.Decimal or time.Time.
type Param struct {
	Name  string
	Value any
}

// Reply is a decoded device answer.
type Reply struct {
	// Status is the device reply code; zero or the vendor success code.
	Status int
	// Fields holds the positional result fields.
	Fields [][]byte
	// Values holds FiscNet named results.
	Values map[string]string
	// PrinterStatus and FiscalStatus are the STX/ETX status words.
	PrinterStatus uint16
	FiscalStatus  uint16
	// Intermediate collects the fields of any intermediate replies.
	Intermediate [][][]byte
	Raw          []byte
}

// Field returns positional field i, or nil.
func (r *Reply) Field(i int) []byte {
	if r == nil || i < 0 || i >= len(r.Fields) {
		return nil
	}
	return r.Fields[i]
}

// String returns the named FiscNet value.
func (r *Reply) String(name string) string {
	if r == nil {
		return ""
	}
	return r.Values[name]
}

// Int parses the named FiscNet value.
func (r *Reply) Int(name string) (int, error) {
	return strconv.Atoi(r.String(name))
}

// Decimal parses the named FiscNet value, which uses a comma separator.
func (r *Reply) Decimal(name string) (decimal.Decimal, error) {
	return ParseCommaDecimal(r.String(name))
}

// P is a shorthand Param constructor.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// ParseCommaDecimal parses "12,50" or "12.50".
func ParseCommaDecimal(s string) (decimal.Decimal, error) {
	b := []byte(s)
	for i, c := range b {
		if c == ',' {
			b[i] = '.'
		}
	}
	return decimal.NewFromString(string(b))
}
