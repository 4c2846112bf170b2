// internal/protocol/fiscnet/codec.go
package fiscnet

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

// Frame delimiters.
const (
	Start byte = '{'
	End   byte = '}'
	Sep   byte = ';'
)

// EncodeRequest renders {id;Name;K=V K=V;}. Parameters are sorted by name.
func EncodeRequest(id int, name string, params []protocol.Param) ([]byte, error) {
	sorted := make([]protocol.Param, 0, len(params))
	for _, p := range params {
		if p.Value != nil {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	buf.WriteByte(Start)
	buf.WriteString(strconv.Itoa(id))
	buf.WriteByte(Sep)
	buf.WriteString(name)
	buf.WriteByte(Sep)
	for i, p := range sorted {
		v, err := RenderValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(p.Name)
		buf.WriteByte('=')
		buf.Write(v)
	}
	buf.WriteByte(Sep)
	buf.WriteByte(End)
	return buf.Bytes(), nil
}

// RenderValue renders a single parameter value.
func RenderValue(v any) ([]byte, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return []byte(strings.Replace(x.StringFixedBank(3), ".", ",", 1)), nil
	case string:
		return quote([]byte(x)), nil
	case []byte:
		return quote(x), nil
	case bool:
		if x {
			return []byte("t"), nil
		}
		return []byte("f"), nil
	case time.Time:
		return []byte(x.Format("#02/01/06#")), nil
	case int:
		return []byte(strconv.Itoa(x)), nil
	case int64:
		return []byte(strconv.FormatInt(x, 10)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", driver.ErrInvalidArgument, v)
	}
}

func quote(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	out = append(out, '"')
	for _, c := range b {
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return append(out, '"')
}

// Frame is a decoded request or reply.
type Frame struct {
	ID int
	// Name is the command name of a request or the status code of a reply.
	Name   string
	Values map[string]string
}

// DecodeFrame parses {id;name;values;}. The trailing section after the last
// separator must be empty, so a well formed frame has exactly four sections.
func DecodeFrame(frame []byte) (*Frame, error) {
	if len(frame) < 2 || frame[0] != Start || frame[len(frame)-1] != End {
		return nil, fmt.Errorf("%w: reply not delimited by braces: %q", driver.ErrMalformedFrame, frame)
	}
	sections := splitSections(frame[1 : len(frame)-1])
	if len(sections) != 4 || len(sections[3]) != 0 {
		return nil, fmt.Errorf("%w: expected 4 sections, got %d", driver.ErrMalformedFrame, len(sections))
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(sections[0])))
	if err != nil {
		return nil, fmt.Errorf("%w: bad id %q", driver.ErrMalformedFrame, sections[0])
	}
	values, err := ParseValues(string(sections[2]))
	if err != nil {
		return nil, err
	}
	return &Frame{ID: id, Name: strings.TrimSpace(string(sections[1])), Values: values}, nil
}

// splitSections splits on ';' outside of quoted values.
func splitSections(b []byte) [][]byte {
	var (
		out     [][]byte
		start   int
		quoted  bool
		escaped bool
	)
	for i, c := range b {
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == Sep && !quoted:
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	return append(out, b[start:])
}

// ParseValues parses the results section. The grammar is a whitespace
// separated list of
//
//	Name="quoted \" value"
//	Name=bare
//	Name
//
// A lone Name maps to the empty string.
func ParseValues(text string) (map[string]string, error) {
	result := make(map[string]string)
	i := 0
	skip := func() {
		for i < len(text) && isSpace(text[i]) {
			i++
		}
	}
	for {
		skip()
		if i >= len(text) {
			return result, nil
		}
		start := i
		for i < len(text) && !isSpace(text[i]) && text[i] != '=' && text[i] != Sep {
			i++
		}
		if i == start {
			return nil, fmt.Errorf("%w: unexpected %q at %d", driver.ErrMalformedFrame, text[i], i)
		}
		name := text[start:i]

		j := i
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j >= len(text) || text[j] != '=' {
			result[name] = ""
			continue
		}
		i = j + 1
		skip()

		if i < len(text) && text[i] == '"' {
			value, n, err := unquote(text[i:])
			if err != nil {
				return nil, err
			}
			result[name] = value
			i += n
			continue
		}
		start = i
		for i < len(text) && !isSpace(text[i]) && text[i] != Sep {
			i++
		}
		result[name] = text[start:i]
	}
}

// unquote reads a quoted value at the start of s and returns it with the
// number of bytes consumed.
func unquote(s string) (string, int, error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("%w: dangling escape", driver.ErrMalformedFrame)
			}
			i++
			sb.WriteByte(s[i])
		case '"':
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated quoted value", driver.ErrMalformedFrame)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// ParseDate reads "#dd/mm/yyyy#" or "#dd/mm/yy#". The device reports
// "#00/00/0000#" before its first reduction; ok is false then.
func ParseDate(s string) (t time.Time, ok bool, err error) {
	s = strings.Trim(s, "#")
	if s == "00/00/0000" || s == "00/00/00" {
		return time.Time{}, false, nil
	}
	layout := "02/01/2006"
	if len(s) == 8 {
		layout = "02/01/06"
	}
	t, err = time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: bad date %q", driver.ErrMalformedFrame, s)
	}
	return t, true, nil
}

// ParseMoney reads a register value such as "1.234,56".
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ".", "")
	return protocol.ParseCommaDecimal(s)
}
