// internal/charset/charset.go
package charset

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Names accepted by Lookup.
const (
	ASCII       = "ascii"
	ABICOMPName = "abicomp"
	CP437       = "cp437"
	CP850       = "cp850"
	CP852       = "cp852"
	CP858       = "cp858"
	CP860       = "cp860"
	CP866       = "cp866"
	CP1252      = "cp1252"
	Latin1      = "latin1"
)

var encodings = map[string]encoding.Encoding{
	ABICOMPName:  ABICOMP,
	CP437:        charmap.CodePage437,
	CP850:        charmap.CodePage850,
	CP852:        charmap.CodePage852,
	CP858:        charmap.CodePage858,
	CP860:        charmap.CodePage860,
	CP866:        charmap.CodePage866,
	CP1252:       charmap.Windows1252,
	Latin1:       charmap.ISO8859_1,
	"iso-8859-1": charmap.ISO8859_1,
}

// Lookup returns the encoding registered under name.
func Lookup(name string) (encoding.Encoding, error) {
	enc, ok := encodings[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown charset %q", name)
	}
	return enc, nil
}

// Encode converts UTF-8 text to the named code page. Characters the code
// page cannot represent are dropped. The ascii charset strips diacritics
// first, so "ação" becomes "acao".
func Encode(name, text string) ([]byte, error) {
	if strings.EqualFold(name, ASCII) {
		t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
		s, _, err := transform.String(t, text)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize text: %w", err)
		}
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if r < 0x80 {
				out = append(out, byte(r))
			}
		}
		return out, nil
	}

	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	e := enc.NewEncoder()
	out := make([]byte, 0, len(text))
	var buf [4]byte
	for _, r := range text {
		n := copy(buf[:], string(r))
		b, err := e.Bytes(buf[:n])
		if err != nil {
			continue
		}
		out = append(out, b...)
	}
	return out, nil
}

// MustEncode is Encode for names known to be registered.
func MustEncode(name, text string) []byte {
	b, err := Encode(name, text)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode converts bytes in the named code page to UTF-8.
func Decode(name string, b []byte) (string, error) {
	if strings.EqualFold(name, ASCII) {
		return string(b), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s text: %w", name, err)
	}
	return string(out), nil
}
