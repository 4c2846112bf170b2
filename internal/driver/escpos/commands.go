// internal/driver/escpos/commands.go
package escpos

import "ecf-service/internal/charset"

// Control bytes.
const (
	LF  byte = 0x0a
	DLE byte = 0x10
	EOT byte = 0x04
	ESC byte = 0x1b
	GS  byte = 0x1d
	SI  byte = 0x0f
	DC2 byte = 0x12
)

// Commands is the byte sequence table of one printer dialect. A nil entry
// means the dialect has no such command and the call is a no-op.
type Commands struct {
	// Font is written before every inline text. FontCondensed replaces it
	// while condensed mode is on.
	Font          []byte
	FontCondensed []byte

	CondensedOn     []byte
	CondensedOff    []byte
	BoldOn          []byte
	BoldOff         []byte
	DoubleHeightOn  []byte
	DoubleHeightOff []byte
	AlignCenter     []byte
	AlignLeft       []byte

	LineSpacing24    []byte
	LineSpacingReset []byte

	Cut []byte

	DrawerKick   []byte
	DrawerStatus []byte
}

// Standard holds the Epson ESC/POS commands most profiles share.
var Standard = Commands{
	Font:          []byte{ESC, 'M', '0'}, // ESC M 0, font A
	FontCondensed: []byte{ESC, 'M', '1'}, // ESC M 1, font B

	BoldOn:          []byte{ESC, 0x45, 0x01}, // ESC E 1
	BoldOff:         []byte{ESC, 0x45, 0x00}, // ESC E 0
	DoubleHeightOn:  []byte{GS, 0x21, 0x10},  // GS ! 16
	DoubleHeightOff: []byte{GS, 0x21, 0x00},  // GS ! 0
	AlignCenter:     []byte{ESC, 0x61, 0x01}, // ESC a 1
	AlignLeft:       []byte{ESC, 0x61, 0x00}, // ESC a 0

	LineSpacing24:    []byte{ESC, '3', 24}, // ESC 3 24
	LineSpacingReset: []byte{ESC, '2'},     // ESC 2

	Cut: []byte{GS, 0x56, 0x00}, // GS V 0

	DrawerKick:   []byte{ESC, 0x70, 0x00, 0x19, 0x19}, // ESC p 0 25 25
	DrawerStatus: []byte{DLE, EOT, 0x01},              // DLE EOT 1
}

// Barcode parameters.
var (
	barcodeHeight = []byte{GS, 'h'}
	barcodeWidth  = []byte{GS, 'w'}
	barcodeFontA  = []byte{GS, 'f', 0x00}
	barcodeHRIOff = []byte{GS, 'H', 0x00}
	barcodeCode93 = []byte{GS, 'k', 'H'}
	barcode128    = []byte{GS, 'k', 'I'}
)

// codePages maps charsets to their ESC t table numbers.
var codePages = map[string]byte{
	charset.CP437:  0,
	charset.CP850:  2,
	charset.CP860:  3,
	charset.CP1252: 16,
	charset.CP866:  17,
	charset.CP852:  18,
	charset.CP858:  19,
}

// selectCodePage returns ESC t n, or nil when the table has no number for
// name.
func selectCodePage(name string) []byte {
	n, ok := codePages[name]
	if !ok {
		return nil
	}
	return []byte{ESC, 't', n}
}

// bitImage is the ESC * header for a raster strip: m 0 is 8 dot single
// density, m 33 is 24 dot double density.
func bitImage(api, columns int) []byte {
	m := byte(0)
	if api == 24 {
		m = 33
	}
	return []byte{ESC, '*', m, byte(columns & 0xff), byte(columns >> 8 & 0xff)}
}

// qrNative is the GS ( k sequence that stores and prints code with module
// size 4 and error correction L.
func qrNative(code []byte) []byte {
	out := []byte{GS, '(', 'k', 0x03, 0x00, 49, 67, 4} // size
	out = append(out, GS, '(', 'k', 0x03, 0x00, 49, 69, 48) // correction
	n := 3 + len(code)
	out = append(out, GS, '(', 'k', byte(n&0xff), byte(n>>8&0xff), 49, 80, 48)
	out = append(out, code...)
	return append(out, GS, '(', 'k', 0x03, 0x00, 49, 81, 48) // print
}
