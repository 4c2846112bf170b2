// pkg/graphics/encoder.go
package graphics

import (
	"errors"
	"fmt"
)

// Raster column encodings.
const (
	API8  = 8
	API24 = 24
)

var (
	ErrUnsupportedAPI = errors.New("graphics: unsupported raster api")
	ErrInvalidMatrix  = errors.New("graphics: invalid matrix")
)

// RasterLine is one horizontal strip of a bitmap in device column format.
type RasterLine struct {
	Bytes []byte
	// Columns is the bitmap width after the multiplier, without centering
	// padding.
	Columns int
	// Padding is the number of blank dot columns prepended for centering.
	Padding int
	API     int
}

// DotColumns is the column count the device header expects for Bytes.
func (l RasterLine) DotColumns() int {
	return len(l.Bytes) / (l.API / 8)
}

// Encode packs matrix (rows x columns) into raster strips. Each strip covers
// api/multiplier source rows; every source pixel becomes a multiplier x
// multiplier block. On the 8 bit API each packed byte is emitted three times
// per multiplier step since single density dots are three times taller than
// wide. When centered is set, strips are left padded to the middle of
// maxColumns dot columns.
func Encode(matrix [][]bool, api, multiplier, maxColumns int, centered bool) ([]RasterLine, error) {
	if api != API8 && api != API24 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAPI, api)
	}
	if multiplier < 1 || multiplier > api {
		return nil, fmt.Errorf("%w: multiplier %d", ErrInvalidMatrix, multiplier)
	}
	if len(matrix) == 0 {
		return nil, nil
	}
	width := len(matrix[0])
	for i, row := range matrix {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidMatrix, i, len(row), width)
		}
	}

	stripRows := api / multiplier
	bytesPerDot := api / 8
	blank := make([]bool, width)

	var lines []RasterLine
	for top := 0; top < len(matrix); top += stripRows {
		strip := make([][]bool, stripRows)
		for r := 0; r < stripRows; r++ {
			if top+r < len(matrix) {
				strip[r] = matrix[top+r]
			} else {
				strip[r] = blank
			}
		}

		out := make([]byte, 0, width*3*multiplier)
		bits := make([]bool, 0, api)
		for col := 0; col < width; col++ {
			bits = bits[:0]
			for _, row := range strip {
				for m := 0; m < multiplier; m++ {
					bits = append(bits, row[col])
				}
			}

			switch api {
			case API8:
				b := packBits(bits)
				for n := 0; n < 3*multiplier; n++ {
					out = append(out, b)
				}
			case API24:
				var group [3]byte
				for k := 0; k < 3; k++ {
					lo, hi := k*8, k*8+8
					if hi > len(bits) {
						hi = len(bits)
					}
					if lo < hi {
						group[k] = packBits(bits[lo:hi])
					}
				}
				for m := 0; m < multiplier; m++ {
					out = append(out, group[:]...)
				}
			}
		}

		line := RasterLine{Columns: width * multiplier, API: api}
		if centered {
			dots := len(out) / bytesPerDot
			if diff := maxColumns - dots; diff > 1 {
				line.Padding = diff / 2
				padded := make([]byte, line.Padding*bytesPerDot, line.Padding*bytesPerDot+len(out))
				out = append(padded, out...)
			}
		}
		line.Bytes = out
		lines = append(lines, line)
	}
	return lines, nil
}

// EncodeAuto encodes on the 8 bit API and switches the whole bitmap to the
// 24 bit API when any strip would exceed maxColumns. The decision is taken
// before any strip is returned, so callers never mix headers.
func EncodeAuto(matrix [][]bool, multiplier, maxColumns int, centered bool) ([]RasterLine, error) {
	lines, err := Encode(matrix, API8, multiplier, maxColumns, false)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if maxColumns > 0 && l.DotColumns() > maxColumns {
			return Encode(matrix, API24, multiplier, maxColumns, centered)
		}
	}
	if !centered {
		return lines, nil
	}
	return Encode(matrix, API8, multiplier, maxColumns, true)
}

// packBits packs bits MSB first, right aligned when fewer than 8 are given.
func packBits(bits []bool) byte {
	var b byte
	for _, bit := range bits {
		b <<= 1
		if bit {
			b |= 1
		}
	}
	return b
}
