package graphics

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func blankMatrix(rows, cols int) [][]bool {
	m := make([][]bool, rows)
	for i := range m {
		m[i] = make([]bool, cols)
	}
	return m
}

func TestEncodeBlankMatrixColumnCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 200).Draw(t, "width")
		h := rapid.IntRange(1, 50).Draw(t, "height")

		lines, err := Encode(blankMatrix(h, w), API8, 1, 0, false)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if len(lines) != (h+7)/8 {
			t.Fatalf("expected %d strips, got %d", (h+7)/8, len(lines))
		}
		for _, l := range lines {
			if l.Columns != w {
				t.Fatalf("columns %d != width %d", l.Columns, w)
			}
			if l.Padding != 0 {
				t.Fatalf("unexpected padding %d", l.Padding)
			}
			for _, b := range l.Bytes {
				if b != 0 {
					t.Fatalf("blank matrix produced %#x", b)
				}
			}
		}
	})
}

func TestEncode8BitPacking(t *testing.T) {
	// Column 0 has the top row set, column 1 the bottom row.
	m := blankMatrix(8, 2)
	m[0][0] = true
	m[7][1] = true

	lines, err := Encode(m, API8, 1, 0, false)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, []byte{0x80, 0x80, 0x80, 0x01, 0x01, 0x01}, lines[0].Bytes)
	assert.Equal(t, 6, lines[0].DotColumns())
	assert.Equal(t, 2, lines[0].Columns)
}

func TestEncode24BitPackingWithMultiplier(t *testing.T) {
	m := blankMatrix(8, 1)
	m[0][0] = true

	lines, err := Encode(m, API24, 3, 0, false)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	// Row 0 repeated three times fills the top three bits of the first byte.
	assert.Equal(t, []byte{0xE0, 0, 0, 0xE0, 0, 0, 0xE0, 0, 0}, lines[0].Bytes)
	assert.Equal(t, 3, lines[0].DotColumns())
	assert.Equal(t, 3, lines[0].Columns)
}

func TestEncodePadsShortFinalStrip(t *testing.T) {
	m := [][]bool{{true}, {true}, {true}, {true}, {true}, {true}, {true}, {true}, {true}}
	lines, err := Encode(m, API8, 1, 0, false)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, byte(0xFF), lines[0].Bytes[0])
	assert.Equal(t, byte(0x80), lines[1].Bytes[0])
}

func TestEncodeCentered(t *testing.T) {
	lines, err := Encode(blankMatrix(8, 10), API24, 1, 100, true)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 45, lines[0].Padding)
	assert.Equal(t, 55, lines[0].DotColumns())
	assert.Equal(t, 10, lines[0].Columns)
}

func TestEncodeRejectsBadInput(t *testing.T) {
	_, err := Encode(blankMatrix(1, 1), 16, 1, 0, false)
	assert.ErrorIs(t, err, ErrUnsupportedAPI)

	_, err = Encode(blankMatrix(1, 1), API8, 0, 0, false)
	assert.ErrorIs(t, err, ErrInvalidMatrix)

	_, err = Encode([][]bool{{true, false}, {true}}, API8, 1, 0, false)
	assert.ErrorIs(t, err, ErrInvalidMatrix)
}

func TestEncodeAutoUpgradesWideBitmaps(t *testing.T) {
	const maxColumns = 512

	// 8 bit needs 3 dot columns per pixel: 200 pixels is 600 > 512.
	lines, err := EncodeAuto(blankMatrix(30, 200), 1, maxColumns, false)
	require.NoError(t, err)
	for _, l := range lines {
		assert.Equal(t, API24, l.API)
		assert.Equal(t, 200, l.Columns)
		assert.Equal(t, 200, l.DotColumns())
	}

	lines, err = EncodeAuto(blankMatrix(30, 100), 1, maxColumns, false)
	require.NoError(t, err)
	for _, l := range lines {
		assert.Equal(t, API8, l.API)
		assert.Equal(t, 300, l.DotColumns())
	}
}

func TestEncodeAutoNeverMixesAPIs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 300).Draw(t, "width")
		h := rapid.IntRange(1, 60).Draw(t, "height")
		maxCols := rapid.IntRange(100, 600).Draw(t, "max")

		lines, err := EncodeAuto(blankMatrix(h, w), 1, maxCols, rapid.Bool().Draw(t, "centered"))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		for _, l := range lines {
			if l.API != lines[0].API {
				t.Fatalf("mixed apis %d and %d", l.API, lines[0].API)
			}
		}
		if lines[0].API == API24 && 3*w <= maxCols {
			t.Fatalf("upgraded a bitmap that fits: width %d max %d", w, maxCols)
		}
	})
}

func TestFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(1, 0, color.Gray{Y: 255})

	m := FromImage(img, 128)
	assert.Equal(t, [][]bool{{true, false}}, m)
}

func TestQRMatrixIsSquare(t *testing.T) {
	m, err := QRMatrix("https://example.com/nfce?p=123")
	require.NoError(t, err)
	require.NotEmpty(t, m)
	for _, row := range m {
		assert.Len(t, row, len(m))
	}
}
