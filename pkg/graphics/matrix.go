// pkg/graphics/matrix.go
package graphics

import (
	"fmt"
	"image"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"
)

// FromImage thresholds img into a bitmap; a pixel is set when its luminance
// is below threshold.
func FromImage(img image.Image, threshold uint8) [][]bool {
	b := img.Bounds()
	matrix := make([][]bool, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := make([]bool, b.Dx())
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			row[x-b.Min.X] = g.Y < threshold
		}
		matrix[y-b.Min.Y] = row
	}
	return matrix
}

// QRMatrix renders text as a QR code bitmap without the quiet zone.
func QRMatrix(text string) ([][]bool, error) {
	q, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build qr code: %w", err)
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}
