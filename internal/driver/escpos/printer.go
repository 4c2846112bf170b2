// internal/driver/escpos/printer.go
package escpos

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ecf-service/internal/charset"
	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/graphics"
)

// Option configures a Printer.
type Option func(*Printer)

// WithCharset overrides the profile's code page.
func WithCharset(name string) Option {
	return func(p *Printer) {
		if name != "" {
			p.charset = name
		}
	}
}

// Printer drives a non fiscal receipt printer described by a Profile.
type Printer struct {
	port    *protocol.Port
	logger  *zap.Logger
	profile Profile
	charset string

	// ESC ! mode byte of TextMode profiles.
	mode byte
	// Font B is the default font of the ESC/POS profiles.
	condensed bool
	// Tracked only with TrackState.
	bold     bool
	centered bool
}

// New creates a printer over port.
func New(port *protocol.Port, profile Profile, logger *zap.Logger, opts ...Option) *Printer {
	p := &Printer{
		port:      port,
		logger:    logger.With(zap.String("driver", profile.Brand), zap.String("model", profile.Model)),
		profile:   profile,
		charset:   profile.Charset,
		condensed: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Printer) Info() driver.Info {
	return driver.Info{
		Brand:    p.profile.Brand,
		Model:    p.profile.Model,
		Charset:  p.charset,
		MaxChars: p.profile.MaxCharacters,
	}
}

func (p *Printer) Close() error { return nil }

// Profile returns the model description the printer was built with.
func (p *Printer) Profile() Profile { return p.profile }

func (p *Printer) MaxCharacters() int { return p.profile.MaxCharacters }

// Setup brings the printer to its initial text state.
func (p *Printer) Setup(ctx context.Context) error {
	switch {
	case p.profile.SelectCodePage:
		if cmd := selectCodePage(p.charset); cmd != nil {
			if err := p.write(ctx, cmd); err != nil {
				return err
			}
		}
	case p.profile.ResetOnSetup:
		for _, step := range []func(context.Context) error{
			p.SetCondensed, p.Descentralize, p.UnsetBold, p.UnsetDoubleHeight,
		} {
			if err := step(ctx); err != nil {
				return err
			}
		}
	case p.profile.CondensedOnSetup:
		if err := p.write(ctx, p.profile.Commands.CondensedOn); err != nil {
			return err
		}
	}
	p.logger.Debug("Printer set up", zap.String("charset", p.charset))
	return nil
}

// write sends the non nil parts as one frame.
func (p *Printer) write(ctx context.Context, parts ...[]byte) error {
	data := bytes.Join(parts, nil)
	if len(data) == 0 {
		return nil
	}
	return p.port.Write(ctx, data)
}

func (p *Printer) Centralize(ctx context.Context) error {
	if p.profile.TrackState {
		if p.centered {
			return nil
		}
		p.centered = true
	}
	return p.write(ctx, p.profile.Commands.AlignCenter)
}

func (p *Printer) Descentralize(ctx context.Context) error {
	if p.profile.TrackState {
		if !p.centered {
			return nil
		}
		p.centered = false
	}
	return p.write(ctx, p.profile.Commands.AlignLeft)
}

func (p *Printer) setMode(ctx context.Context, mode byte) error {
	p.mode = mode
	return p.write(ctx, []byte{ESC, '!', mode})
}

func (p *Printer) SetBold(ctx context.Context) error {
	switch {
	case p.profile.TextMode:
		return p.setMode(ctx, p.mode|modeBold)
	case p.profile.TrackState:
		if p.bold {
			return nil
		}
		p.bold = true
	}
	return p.write(ctx, p.profile.Commands.BoldOn)
}

func (p *Printer) UnsetBold(ctx context.Context) error {
	switch {
	case p.profile.TextMode:
		return p.setMode(ctx, p.mode&^modeBold)
	case p.profile.TrackState:
		if !p.bold {
			return nil
		}
		p.bold = false
	}
	return p.write(ctx, p.profile.Commands.BoldOff)
}

func (p *Printer) SetCondensed(ctx context.Context) error {
	if p.profile.TextMode {
		return p.setMode(ctx, p.mode|modeCondensed)
	}
	p.condensed = true
	return p.write(ctx, p.profile.Commands.CondensedOn)
}

func (p *Printer) UnsetCondensed(ctx context.Context) error {
	if p.profile.TextMode {
		return p.setMode(ctx, p.mode&^modeCondensed)
	}
	p.condensed = false
	return p.write(ctx, p.profile.Commands.CondensedOff)
}

func (p *Printer) SetDoubleHeight(ctx context.Context) error {
	if p.profile.TextMode {
		return p.setMode(ctx, p.mode|modeDoubleHeight)
	}
	return p.write(ctx, p.profile.Commands.DoubleHeightOn)
}

func (p *Printer) UnsetDoubleHeight(ctx context.Context) error {
	if p.profile.TextMode {
		return p.setMode(ctx, p.mode&^modeDoubleHeight)
	}
	return p.write(ctx, p.profile.Commands.DoubleHeightOff)
}

func (p *Printer) PrintLine(ctx context.Context, text string) error {
	return p.PrintInline(ctx, text+"\n")
}

// PrintInline writes text in the printer code page, preceded by the font
// command on profiles that have one. Empty text writes nothing.
func (p *Printer) PrintInline(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	encoded, err := charset.Encode(p.charset, text)
	if err != nil {
		return err
	}
	font := p.profile.Commands.Font
	if p.condensed {
		font = p.profile.Commands.FontCondensed
	}
	return p.write(ctx, font, encoded)
}

func (p *Printer) PrintBarcode(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	data := charset.MustEncode(charset.ASCII, code)
	switch p.profile.Barcode {
	case BarcodeCode93:
		return p.printCode93(ctx, data)
	case BarcodeCode128Chunked:
		return p.printCode128Chunked(ctx, data)
	case BarcodeDaruma:
		// code 128, width 2, height 80, no label
		return p.write(ctx, []byte{ESC, 'b', 5, 2, 80, 0}, data, []byte{0x00, LF})
	case BarcodeCode128:
		return p.write(ctx,
			barcodeHeight, []byte{120},
			barcodeWidth, []byte{2},
			barcodeHRIOff,
			barcode128, []byte{byte(len(data))}, data,
		)
	}
	return fmt.Errorf("%w: barcode style %d", driver.ErrNotSupported, p.profile.Barcode)
}

// printCode93 splits codes longer than MaxBarcode in two symbols on
// separate lines.
func (p *Printer) printCode93(ctx context.Context, data []byte) error {
	if limit := p.profile.MaxBarcode; limit > 0 && len(data) > limit {
		half := len(data) / 2
		if err := p.printCode93(ctx, data[:half]); err != nil {
			return err
		}
		if err := p.PrintLine(ctx, ""); err != nil {
			return err
		}
		return p.printCode93(ctx, data[half:])
	}
	return p.write(ctx,
		barcodeHeight, []byte{80},
		barcodeWidth, []byte{2},
		barcodeFontA,
		barcodeHRIOff,
		barcodeCode93, []byte{byte(len(data))}, data,
	)
}

// printCode128Chunked prints code set A symbols of at most 22 characters.
func (p *Printer) printCode128Chunked(ctx context.Context, data []byte) error {
	const chunk = 22
	parts := [][]byte{barcodeHeight, {80}, barcodeWidth, {2}}
	for i := 0; i < len(data); i += chunk {
		end := min(i+chunk, len(data))
		// the {A code set selector counts in the length
		parts = append(parts, barcode128, []byte{byte(end - i + 2), '{', 'A'}, data[i:end])
	}
	parts = append(parts, []byte{LF})
	return p.write(ctx, parts...)
}

func (p *Printer) PrintQRCode(ctx context.Context, code string) error {
	data := charset.MustEncode(charset.ASCII, code)
	switch p.profile.QRCode {
	case QRNative:
		return p.write(ctx, qrNative(data))
	case QRRaster:
		matrix, err := graphics.QRMatrix(code)
		if err != nil {
			return err
		}
		return p.PrintMatrix(ctx, matrix, graphics.API24, 3)
	case QRDaruma:
		n := len(data)
		// size bytes, module width 3, automatic correction
		header := []byte{ESC, 0x81, byte((n & 0xff) + 2), byte(n >> 8), 3, 0}
		return p.write(ctx, header, data, []byte{LF})
	}
	return fmt.Errorf("%w: qr codes on %s", driver.ErrNotSupported, p.profile.Name)
}

// PrintMatrix prints a bitmap as ESC * strips with 24 dot line spacing.
// An api of zero picks the 8 bit encoding unless the image is too wide for
// it. TextMode profiles drop condensed mode while printing since it leaves
// gaps between strips.
func (p *Printer) PrintMatrix(ctx context.Context, matrix [][]bool, api int, multiplier int) (err error) {
	if multiplier < 1 {
		multiplier = 1
	}
	var lines []graphics.RasterLine
	if api == 0 {
		lines, err = graphics.EncodeAuto(matrix, multiplier, p.profile.MaxDots, true)
	} else {
		lines, err = graphics.Encode(matrix, api, multiplier, p.profile.MaxDots, true)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", driver.ErrInvalidArgument, err)
	}

	if p.profile.TextMode && p.mode&modeCondensed != 0 {
		if err := p.UnsetCondensed(ctx); err != nil {
			return err
		}
		defer func() {
			if serr := p.SetCondensed(ctx); serr != nil && err == nil {
				err = serr
			}
		}()
	}

	if err = p.write(ctx, p.profile.Commands.LineSpacing24); err != nil {
		return err
	}
	for _, line := range lines {
		if err = p.write(ctx, bitImage(line.API, line.DotColumns()), line.Bytes, []byte{LF}); err != nil {
			return err
		}
	}
	return p.write(ctx, p.profile.Commands.LineSpacingReset)
}

// CutPaper feeds CutLineFeeds lines and cuts.
func (p *Printer) CutPaper(ctx context.Context) error {
	cut := p.profile.Commands.Cut
	if cut == nil {
		return fmt.Errorf("%w: paper cut on %s", driver.ErrNotSupported, p.profile.Name)
	}
	if err := p.PrintInline(ctx, strings.Repeat("\n", p.profile.CutLineFeeds)); err != nil {
		return err
	}
	return p.write(ctx, cut)
}

func (p *Printer) OpenDrawer(ctx context.Context) error {
	kick := p.profile.Commands.DrawerKick
	if kick == nil {
		return fmt.Errorf("%w: cash drawer on %s", driver.ErrNotSupported, p.profile.Name)
	}
	return p.write(ctx, kick)
}

func (p *Printer) IsDrawerOpen(ctx context.Context) (bool, error) {
	query := p.profile.Commands.DrawerStatus
	if query == nil {
		return false, fmt.Errorf("%w: cash drawer on %s", driver.ErrNotSupported, p.profile.Name)
	}
	if err := p.write(ctx, query); err != nil {
		return false, err
	}
	b, err := p.port.ReadByte(ctx)
	if err != nil {
		return false, err
	}
	if p.profile.Drawer == DrawerZeroOpen {
		return b == 0, nil
	}
	return b&0x04 == 0, nil
}
