package escpos

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/graphics"
)

type script struct {
	t  *testing.T
	sb strings.Builder
}

func newScript(t *testing.T) *script { return &script{t: t} }

func (s *script) w(parts ...[]byte) *script {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	s.sb.WriteString("W " + protocol.EscapeTranscript(b) + "\n")
	return s
}

func (s *script) r(b ...byte) *script {
	s.sb.WriteString("R " + protocol.EscapeTranscript(b) + "\n")
	return s
}

func (s *script) printer(profile Profile, opts ...Option) (*Printer, *protocol.PlaybackConnection) {
	pc, err := protocol.NewPlaybackString(s.sb.String())
	require.NoError(s.t, err)
	logger := zaptest.NewLogger(s.t)
	return New(protocol.NewPort(pc, logger), profile, logger, opts...), pc
}

func b(s string) []byte { return []byte(s) }

func TestStandardSetupSelectsCodePage(t *testing.T) {
	p, pc := newScript(t).w(b("\x1bt\x02")).printer(TMT20)
	require.NoError(t, p.Setup(context.Background()))
	assert.True(t, pc.Done())

	p, pc = newScript(t).w(b("\x1bt\x13")).printer(TP650, WithCharset("cp858"))
	require.NoError(t, p.Setup(context.Background()))
	assert.Equal(t, "cp858", p.Info().Charset)
	assert.True(t, pc.Done())
}

func TestPrintTextUsesFontAndCodePage(t *testing.T) {
	s := newScript(t).
		w(b("\x1bM1Ol\xa0\n")).
		w(b("\x1bE\x01")).
		w(b("\x1bM0x")).
		w(b("\x1d!\x01"))
	p, pc := s.printer(TMT20)
	ctx := context.Background()

	require.NoError(t, p.PrintLine(ctx, "Olá"))
	require.NoError(t, p.SetBold(ctx))
	require.NoError(t, p.UnsetCondensed(ctx))
	require.NoError(t, p.PrintInline(ctx, "x"))
	require.NoError(t, p.PrintInline(ctx, ""))
	require.NoError(t, p.SetDoubleHeight(ctx))
	assert.True(t, pc.Done())
}

func TestCode93(t *testing.T) {
	setup := b("\x1dh\x50\x1dw\x02\x1df\x00\x1dH\x00\x1dkH")
	p, pc := newScript(t).w(setup, b("\x03123")).printer(SI150)

	require.NoError(t, p.PrintBarcode(context.Background(), "123"))
	require.NoError(t, p.PrintBarcode(context.Background(), ""))
	assert.True(t, pc.Done())
}

func TestCode93SplitsLongCodes(t *testing.T) {
	code := strings.Repeat("1", 15) + strings.Repeat("2", 15)
	s := newScript(t).
		w(b("\x1dh\x50\x1dw\x02\x1df\x00\x1dH\x00\x1dkH\x0f"), b(strings.Repeat("1", 15))).
		w(b("\x1bM1\n")).
		w(b("\x1dh\x50\x1dw\x02\x1df\x00\x1dH\x00\x1dkH\x0f"), b(strings.Repeat("2", 15)))
	p, pc := s.printer(TMT70)

	require.NoError(t, p.PrintBarcode(context.Background(), code))
	assert.True(t, pc.Done())
}

func TestNativeQRCode(t *testing.T) {
	want := b("\x1d(k\x03\x001C\x04" +
		"\x1d(k\x03\x001E0" +
		"\x1d(k\x06\x001P0abc" +
		"\x1d(k\x03\x001Q0")
	p, pc := newScript(t).w(want).printer(TP650)

	require.NoError(t, p.PrintQRCode(context.Background(), "abc"))
	assert.True(t, pc.Done())
}

func TestRasterQRCode(t *testing.T) {
	matrix, err := graphics.QRMatrix("https://example.com")
	require.NoError(t, err)
	lines, err := graphics.Encode(matrix, graphics.API24, 3, BKC310.MaxDots, true)
	require.NoError(t, err)

	s := newScript(t).w(b("\x1b3\x18"))
	for _, l := range lines {
		s.w(bitImage(graphics.API24, l.DotColumns()), l.Bytes, b("\n"))
	}
	s.w(b("\x1b2"))
	p, pc := s.printer(BKC310)

	require.NoError(t, p.PrintQRCode(context.Background(), "https://example.com"))
	assert.True(t, pc.Done())
}

func TestPrintMatrixHeader(t *testing.T) {
	lines, err := graphics.Encode([][]bool{{true, false}}, graphics.API8, 1, 512, true)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 259, lines[0].DotColumns())

	s := newScript(t).
		w(b("\x1b3\x18")).
		w(b("\x1b*\x00\x03\x01"), lines[0].Bytes, b("\n")).
		w(b("\x1b2"))
	p, pc := s.printer(SI150)

	require.NoError(t, p.PrintMatrix(context.Background(), [][]bool{{true, false}}, graphics.API8, 1))
	assert.True(t, pc.Done())
}

func TestPrintMatrixRejectsRaggedRows(t *testing.T) {
	p, _ := newScript(t).printer(SI150)
	err := p.PrintMatrix(context.Background(), [][]bool{{true}, {true, false}}, graphics.API8, 1)
	assert.ErrorIs(t, err, driver.ErrInvalidArgument)
}

func TestTextModeProfile(t *testing.T) {
	lines, err := graphics.Encode([][]bool{{true}}, graphics.API8, 1, 512, true)
	require.NoError(t, err)

	s := newScript(t).
		w(b("\x1b!\x08")).
		w(b("\x1b!\x09")).
		w(b("\x1b!\x08")). // condensed dropped for the image
		w(b("\x1b3\x18")).
		w(bitImage(graphics.API8, lines[0].DotColumns()), lines[0].Bytes, b("\n")).
		w(b("\x1b2")).
		w(b("\x1b!\x09")).
		w(b("\x1b!\x01")).
		w(b("\x1b!\x11"))
	p, pc := s.printer(SI300)
	ctx := context.Background()

	require.NoError(t, p.SetBold(ctx))
	require.NoError(t, p.SetCondensed(ctx))
	require.NoError(t, p.PrintMatrix(ctx, [][]bool{{true}}, graphics.API8, 1))
	require.NoError(t, p.UnsetBold(ctx))
	require.NoError(t, p.SetDoubleHeight(ctx))
	assert.True(t, pc.Done())
}

func TestCutPaper(t *testing.T) {
	p, pc := newScript(t).w(b("\x1bM1\n\n\n\n")).w(b("\x1dV\x00")).printer(TMT20)
	require.NoError(t, p.CutPaper(context.Background()))
	assert.True(t, pc.Done())

	p, pc = newScript(t).w(b("\x1dV\x00")).printer(BKC310)
	require.NoError(t, p.CutPaper(context.Background()))
	assert.True(t, pc.Done())
}

func TestStandardDrawer(t *testing.T) {
	s := newScript(t).
		w(b("\x1bp\x00\x19\x19")).
		w(b("\x10\x04\x01")).r(0x12).
		w(b("\x10\x04\x01")).r(0x16)
	p, pc := s.printer(TMT20)
	ctx := context.Background()

	require.NoError(t, p.OpenDrawer(ctx))
	open, err := p.IsDrawerOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)
	open, err = p.IsDrawerOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)
	assert.True(t, pc.Done())
}

func TestI9(t *testing.T) {
	code := strings.Repeat("7", 25)
	s := newScript(t).
		w(b("\x1bM\x01")).w(b("\x1ba\x00")).w(b("\x1bE\x00")).w(b("\x1bG\x00")).
		w(b("abc\n")).
		w(b("\x1dh\x50\x1dw\x02"),
			b("\x1dkI\x18{A"), b(strings.Repeat("7", 22)),
			b("\x1dkI\x05{A777"),
			b("\n")).
		w(b("\x1dV0")).
		w(b("\x1bp005")).
		w(b("\x1dr2")).r(0x00).
		w(b("\x1dr2")).r(0x01)
	p, pc := s.printer(I9)
	ctx := context.Background()

	require.NoError(t, p.Setup(ctx))
	require.NoError(t, p.PrintLine(ctx, "abc"))
	require.NoError(t, p.PrintBarcode(ctx, code))
	require.NoError(t, p.CutPaper(ctx))
	require.NoError(t, p.OpenDrawer(ctx))
	open, err := p.IsDrawerOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)
	open, err = p.IsDrawerOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)
	assert.True(t, pc.Done())
}

func TestDR700(t *testing.T) {
	s := newScript(t).
		w(b("\x1b\x0f\x00")).w(b("\x1bj\x00")).w(b("\x1bF")).w(b("\x1bw\x00")).
		w(b("\x1bj\x01")).
		w(b("\x1bb\x05\x02\x50\x00789\x00\n")).
		w(b("\x1b\x81\x05\x00\x03\x00abc\n")).
		w(b("\n\n")).w(b("\x1bm"))
	p, pc := s.printer(DR700)
	ctx := context.Background()

	require.NoError(t, p.Setup(ctx))
	require.NoError(t, p.Centralize(ctx))
	require.NoError(t, p.PrintBarcode(ctx, "789"))
	require.NoError(t, p.PrintQRCode(ctx, "abc"))
	require.NoError(t, p.CutPaper(ctx))
	assert.ErrorIs(t, p.OpenDrawer(ctx), driver.ErrNotSupported)
	assert.True(t, pc.Done())
}

func TestMP2100THTracksState(t *testing.T) {
	s := newScript(t).
		w(b("\x1b\x0f")).
		w(b("\x1bE")).
		w(b("\x1bF")).
		w(b("\x1ba\x01")).
		w(b("\x1dh\x78\x1dw\x02\x1dH\x00\x1dkI\x0212"))
	p, pc := s.printer(MP2100TH)
	ctx := context.Background()

	require.NoError(t, p.Setup(ctx))
	require.NoError(t, p.SetBold(ctx))
	require.NoError(t, p.SetBold(ctx))
	require.NoError(t, p.UnsetBold(ctx))
	require.NoError(t, p.UnsetBold(ctx))
	require.NoError(t, p.Centralize(ctx))
	require.NoError(t, p.Centralize(ctx))
	require.NoError(t, p.PrintBarcode(ctx, "12"))
	assert.ErrorIs(t, p.PrintQRCode(ctx, "x"), driver.ErrNotSupported)
	assert.ErrorIs(t, p.CutPaper(ctx), driver.ErrNotSupported)
	assert.True(t, pc.Done())
}

func TestLookupProfile(t *testing.T) {
	p, ok := LookupProfile("epson", "TMT70")
	require.True(t, ok)
	assert.Equal(t, 56, p.MaxCharacters)
	assert.Equal(t, 0x01, p.OutEndpoint)

	_, ok = LookupProfile("epson", "FBII")
	assert.False(t, ok)
	assert.Len(t, Profiles, 9)
}
