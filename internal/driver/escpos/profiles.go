// internal/driver/escpos/profiles.go
package escpos

import "ecf-service/internal/charset"

// BarcodeStyle selects how PrintBarcode encodes a code.
type BarcodeStyle int

const (
	// BarcodeCode93 is GS k H, splitting long codes into two symbols.
	BarcodeCode93 BarcodeStyle = iota
	// BarcodeCode128Chunked is GS k I with code set A, 22 characters per
	// symbol.
	BarcodeCode128Chunked
	// BarcodeDaruma is the ESC b command of the Daruma DR series.
	BarcodeDaruma
	// BarcodeCode128 is a single GS k I symbol with a taller bar.
	BarcodeCode128
)

// QRStyle selects how PrintQRCode renders.
type QRStyle int

const (
	QRNative QRStyle = iota
	// QRRaster builds the symbol locally and prints it as a bitmap.
	QRRaster
	QRDaruma
	QRNone
)

// DrawerStyle selects how IsDrawerOpen decodes the status byte.
type DrawerStyle int

const (
	// DrawerPin3 reads DLE EOT 1; the drawer is open when bit 2 is clear.
	DrawerPin3 DrawerStyle = iota
	// DrawerZeroOpen reads a byte that is zero while the drawer is open.
	DrawerZeroOpen
)

// Profile describes one printer model.
type Profile struct {
	Brand string
	Model string
	Name  string

	// OutEndpoint is the USB bulk endpoint the model listens on, zero for
	// serial models.
	OutEndpoint int

	MaxCharacters int
	// MaxDots is the printable width in dots for raster images.
	MaxDots int
	// CutLineFeeds are fed before cutting.
	CutLineFeeds int
	// MaxBarcode is the longest code printed as one Code93 symbol.
	MaxBarcode int
	Charset    string

	Commands Commands
	Barcode  BarcodeStyle
	QRCode   QRStyle
	Drawer   DrawerStyle

	// TextMode composes bold, condensed and double height into a single
	// ESC ! mode byte.
	TextMode bool
	// TrackState suppresses repeated bold and alignment commands.
	TrackState bool
	// ResetOnSetup writes condensed, left aligned, regular text on setup.
	ResetOnSetup bool
	// CondensedOnSetup only switches to condensed on setup.
	CondensedOnSetup bool
	// SelectCodePage writes ESC t for Charset on setup.
	SelectCodePage bool
}

// ESC ! mode bits.
const (
	modeCondensed    = 1 << 0
	modeBold         = 1 << 3
	modeDoubleHeight = 1 << 4
)

func standard(brand, model, name string, ep, chars int) Profile {
	return Profile{
		Brand:          brand,
		Model:          model,
		Name:           name,
		OutEndpoint:    ep,
		MaxCharacters:  chars,
		MaxDots:        512,
		CutLineFeeds:   4,
		MaxBarcode:     27,
		Charset:        charset.CP850,
		Commands:       Standard,
		Barcode:        BarcodeCode93,
		QRCode:         QRNative,
		Drawer:         DrawerPin3,
		SelectCodePage: true,
	}
}

var (
	TMT20 = func() Profile {
		p := standard("epson", "TMT20", "Epson TM-T20", 0x01, 64)
		p.Commands.DoubleHeightOn = []byte{GS, '!', 0x01}
		p.Commands.DoubleHeightOff = []byte{GS, '!', 0x00}
		return p
	}()

	TMT70 = func() Profile {
		p := TMT20
		p.Model = "TMT70"
		p.Name = "Epson TM-T70"
		p.MaxCharacters = 56
		return p
	}()

	// TP650 prints 48 columns in normal mode and 64 condensed.
	TP650 = standard("tanca", "TP650", "Tanca TP650", 0x02, 48)

	SI150 = standard("sweda", "SI150", "Sweda SI-150", 0x03, 64)

	SI300 = func() Profile {
		p := standard("sweda", "SI300", "Sweda SI-300", 0, 56)
		p.TextMode = true
		return p
	}()

	BKC310 = func() Profile {
		p := standard("snbc", "BKC310", "SNBC BK-C310", 0x02, 64)
		p.CutLineFeeds = 0
		p.QRCode = QRRaster
		return p
	}()

	I9 = Profile{
		Brand:         "elgin",
		Model:         "I9",
		Name:          "Elgin I9",
		MaxCharacters: 57,
		MaxDots:       512,
		Charset:       charset.CP850,
		Commands: Commands{
			CondensedOn:      []byte{ESC, 'M', 0x01},
			CondensedOff:     []byte{ESC, 'M', 0x00},
			BoldOn:           []byte{ESC, 'E', 0x01},
			BoldOff:          []byte{ESC, 'E', 0x00},
			DoubleHeightOn:   []byte{ESC, 'G', 0x01},
			DoubleHeightOff:  []byte{ESC, 'G', 0x00},
			AlignCenter:      []byte{ESC, 'a', 0x01},
			AlignLeft:        []byte{ESC, 'a', 0x00},
			LineSpacing24:    Standard.LineSpacing24,
			LineSpacingReset: Standard.LineSpacingReset,
			Cut:              []byte{GS, 'V', 48},
			DrawerKick:       []byte{ESC, 'p', '0', '0', '5'},
			DrawerStatus:     []byte{GS, 'r', '2'},
		},
		Barcode:      BarcodeCode128Chunked,
		QRCode:       QRNative,
		Drawer:       DrawerZeroOpen,
		ResetOnSetup: true,
	}

	DR700 = Profile{
		Brand:         "daruma",
		Model:         "DR700",
		Name:          "Daruma DR 700",
		MaxCharacters: 57,
		MaxDots:       512,
		CutLineFeeds:  2,
		Charset:       charset.CP850,
		Commands: Commands{
			CondensedOn:      []byte{ESC, SI, 0x00},
			CondensedOff:     []byte{DC2},
			BoldOn:           []byte{ESC, 'E'},
			BoldOff:          []byte{ESC, 'F'},
			DoubleHeightOn:   []byte{ESC, 'w', 0x01},
			DoubleHeightOff:  []byte{ESC, 'w', 0x00},
			AlignCenter:      []byte{ESC, 'j', 0x01},
			AlignLeft:        []byte{ESC, 'j', 0x00},
			LineSpacing24:    Standard.LineSpacing24,
			LineSpacingReset: Standard.LineSpacingReset,
			Cut:              []byte{ESC, 'm'},
		},
		Barcode:      BarcodeDaruma,
		QRCode:       QRDaruma,
		ResetOnSetup: true,
	}

	MP2100TH = Profile{
		Brand:         "bematech",
		Model:         "MP2100TH",
		Name:          "Bematech MP-2100 TH",
		MaxCharacters: 64,
		MaxDots:       512,
		Charset:       charset.CP850,
		Commands: Commands{
			CondensedOn:      []byte{ESC, SI},
			CondensedOff:     []byte{ESC, 'H'},
			BoldOn:           []byte{ESC, 'E'},
			BoldOff:          []byte{ESC, 'F'},
			AlignCenter:      []byte{ESC, 'a', 0x01},
			AlignLeft:        []byte{ESC, 'a', 0x00},
			LineSpacing24:    Standard.LineSpacing24,
			LineSpacingReset: Standard.LineSpacingReset,
		},
		Barcode:          BarcodeCode128,
		QRCode:           QRNone,
		TrackState:       true,
		CondensedOnSetup: true,
	}
)

// Profiles lists every model this package drives.
var Profiles = []Profile{TMT20, TMT70, TP650, SI150, SI300, BKC310, I9, DR700, MP2100TH}

// LookupProfile finds a profile by brand and model.
func LookupProfile(brand, model string) (Profile, bool) {
	for _, p := range Profiles {
		if p.Brand == brand && p.Model == model {
			return p, true
		}
	}
	return Profile{}, false
}
