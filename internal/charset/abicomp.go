// internal/charset/abicomp.go
package charset

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ABICOMP is the Brazilian code page used by Daruma printers. ASCII maps to
// itself; accented letters live in 0xA1-0xDF.
var ABICOMP encoding.Encoding = abicomp{}

var abicompTable = map[rune]byte{
	'À': 0xa1, 'Á': 0xa2, 'Â': 0xa3, 'Ã': 0xa4, 'Ä': 0xa5, 'Ç': 0xa6, 'È': 0xa7, 'É': 0xa8,
	'Ê': 0xa9, 'Ë': 0xaa, 'Ì': 0xab, 'Í': 0xac, 'Î': 0xad, 'Ï': 0xae, 'Ñ': 0xaf,
	'Ò': 0xb0, 'Ó': 0xb1, 'Ô': 0xb2, 'Õ': 0xb3, 'Ö': 0xb4, 'Œ': 0xb5, 'Ù': 0xb6, 'Ú': 0xb7,
	'Û': 0xb8, 'Ü': 0xb9, 'Ÿ': 0xba, '˝': 0xbb, '£': 0xbc, 'ʻ': 0xbd, '°': 0xbe,
	'¡': 0xc0, 'à': 0xc1, 'á': 0xc2, 'â': 0xc3, 'ã': 0xc4, 'ä': 0xc5, 'ç': 0xc6, 'è': 0xc7,
	'é': 0xc8, 'ê': 0xc9, 'ë': 0xca, 'ì': 0xcb, 'í': 0xcc, 'î': 0xcd, 'ï': 0xce, 'ñ': 0xcf,
	'ò': 0xd0, 'ó': 0xd1, 'ô': 0xd2, 'õ': 0xd3, 'ö': 0xd4, 'œ': 0xd5, 'ù': 0xd6, 'ú': 0xd7,
	'û': 0xd8, 'ü': 0xd9, 'ÿ': 0xda, 'ß': 0xdb, 'ª': 0xdc, 'º': 0xdd, '¿': 0xde, '±': 0xdf,
}

var abicompReverse = func() map[byte]rune {
	m := make(map[byte]rune, len(abicompTable))
	for r, b := range abicompTable {
		m[b] = r
	}
	return m
}()

type abicomp struct{}

func (abicomp) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &abicompDecoder{}}
}

func (abicomp) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &abicompEncoder{}}
}

func (abicomp) String() string { return "ABICOMP" }

type abicompDecoder struct{ transform.NopResetter }

func (abicompDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		r, ok := abicompReverse[b]
		if !ok {
			if b < utf8.RuneSelf {
				r = rune(b)
			} else {
				r = utf8.RuneError
			}
		}
		size := utf8.RuneLen(r)
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc++
	}
	return nDst, nSrc, nil
}

type abicompEncoder struct{ transform.NopResetter }

func (abicompEncoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 && !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}
		var b byte
		if r < utf8.RuneSelf {
			b = byte(r)
		} else if mapped, ok := abicompTable[r]; ok {
			b = mapped
		} else {
			return nDst, nSrc, encoding.ErrInvalidUTF8
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = b
		nDst++
		nSrc += size
	}
	return nDst, nSrc, nil
}
