package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABICOMPRoundTrip(t *testing.T) {
	for _, s := range []string{"não dîz", "ÀÁÂÃÄÇÈÉÊËÌÍÎÏÑ", "àáâãäçèéêëìíîïñ", "plain ascii 123"} {
		b, err := Encode(ABICOMPName, s)
		require.NoError(t, err)

		back, err := Decode(ABICOMPName, b)
		require.NoError(t, err)
		assert.Equal(t, s, back)
	}
}

func TestABICOMPBytes(t *testing.T) {
	b, err := Encode(ABICOMPName, "ção")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc6, 0xc4, 'o'}, b)
}

func TestEncodeDropsUnsupported(t *testing.T) {
	b, err := Encode(CP850, "a€b")
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), b)
}

func TestEncodeASCIIStripsAccents(t *testing.T) {
	b, err := Encode(ASCII, "Ação São")
	require.NoError(t, err)
	assert.Equal(t, "Acao Sao", string(b))
}

func TestCodePages(t *testing.T) {
	b, err := Encode(CP860, "ã")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x84}, b)

	s, err := Decode(CP850, []byte{0x87})
	require.NoError(t, err)
	assert.Equal(t, "ç", s)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("ebcdic")
	assert.Error(t, err)
}
