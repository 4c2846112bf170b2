package fiscnet

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"ecf-service/internal/protocol"
	"ecf-service/pkg/driver"
)

func newEngine(t *testing.T, transcript string) (*Engine, *protocol.PlaybackConnection) {
	t.Helper()
	pc, err := protocol.NewPlaybackString(transcript)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	return NewEngine(protocol.NewPort(pc, logger), Errors, logger), pc
}

func TestEncodeRequest(t *testing.T) {
	frame, err := EncodeRequest(0, "PagaCupom", []protocol.Param{
		protocol.P("Valor", decimal.RequireFromString("12.5")),
		protocol.P("CodMeioPagamento", -2),
		protocol.P("TextoAdicional", "troco"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{0;PagaCupom;CodMeioPagamento=-2 TextoAdicional="troco" Valor=12,500;}`, string(frame))
}

func TestRenderValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{decimal.RequireFromString("12.5"), "12,500"},
		{decimal.RequireFromString("-0.1"), "-0,100"},
		{decimal.RequireFromString("0.0125"), "0,012"},
		{decimal.RequireFromString("0.0135"), "0,014"},
		{decimal.RequireFromString("2.0005"), "2,000"},
		{"say \"hi\"", `"say \"hi\""`},
		{[]byte(`a\b`), `"a\\b"`},
		{true, "t"},
		{false, "f"},
		{time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), "#09/03/24#"},
		{42, "42"},
		{int64(7), "7"},
	}
	for _, tt := range tests {
		got, err := RenderValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}

	_, err := RenderValue(3.14)
	assert.ErrorIs(t, err, driver.ErrInvalidArgument)
}

func TestEncodeRequestSkipsNil(t *testing.T) {
	frame, err := EncodeRequest(3, "EmiteLeituraMF", []protocol.Param{
		protocol.P("DataInicial", nil),
		protocol.P("LeituraSimplificada", true),
	})
	require.NoError(t, err)
	assert.Equal(t, "{3;EmiteLeituraMF;LeituraSimplificada=t;}", string(frame))
}

func TestParseValues(t *testing.T) {
	values, err := ParseValues(`NomeTexto="a \"b\" c" ValorInteiro=12  Flag Valor = 1,50 Vazio=""`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"NomeTexto":    `a "b" c`,
		"ValorInteiro": "12",
		"Flag":         "",
		"Valor":        "1,50",
		"Vazio":        "",
	}, values)

	_, err = ParseValues(`A="open`)
	assert.ErrorIs(t, err, driver.ErrMalformedFrame)
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{0;0;ValorInteiro=5;}`))
	require.NoError(t, err)
	assert.Equal(t, "0", f.Name)
	assert.Equal(t, "5", f.Values["ValorInteiro"])

	// A quoted separator does not split sections.
	f, err = DecodeFrame([]byte(`{1;0;ValorTexto="a;b}";}`))
	require.NoError(t, err)
	assert.Equal(t, "a;b}", f.Values["ValorTexto"])

	for _, bad := range []string{`0;0;;}`, `{0;0;}`, `{0;0;;x}`, `{x;0;;}`, `{0;0;a;b;}`} {
		_, err := DecodeFrame([]byte(bad))
		assert.ErrorIs(t, err, driver.ErrMalformedFrame, bad)
	}
}

func TestSend(t *testing.T) {
	transcript := "W {0;LeInteiro;NomeInteiro=\"COO\";}\n" +
		"R {0;0;ValorInteiro=1234;}\n"
	e, pc := newEngine(t, transcript)

	reply, err := e.Send(context.Background(), protocol.Command{
		Name:   "LeInteiro",
		Params: []protocol.Param{protocol.P("NomeInteiro", "COO")},
	})
	require.NoError(t, err)
	coo, err := reply.Int("ValorInteiro")
	require.NoError(t, err)
	assert.Equal(t, 1234, coo)
	assert.True(t, pc.Done())
}

func TestSendIDAdvances(t *testing.T) {
	transcript := "W {0;EmiteLeituraX;;}\nR {0;0;;}\n" +
		"W {1;EmiteLeituraX;;}\nR {1;0;;}\n"
	e, pc := newEngine(t, transcript)

	for i := 0; i < 2; i++ {
		_, err := e.Send(context.Background(), protocol.Command{Name: "EmiteLeituraX"})
		require.NoError(t, err)
	}
	assert.True(t, pc.Done())
}

func TestSendDeviceError(t *testing.T) {
	transcript := "W {0;PagaCupom;Valor=1,000;}\n" +
		"R {0;8011;Circunstancia=\"Pagamento nao permitido\";}\n"
	e, _ := newEngine(t, transcript)

	_, err := e.Send(context.Background(), protocol.Command{
		Name:   "PagaCupom",
		Params: []protocol.Param{protocol.P("Valor", decimal.NewFromInt(1))},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrPaymentAddition)
	assert.Contains(t, err.Error(), "Pagamento nao permitido")
	code, _ := driver.CodeOf(err)
	assert.Equal(t, 8011, code)
}

func TestSendUnexpectedID(t *testing.T) {
	e, _ := newEngine(t, "W {0;EmiteLeituraX;;}\nR {7;0;;}\n")

	_, err := e.Send(context.Background(), protocol.Command{Name: "EmiteLeituraX"})
	assert.ErrorIs(t, err, driver.ErrUnexpectedReplyID)
	assert.Equal(t, driver.KindIntegrity, driver.KindOf(err))
}

func TestSendGarbageReply(t *testing.T) {
	e, _ := newEngine(t, "W {0;EmiteLeituraX;;}\nR xx{0;0;;}\n")

	_, err := e.Send(context.Background(), protocol.Command{Name: "EmiteLeituraX"})
	assert.ErrorIs(t, err, driver.ErrMalformedFrame)
}

func TestValuesRoundTrip(t *testing.T) {
	name := rapid.StringMatching(`[A-Za-z][A-Za-z0-9\[\]]{0,15}`)
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.MapOf(name, rapid.String()).Draw(t, "values")
		params := make([]protocol.Param, 0, len(in))
		for k, v := range in {
			params = append(params, protocol.P(k, v))
		}
		frame, err := EncodeRequest(1, "Cmd", params)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("decode %q: %v", frame, err)
		}
		if len(got.Values) != len(in) {
			t.Fatalf("got %d values, want %d", len(got.Values), len(in))
		}
		for k, v := range in {
			if got.Values[k] != v {
				t.Fatalf("%s: got %q, want %q", k, got.Values[k], v)
			}
		}
	})
}

func TestParseDate(t *testing.T) {
	d, ok, err := ParseDate("#29/03/2007#")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2007, 3, 29, 0, 0, 0, 0, time.UTC), d)

	_, ok, err = ParseDate("#00/00/0000#")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseMoney(t *testing.T) {
	v, err := ParseMoney("1.234,56")
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("1234.56")))
}
