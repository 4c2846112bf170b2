// internal/driver/fiscnet/configure.go
package fiscnet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/charset"
	"ecf-service/internal/protocol"
	wire "ecf-service/internal/protocol/fiscnet"
	"ecf-service/pkg/driver"
)

type paymentSetting struct {
	name  string
	bound bool
}

// Default programming applied by Configure.
var (
	defaultPayments = []paymentSetting{
		{"Cheque", false},
		{"Boleto", false},
		{"Cartão credito", true},
		{"Cartão debito", true},
		{"Financeira", false},
		{"Vale compra", false},
	}
	defaultRates = []struct {
		percent string
		service bool
	}{
		{"17.00", false},
		{"12.00", false},
		{"25.00", false},
		{"8.00", false},
		{"5.00", false},
		{"3.00", true},
	}
)

// Configure programs the non fiscal registers for cash movements, the
// payment methods and the tax rates a fresh device needs. Registers already
// holding the wanted value are left alone, and unused slots are cleared.
func (d *ECF) Configure(ctx context.Context) error {
	if err := d.defineNonFiscal(ctx, 0, d.labels.CashSupply, true); err != nil {
		return err
	}
	if err := d.defineNonFiscal(ctx, 1, d.labels.CashRemoval, false); err != nil {
		return err
	}
	for code := 2; code < 15; code++ {
		if err := d.tolerate(wire.CodeNonFiscalNotDefined, d.sendErr(ctx, "ExcluiNaoFiscal", protocol.P("CodNaoFiscal", code))); err != nil {
			return err
		}
	}

	for code, p := range defaultPayments {
		if err := d.definePayment(ctx, code, p); err != nil {
			return err
		}
	}
	for code := len(defaultPayments); code < 15; code++ {
		if err := d.tolerate(wire.CodePaymentNotLoaded, d.sendErr(ctx, "ExcluiMeioPagamento", protocol.P("CodMeioPagamentoProgram", code))); err != nil {
			return err
		}
	}

	for code, r := range defaultRates {
		if err := d.defineRate(ctx, code, decimal.RequireFromString(r.percent), r.service); err != nil {
			return err
		}
	}
	for code := len(defaultRates); code < 16; code++ {
		if err := d.tolerate(wire.CodeTaxNotLoaded, d.sendErr(ctx, "ExcluiAliquota", protocol.P("CodAliquotaProgramavel", code))); err != nil {
			return err
		}
	}
	return nil
}

func (d *ECF) sendErr(ctx context.Context, name string, params ...protocol.Param) error {
	_, err := d.send(ctx, name, params...)
	return err
}

// tolerate drops err when it carries the given device code.
func (d *ECF) tolerate(code int, err error) error {
	if hasCode(err, code) {
		return nil
	}
	return err
}

// defineNonFiscal refuses to rename a register that is already in use
// under another name, since its totals would then be mislabelled.
func (d *ECF) defineNonFiscal(ctx context.Context, code int, name string, entry bool) error {
	encoded := string(charset.MustEncode(charset.CP850, name))
	reply, err := d.send(ctx, "LeNaoFiscal", protocol.P("CodNaoFiscal", code))
	switch {
	case hasCode(err, wire.CodeNonFiscalNotDefined):
	case err != nil:
		return err
	default:
		for _, field := range []string{"NomeNaoFiscal", "DescricaoNaoFiscal"} {
			if got := reply.String(field); got != encoded {
				return fmt.Errorf("%w: non fiscal register %d is named %q, want %q",
					driver.ErrInvalidState, code, got, name)
			}
		}
	}

	err = d.sendErr(ctx, "DefineNaoFiscal",
		protocol.P("CodNaoFiscal", code),
		protocol.P("DescricaoNaoFiscal", []byte(encoded)),
		protocol.P("NomeNaoFiscal", []byte(encoded)),
		protocol.P("TipoNaoFiscal", entry),
	)
	return d.tolerate(wire.CodeAlreadyDefined, err)
}

func (d *ECF) definePayment(ctx context.Context, code int, p paymentSetting) error {
	encoded := string(charset.MustEncode(charset.CP850, p.name))
	reply, err := d.send(ctx, "LeMeioPagamento", protocol.P("CodMeioPagamentoProgram", code))
	switch {
	case hasCode(err, wire.CodePaymentNotLoaded):
	case err != nil:
		return err
	default:
		if reply.String("NomeMeioPagamento") == encoded && reply.String("DescricaoMeioPagamento") == encoded {
			return nil
		}
	}
	d.logger.Info("Programming payment method", zap.Int("code", code), zap.String("name", p.name))
	return d.sendErr(ctx, "DefineMeioPagamento",
		protocol.P("CodMeioPagamentoProgram", code),
		protocol.P("DescricaoMeioPagamento", []byte(encoded)),
		protocol.P("NomeMeioPagamento", []byte(encoded)),
		protocol.P("PermiteVinculado", p.bound),
	)
}

func (d *ECF) defineRate(ctx context.Context, code int, percent decimal.Decimal, service bool) error {
	reply, err := d.send(ctx, "LeAliquota", protocol.P("CodAliquotaProgramavel", code))
	switch {
	case hasCode(err, wire.CodeTaxNotLoaded):
	case err != nil:
		return err
	default:
		if got, err := protocol.ParseCommaDecimal(reply.String("PercentualAliquota")); err == nil && got.Equal(percent) {
			return nil
		}
	}
	d.logger.Info("Programming tax rate", zap.Int("code", code), zap.String("percent", percent.String()))
	return d.sendErr(ctx, "DefineAliquota",
		protocol.P("CodAliquotaProgramavel", code),
		protocol.P("DescricaoAliquota", percent.StringFixed(2)+"%"),
		protocol.P("PercentualAliquota", percent),
		protocol.P("AliquotaICMS", !service),
	)
}
