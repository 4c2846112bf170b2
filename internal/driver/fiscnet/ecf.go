// internal/driver/fiscnet/ecf.go
package fiscnet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/charset"
	"ecf-service/internal/protocol"
	wire "ecf-service/internal/protocol/fiscnet"
	"ecf-service/pkg/driver"
)

// Indicadores bits.
const (
	flagTechnicalIntervention = 1 << iota
	flagNoMFD
	flagRAMFailure
	flagClockFailure
	flagNoMF
	flagDayClosed
	flagDayOpen
	flagPendingReduce
	flagNoPaper
	flagMechanismFailure
	flagDocumentOpen
	flagRegistrationOK
	flagClicheOK
	flagOnline
	flagMFDFull
)

// MoneyCode is the fixed payment method code for cash.
const MoneyCode = "-2"

var units = map[driver.UnitType]string{
	driver.UnitWeight: "km",
	driver.UnitLiters: "lt",
	driver.UnitMeters: "m ",
	driver.UnitEmpty:  "  ",
}

// Option configures a FiscNetECF.
type Option func(*ECF)

// WithClock sets the clock used when the device reports an empty date.
func WithClock(c clockwork.Clock) Option {
	return func(d *ECF) { d.clock = c }
}

// WithLabels overrides the non fiscal register names used for cash supply
// and removal.
func WithLabels(l Labels) Option {
	return func(d *ECF) { d.labels = l }
}

// ECF drives printers speaking the FiscNet text protocol.
type ECF struct {
	engine   *wire.Engine
	logger   *zap.Logger
	clock    clockwork.Clock
	labels   Labels
	customer driver.Customer
}

// New creates a driver over port. The port must be configured with even
// parity.
func New(port *protocol.Port, logger *zap.Logger, opts ...Option) *ECF {
	logger = logger.With(zap.String("driver", "fiscnet"))
	d := &ECF{
		engine: wire.NewEngine(port, wire.Errors, logger),
		logger: logger,
		clock:  clockwork.NewRealClock(),
		labels: DefaultLabels,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *ECF) Info() driver.Info {
	return driver.Info{Brand: "fiscnet", Model: "FiscNetECF", Fiscal: true, Charset: charset.CP850}
}

func (d *ECF) Close() error { return nil }

func (d *ECF) Setup(ctx context.Context) error { return nil }

func (d *ECF) IdentifyCustomerAtEnd() bool { return false }

func (d *ECF) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		driver.CapItemCode:           driver.LengthCapability(0, 48),
		driver.CapItemID:             driver.BoundedCapability(decimal.Zero, decimal.NewFromInt(32767)),
		driver.CapItemsQuantity:      driver.RangeCapability(decimal.Zero, 14, 4),
		driver.CapItemPrice:          driver.RangeCapability(decimal.Zero, 14, 4),
		driver.CapItemDescription:    driver.LengthCapability(0, 200),
		driver.CapPaymentValue:       driver.RangeCapability(decimal.Zero, 14, 4),
		driver.CapPromotionalMessage: driver.LengthCapability(0, 492),
		driver.CapPaymentDescription: driver.LengthCapability(0, 80),
		driver.CapCustomerName:       driver.LengthCapability(0, 30),
		driver.CapCustomerID:         driver.LengthCapability(0, 29),
		driver.CapCustomerAddress:    driver.LengthCapability(0, 80),
	}
}

func (d *ECF) send(ctx context.Context, name string, params ...protocol.Param) (*protocol.Reply, error) {
	return d.engine.Send(ctx, protocol.Command{Name: name, Params: params})
}

func (d *ECF) text(s string, n int) []byte {
	r := []rune(s)
	if len(r) > n {
		s = string(r[:n])
	}
	return charset.MustEncode(charset.CP850, s)
}

func hasCode(err error, code int) bool {
	c, ok := driver.CodeOf(err)
	return ok && c == code
}

// Registers

func (d *ECF) readInt(ctx context.Context, name string) (int, error) {
	reply, err := d.send(ctx, "LeInteiro", protocol.P("NomeInteiro", name))
	if err != nil {
		return 0, err
	}
	v, err := reply.Int("ValorInteiro")
	if err != nil {
		return 0, fmt.Errorf("%w: register %s: %w", driver.ErrMalformedFrame, name, err)
	}
	return v, nil
}

func (d *ECF) readMoney(ctx context.Context, name string) (decimal.Decimal, error) {
	reply, err := d.send(ctx, "LeMoeda", protocol.P("NomeDadoMonetario", name))
	if err != nil {
		return decimal.Zero, err
	}
	v, err := wire.ParseMoney(reply.String("ValorMoeda"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: register %s: %w", driver.ErrMalformedFrame, name, err)
	}
	return v, nil
}

// readDate returns today when the register was never set.
func (d *ECF) readDate(ctx context.Context, name string) (time.Time, error) {
	reply, err := d.send(ctx, "LeData", protocol.P("NomeData", name))
	if err != nil {
		return time.Time{}, err
	}
	t, ok, err := wire.ParseDate(reply.String("ValorData"))
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		now := d.clock.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return t, nil
}

func (d *ECF) readText(ctx context.Context, name string) (string, error) {
	reply, err := d.send(ctx, "LeTexto", protocol.P("NomeTexto", name))
	if err != nil {
		return "", err
	}
	return strings.Trim(reply.String("ValorTexto"), `"`), nil
}

func (d *ECF) readFlag(ctx context.Context, name string) (bool, error) {
	reply, err := d.send(ctx, "LeIndicador", protocol.P("NomeIndicador", name))
	if err != nil {
		return false, err
	}
	v, err := reply.Int("ValorNumericoIndicador")
	if err != nil {
		return false, fmt.Errorf("%w: indicator %s: %w", driver.ErrMalformedFrame, name, err)
	}
	return v != 0, nil
}

func (d *ECF) status(ctx context.Context) (int, error) {
	return d.readInt(ctx, "Indicadores")
}

func (d *ECF) documentOpen(ctx context.Context) (bool, error) {
	st, err := d.status(ctx)
	if err != nil {
		return false, err
	}
	return st&flagDocumentOpen != 0, nil
}

// Coupon

func (d *ECF) CouponIdentifyCustomer(ctx context.Context, customer driver.Customer) error {
	d.customer = customer
	return nil
}

func (d *ECF) HasOpenCoupon(ctx context.Context) (bool, error) {
	return d.readFlag(ctx, "DocumentoAberto")
}

func (d *ECF) CouponOpen(ctx context.Context) error {
	open, err := d.documentOpen(ctx)
	if err != nil {
		return err
	}
	if open {
		return driver.ErrCouponAlreadyOpen
	}
	_, err = d.send(ctx, "AbreCupomFiscal",
		protocol.P("EnderecoConsumidor", d.text(d.customer.Address, 80)),
		protocol.P("IdConsumidor", d.text(d.customer.Document, 29)),
		protocol.P("NomeConsumidor", d.text(d.customer.Name, 30)),
	)
	return err
}

func (d *ECF) CouponAddItem(ctx context.Context, item driver.ItemRequest) (int, error) {
	open, err := d.documentOpen(ctx)
	if err != nil {
		return 0, err
	}
	if !open {
		return 0, driver.ErrCouponNotOpen
	}
	tax, err := strconv.Atoi(item.TaxCode)
	if err != nil {
		return 0, fmt.Errorf("%w: tax code %q is not numeric", driver.ErrInvalidArgument, item.TaxCode)
	}
	unit := units[item.Unit]
	if item.Unit == driver.UnitCustom {
		unit = item.UnitDesc
	}
	if _, err := d.send(ctx, "VendeItem",
		protocol.P("CodAliquota", tax),
		protocol.P("CodProduto", d.text(item.Code, 48)),
		protocol.P("NomeProduto", d.text(item.Description, 200)),
		protocol.P("Unidade", unit),
		protocol.P("PrecoUnitario", item.Price),
		protocol.P("Quantidade", item.Quantity),
	); err != nil {
		return 0, err
	}

	// Item level adjustments are a signed addition to the last item.
	var adjust decimal.Decimal
	switch {
	case !item.Discount.IsZero():
		adjust = item.Discount.Neg()
	case !item.Surcharge.IsZero():
		adjust = item.Surcharge
	}
	// From here on the item is registered, so every failure is committed.
	var adjustErr error
	if !adjust.IsZero() {
		_, adjustErr = d.send(ctx, "AcresceItemFiscal",
			protocol.P("Cancelar", false),
			protocol.P("ValorAcrescimo", adjust),
		)
	}
	id, err := d.readInt(ctx, "ContadorDocUltimoItemVendido")
	if err != nil {
		return 0, driver.Committed(errors.Join(adjustErr, err))
	}
	return id, driver.Committed(adjustErr)
}

func (d *ECF) CouponCancelItem(ctx context.Context, itemID int) error {
	_, err := d.send(ctx, "CancelaItemFiscal", protocol.P("NumItem", itemID))
	return err
}

func (d *ECF) CouponCancel(ctx context.Context) error {
	_, err := d.send(ctx, "CancelaCupom")
	return err
}

// CancelLastCoupon cancels the last sale or non fiscal coupon.
func (d *ECF) CancelLastCoupon(ctx context.Context) error {
	return d.CouponCancel(ctx)
}

func (d *ECF) CouponTotalize(ctx context.Context, discount, surcharge decimal.Decimal, tax driver.TaxType) (decimal.Decimal, error) {
	value := surcharge
	if !discount.IsZero() {
		value = discount.Neg()
	}
	if value.IsZero() {
		return d.readMoney(ctx, "TotalDocLiquido")
	}
	if _, err := d.send(ctx, "AcresceSubtotal",
		protocol.P("Cancelar", false),
		protocol.P("ValorAcrescimo", value),
	); err != nil {
		return decimal.Zero, err
	}
	total, err := d.readMoney(ctx, "TotalDocLiquido")
	if err != nil {
		return decimal.Zero, driver.Committed(err)
	}
	return total, nil
}

func (d *ECF) CouponAddPayment(ctx context.Context, method string, value decimal.Decimal, description string) (decimal.Decimal, error) {
	code, err := strconv.Atoi(method)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: payment method %q is not numeric", driver.ErrInvalidArgument, method)
	}
	if _, err := d.send(ctx, "PagaCupom",
		protocol.P("CodMeioPagamento", code),
		protocol.P("Valor", value),
		protocol.P("TextoAdicional", d.text(description, 80)),
	); err != nil {
		return decimal.Zero, err
	}
	remaining, err := d.remainder(ctx)
	if err != nil {
		return decimal.Zero, driver.Committed(err)
	}
	return remaining, nil
}

func (d *ECF) remainder(ctx context.Context) (decimal.Decimal, error) {
	paid, err := d.readMoney(ctx, "TotalDocValorPago")
	if err != nil {
		return decimal.Zero, err
	}
	total, err := d.readMoney(ctx, "TotalDocLiquido")
	if err != nil {
		return decimal.Zero, err
	}
	if r := total.Sub(paid); r.IsPositive() {
		return r, nil
	}
	return decimal.Zero, nil
}

func (d *ECF) CouponClose(ctx context.Context, message string) (int, error) {
	if _, err := d.send(ctx, "EncerraDocumento", protocol.P("TextoPromocional", d.text(message, 492))); err != nil {
		return 0, err
	}
	d.customer = driver.Customer{}
	coo, err := d.readInt(ctx, "COO")
	if err != nil {
		return 0, driver.Committed(err)
	}
	return coo, nil
}

// Till

func (d *ECF) Summarize(ctx context.Context) error {
	_, err := d.send(ctx, "EmiteLeituraX")
	return err
}

func (d *ECF) OpenTill(ctx context.Context) error {
	return d.Summarize(ctx)
}

func (d *ECF) cancelOpenDocument(ctx context.Context) error {
	open, err := d.documentOpen(ctx)
	if err != nil {
		return err
	}
	if open {
		d.logger.Info("Cancelling open document")
		return d.CouponCancel(ctx)
	}
	return nil
}

func (d *ECF) CloseTill(ctx context.Context, previousDay bool) error {
	if err := d.cancelOpenDocument(ctx); err != nil {
		return err
	}
	_, err := d.send(ctx, "EmiteReducaoZ")
	return err
}

func (d *ECF) HasPendingReduce(ctx context.Context) (bool, error) {
	st, err := d.status(ctx)
	if err != nil {
		return false, err
	}
	return st&flagPendingReduce != 0, nil
}

// cashMovement prints a non fiscal coupon against the named register. A
// supply is paid in cash so the drawer total follows it.
func (d *ECF) cashMovement(ctx context.Context, label string, value decimal.Decimal, paid bool) error {
	if err := d.cancelOpenDocument(ctx); err != nil {
		return err
	}
	if _, err := d.send(ctx, "AbreCupomNaoFiscal"); err != nil {
		return err
	}
	if _, err := d.send(ctx, "EmiteItemNaoFiscal",
		protocol.P("NomeNaoFiscal", d.text(label, 200)),
		protocol.P("Valor", value),
	); err != nil {
		return err
	}
	if paid {
		if _, err := d.send(ctx, "PagaCupom",
			protocol.P("CodMeioPagamento", -2),
			protocol.P("Valor", value),
		); err != nil {
			return err
		}
	}
	_, err := d.send(ctx, "EncerraDocumento")
	return err
}

func (d *ECF) TillAddCash(ctx context.Context, value decimal.Decimal) error {
	return d.cashMovement(ctx, d.labels.CashSupply, value, true)
}

func (d *ECF) TillRemoveCash(ctx context.Context, value decimal.Decimal) error {
	return d.cashMovement(ctx, d.labels.CashRemoval, value, false)
}

// TillReadMemory prints the simplified fiscal memory reading. An empty
// period is not an error.
func (d *ECF) TillReadMemory(ctx context.Context, start, end time.Time) error {
	_, err := d.send(ctx, "EmiteLeituraMF",
		protocol.P("LeituraSimplificada", true),
		protocol.P("DataInicial", start),
		protocol.P("DataFinal", end),
	)
	if hasCode(err, wire.CodeNoDataInRange) {
		d.logger.Info("No fiscal memory data in range", zap.Time("start", start), zap.Time("end", end))
		return nil
	}
	return err
}

func (d *ECF) TillReadMemoryByReductions(ctx context.Context, start, end int) error {
	_, err := d.send(ctx, "EmiteLeituraMF",
		protocol.P("LeituraSimplificada", true),
		protocol.P("ReducaoInicial", start),
		protocol.P("ReducaoFinal", end),
	)
	return err
}

// Constants

type aliquota struct {
	code    string
	percent string
	icms    bool
}

func (d *ECF) readAliquota(ctx context.Context, reg int) (aliquota, error) {
	reply, err := d.send(ctx, "LeAliquota", protocol.P("CodAliquotaProgramavel", reg))
	if err != nil {
		return aliquota{}, err
	}
	return aliquota{
		code:    reply.String("CodAliquotaProgramavel"),
		percent: reply.String("PercentualAliquota"),
		icms:    reply.String("AliquotaICMS") == "Y",
	}, nil
}

func (d *ECF) TaxConstants(ctx context.Context) ([]driver.TaxConstant, error) {
	var constants []driver.TaxConstant
	for reg := 0; reg < 16; reg++ {
		a, err := d.readAliquota(ctx, reg)
		if hasCode(err, wire.CodeTaxNotLoaded) {
			continue
		}
		if err != nil {
			return nil, err
		}
		typ := driver.TaxService
		if a.icms {
			typ = driver.TaxCustom
		}
		value, err := protocol.ParseCommaDecimal(a.percent)
		if err != nil {
			return nil, fmt.Errorf("%w: tax rate %q", driver.ErrMalformedFrame, a.percent)
		}
		constants = append(constants, driver.TaxConstant{Type: typ, Code: a.code, Value: &value})
	}
	return append(constants,
		driver.TaxConstant{Type: driver.TaxSubstitution, Code: "-2"},
		driver.TaxConstant{Type: driver.TaxExemption, Code: "-3"},
		driver.TaxConstant{Type: driver.TaxNone, Code: "-4"},
	), nil
}

func (d *ECF) PaymentConstants(ctx context.Context) ([]driver.PaymentConstant, error) {
	constants := []driver.PaymentConstant{{Code: MoneyCode, Description: "Dinheiro"}}
	for reg := 0; reg < 16; reg++ {
		reply, err := d.send(ctx, "LeMeioPagamento", protocol.P("CodMeioPagamentoProgram", reg))
		if hasCode(err, wire.CodePaymentNotLoaded) {
			continue
		}
		if err != nil {
			return nil, err
		}
		name, err := charset.Decode(charset.CP850, []byte(reply.String("NomeMeioPagamento")))
		if err != nil {
			return nil, err
		}
		constants = append(constants, driver.PaymentConstant{
			Code:        reply.String("CodMeioPagamentoProgram"),
			Description: name,
		})
	}
	return constants, nil
}

func (d *ECF) Serial(ctx context.Context) (string, error) {
	return d.readText(ctx, "NumeroSerieECF")
}

// FirmwareVersion reads the software version register.
func (d *ECF) FirmwareVersion(ctx context.Context) (string, error) {
	return d.readText(ctx, "VersaoSW")
}

func (d *ECF) Counters(ctx context.Context) (driver.Counters, error) {
	var c driver.Counters
	for _, r := range []struct {
		name string
		dst  *int
	}{
		{"CCF", &c.CCF},
		{"COO", &c.COO},
		{"GNF", &c.GNF},
		{"CRZ", &c.CRZ},
	} {
		v, err := d.readInt(ctx, r.name)
		if err != nil {
			return driver.Counters{}, err
		}
		*r.dst = v
	}
	return c, nil
}

// Sintegra

func (d *ECF) Sintegra(ctx context.Context) (*driver.SintegraData, error) {
	var (
		data driver.SintegraData
		err  error
	)
	if data.OpeningDate, err = d.readDate(ctx, "DataAbertura"); err != nil {
		return nil, err
	}
	if data.Serial, err = d.Serial(ctx); err != nil {
		return nil, err
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"ECF", &data.SerialID},
		{"COOInicioDia", &data.CouponStart},
		{"COO", &data.CouponEnd},
		{"CRO", &data.CRO},
		{"CRZ", &data.CRZ},
		{"COO", &data.COO},
	}
	for _, r := range ints {
		if *r.dst, err = d.readInt(ctx, r.name); err != nil {
			return nil, err
		}
	}
	if data.PeriodTotal, err = d.readMoney(ctx, "TotalDiaVendaBruta"); err != nil {
		return nil, err
	}
	if data.Total, err = d.readMoney(ctx, "GT"); err != nil {
		return nil, err
	}
	if data.Taxes, err = d.sintegraTaxes(ctx); err != nil {
		return nil, err
	}
	return &data, nil
}

func (d *ECF) sintegraTaxes(ctx context.Context) ([]driver.SintegraTax, error) {
	var taxes []driver.SintegraTax
	for _, r := range []struct{ code, register string }{
		{"I", "TotalDiaIsencaoICMS"},
		{"F", "TotalDiaSubstituicaoTributariaICMS"},
		{"N", "TotalDiaNaoTributadoICMS"},
		{"DESC", "TotalDiaDescontos"},
		{"CANC", "TotalDiaCancelamentosICMS"},
	} {
		v, err := d.readMoney(ctx, r.register)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, driver.SintegraTax{Code: r.code, Value: v, Type: "ICMS"})
	}

	for reg := 0; reg < 16; reg++ {
		v, err := d.readMoney(ctx, fmt.Sprintf("TotalDiaValorAliquota[%d]", reg))
		if err != nil {
			return nil, err
		}
		if v.IsZero() {
			continue
		}
		a, err := d.readAliquota(ctx, reg)
		if err != nil {
			return nil, err
		}
		typ := "ISS"
		if a.icms {
			typ = "ICMS"
		}
		percent, err := strconv.Atoi(strings.ReplaceAll(a.percent, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("%w: tax rate %q", driver.ErrMalformedFrame, a.percent)
		}
		taxes = append(taxes, driver.SintegraTax{Code: fmt.Sprintf("%04d", percent), Value: v, Type: typ})
	}
	return taxes, nil
}

// Reports

func (d *ECF) printText(ctx context.Context, text string) error {
	for _, line := range strings.Split(text, "\n") {
		if _, err := d.send(ctx, "ImprimeTexto", protocol.P("TextoLivre", charset.MustEncode(charset.CP850, line))); err != nil {
			return err
		}
	}
	return nil
}

func (d *ECF) GerencialReportOpen(ctx context.Context) error {
	_, err := d.send(ctx, "AbreGerencial", protocol.P("CodGerencial", 0))
	return err
}

func (d *ECF) GerencialReportPrint(ctx context.Context, text string) error {
	return d.printText(ctx, text)
}

func (d *ECF) GerencialReportClose(ctx context.Context) error {
	_, err := d.send(ctx, "EncerraDocumento")
	return err
}

// PaymentReceiptOpen ignores identifier; the device binds the receipt to
// the coupon by COO and method.
func (d *ECF) PaymentReceiptOpen(ctx context.Context, identifier string, coo int, method string, value decimal.Decimal) error {
	code, err := strconv.Atoi(method)
	if err != nil {
		return fmt.Errorf("%w: payment method %q is not numeric", driver.ErrInvalidArgument, method)
	}
	_, err = d.send(ctx, "AbreCreditoDebito",
		protocol.P("CodMeioPagamento", code),
		protocol.P("COO", coo),
		protocol.P("Valor", value),
	)
	return err
}

func (d *ECF) PaymentReceiptPrint(ctx context.Context, text string) error {
	return d.printText(ctx, text)
}

func (d *ECF) PaymentReceiptClose(ctx context.Context) error {
	_, err := d.send(ctx, "EncerraDocumento")
	return err
}

func (d *ECF) PaymentReceiptPrintDuplicate(ctx context.Context) error {
	_, err := d.send(ctx, "EmiteViaCreditoDebito")
	return err
}
