// pkg/fiscal/reports.go
package fiscal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/pkg/driver"
)

func (p *Printer) reports() (driver.ReportCapable, error) {
	r, ok := p.drv.(driver.ReportCapable)
	if !ok {
		return nil, fmt.Errorf("%w: reports", driver.ErrNotSupported)
	}
	return r, nil
}

// GerencialReportOpen opens a managerial report.
func (p *Printer) GerencialReportOpen(ctx context.Context) error {
	p.logger.Info("gerencial_report_open")
	r, err := p.reports()
	if err != nil {
		return err
	}
	return r.GerencialReportOpen(ctx)
}

// GerencialReportPrint prints text on the open managerial report.
func (p *Printer) GerencialReportPrint(ctx context.Context, text string) error {
	p.logger.Info("gerencial_report_print", zap.Int("length", len(text)))
	r, err := p.reports()
	if err != nil {
		return err
	}
	return r.GerencialReportPrint(ctx, text)
}

// GerencialReportClose closes the managerial report.
func (p *Printer) GerencialReportClose(ctx context.Context) error {
	p.logger.Info("gerencial_report_close")
	r, err := p.reports()
	if err != nil {
		return err
	}
	return r.GerencialReportClose(ctx)
}

// PaymentReceiptOpen opens the receipt bound to a paid coupon.
func (p *Printer) PaymentReceiptOpen(ctx context.Context, identifier string, coo int, method string, value decimal.Decimal) error {
	p.logger.Info("payment_receipt_open",
		zap.String("identifier", identifier),
		zap.Int("coo", coo),
		zap.String("method", method),
		zap.String("value", value.String()),
	)
	r, err := p.reports()
	if err != nil {
		return err
	}
	return r.PaymentReceiptOpen(ctx, identifier, coo, method, value)
}

// PaymentReceiptPrint prints text on the bound receipt.
func (p *Printer) PaymentReceiptPrint(ctx context.Context, text string) error {
	r, err := p.reports()
	if err != nil {
		return err
	}
	return r.PaymentReceiptPrint(ctx, text)
}

// PaymentReceiptClose closes the bound receipt.
func (p *Printer) PaymentReceiptClose(ctx context.Context) error {
	p.logger.Info("payment_receipt_close")
	r, err := p.reports()
	if err != nil {
		return err
	}
	return r.PaymentReceiptClose(ctx)
}

// SupportsDuplicateReceipt reports whether PaymentReceiptPrintDuplicate works.
func (p *Printer) SupportsDuplicateReceipt() bool {
	_, ok := p.drv.(driver.DuplicateReceiptCapable)
	return ok
}

// PaymentReceiptPrintDuplicate reprints the last bound receipt.
func (p *Printer) PaymentReceiptPrintDuplicate(ctx context.Context) error {
	p.logger.Info("payment_receipt_print_duplicate")
	d, ok := p.drv.(driver.DuplicateReceiptCapable)
	if !ok {
		return fmt.Errorf("%w: duplicate receipt", driver.ErrNotSupported)
	}
	return d.PaymentReceiptPrintDuplicate(ctx)
}
