// pkg/fiscal/till.go
package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/pkg/driver"
)

// Summarize prints an X reading.
func (p *Printer) Summarize(ctx context.Context) error {
	p.logger.Info("summarize")
	return p.drv.Summarize(ctx)
}

// OpenTill opens the fiscal day.
func (p *Printer) OpenTill(ctx context.Context) error {
	p.logger.Info("open_till")
	if err := p.drv.OpenTill(ctx); err != nil {
		return err
	}
	p.till = TillOpen
	return nil
}

// CloseTill emits the Z reduction. An open coupon is cancelled by the driver
// first.
func (p *Printer) CloseTill(ctx context.Context, previousDay bool) error {
	p.logger.Info("close_till", zap.Bool("previous_day", previousDay))
	if err := p.drv.CloseTill(ctx, previousDay); err != nil {
		return err
	}
	p.resetCoupon()
	p.till = TillClosed
	return nil
}

// TillAddCash registers a cash supply.
func (p *Printer) TillAddCash(ctx context.Context, value decimal.Decimal) error {
	p.logger.Info("till_add_cash", zap.String("value", value.String()))
	if !value.IsPositive() {
		return fmt.Errorf("%w: cash value must be greater than zero", driver.ErrInvalidValue)
	}
	if err := p.caps.CheckValue(driver.CapAddCash, value); err != nil {
		return err
	}
	return p.drv.TillAddCash(ctx, value)
}

// TillRemoveCash registers a cash withdrawal.
func (p *Printer) TillRemoveCash(ctx context.Context, value decimal.Decimal) error {
	p.logger.Info("till_remove_cash", zap.String("value", value.String()))
	if !value.IsPositive() {
		return fmt.Errorf("%w: cash value must be greater than zero", driver.ErrInvalidValue)
	}
	if err := p.caps.CheckValue(driver.CapRemoveCash, value); err != nil {
		return err
	}
	return p.drv.TillRemoveCash(ctx, value)
}

// TillReadMemory prints the fiscal memory between two dates.
func (p *Printer) TillReadMemory(ctx context.Context, start, end time.Time) error {
	p.logger.Info("till_read_memory",
		zap.Time("start", start),
		zap.Time("end", end),
	)
	today := p.today()
	s, e := dateOf(start.In(today.Location())), dateOf(end.In(today.Location()))
	if s.After(e) || e.After(today) {
		return fmt.Errorf("%w: start must not be after end and both must not be after today", driver.ErrInvalidArgument)
	}
	return p.drv.TillReadMemory(ctx, s, e)
}

// TillReadMemoryToSerial returns the fiscal memory between two dates as
// text lines read from the device.
func (p *Printer) TillReadMemoryToSerial(ctx context.Context, start, end time.Time) ([]string, error) {
	p.logger.Info("till_read_memory_to_serial",
		zap.Time("start", start),
		zap.Time("end", end),
	)
	m, ok := p.drv.(driver.MemoryDumpCapable)
	if !ok {
		return nil, fmt.Errorf("%w: fiscal memory dump", driver.ErrNotSupported)
	}
	today := p.today()
	s, e := dateOf(start.In(today.Location())), dateOf(end.In(today.Location()))
	if s.After(e) || e.After(today) {
		return nil, fmt.Errorf("%w: start must not be after end and both must not be after today", driver.ErrInvalidArgument)
	}
	return m.TillReadMemoryToSerial(ctx, s, e)
}

// TillReadMemoryByReductions prints the fiscal memory between two CRZ values.
func (p *Printer) TillReadMemoryByReductions(ctx context.Context, start, end int) error {
	p.logger.Info("till_read_memory_by_reductions",
		zap.Int("start", start),
		zap.Int("end", end),
	)
	if start <= 0 || end < start {
		return fmt.Errorf("%w: start must be positive and not greater than end", driver.ErrInvalidArgument)
	}
	return p.drv.TillReadMemoryByReductions(ctx, start, end)
}
