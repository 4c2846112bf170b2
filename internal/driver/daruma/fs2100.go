// internal/driver/daruma/fs2100.go
package daruma

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"ecf-service/internal/protocol"
	"ecf-service/internal/protocol/escbyte"
	"ecf-service/pkg/driver"
)

const (
	extendedPrefix byte = 'F'
	cmdAddItemExt  byte = 201
)

// FS2100 is the FS345 command set plus the extended item command and its
// numeric tax codes. It answers busy more often, so commands are retried.
type FS2100 struct {
	*FS345
}

// NewFS2100 creates a driver over port.
func NewFS2100(port *protocol.Port, logger *zap.Logger, opts ...Option) *FS2100 {
	o := options{
		clock:    clockwork.NewRealClock(),
		attempts: escbyte.DefaultBusyAttempts,
		delay:    escbyte.DefaultBusyDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &FS2100{FS345: newFS345(port, logger, "FS2100", o)}
}

func (d *FS2100) CouponAddItem(ctx context.Context, item driver.ItemRequest) (int, error) {
	mode, value := 0, item.Discount
	if !item.Surcharge.IsZero() {
		mode, value = 2, item.Surcharge
	}
	payload := []byte(fmt.Sprintf("%2s%07d%08d%d%04d%07d%02d%14s%3s",
		item.TaxCode, scaled(item.Quantity, 3), scaled(item.Price, 2), mode,
		scaled(value, 2), 0, 0, truncate(item.Code, 14), d.unit(item, fs345Units)))
	payload = append(payload, d.encode(truncate(item.Description, 233))...)
	payload = append(payload, escbyte.FF)

	reply, err := d.engine.Send(ctx, protocol.Command{Prefix: extendedPrefix, Op: cmdAddItemExt, Payload: payload})
	if err != nil {
		return 0, err
	}
	id, err := atoi(reply.Field(0), 3, 6)
	if err != nil {
		return 0, driver.Committed(err)
	}
	return id, nil
}

// TaxConstants numbers the programmed slots 01 to 16; the fixed registers
// use 17, 19 and 21.
func (d *FS2100) TaxConstants(ctx context.Context) ([]driver.TaxConstant, error) {
	return d.taxConstants(ctx, func(s taxSlot) string {
		return fmt.Sprintf("%02d", s.index+1)
	}, []string{"17", "19", "21"})
}
