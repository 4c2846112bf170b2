// cmd/ecfctl/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/config"
	drivers "ecf-service/internal/driver"
	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
	"ecf-service/internal/utils"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/fiscal"
)

// itemList collects repeated -item "description:price[:quantity]" flags.
type itemList []driver.ItemRequest

func (l *itemList) String() string { return fmt.Sprint(len(*l), " items") }

func (l *itemList) Set(v string) error {
	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("item %q: want description:price[:quantity]", v)
	}
	price, err := decimal.NewFromString(parts[1])
	if err != nil {
		return fmt.Errorf("item %q: %w", v, err)
	}
	item := driver.ItemRequest{
		Code:        fmt.Sprintf("%03d", len(*l)+1),
		Description: parts[0],
		Price:       price,
		Quantity:    decimal.NewFromInt(1),
	}
	if len(parts) == 3 {
		if item.Quantity, err = decimal.NewFromString(parts[2]); err != nil {
			return fmt.Errorf("item %q: %w", v, err)
		}
	}
	*l = append(*l, item)
	return nil
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	var items itemList
	brand := flag.String("brand", "virtual", "printer brand")
	deviceModel := flag.String("model", "Simple", "printer model")
	connType := flag.String("conn", "VIRTUAL", "connection type: SERIAL, USB, TCP or VIRTUAL")
	port := flag.String("port", "", "serial port name")
	address := flag.String("address", "", "host:port of a TCP printer")
	payment := flag.String("payment", "", "payment method code, the first device method when empty")
	message := flag.String("message", "", "promotional message printed at close")
	status := flag.Bool("status", false, "print the counters and exit")
	flag.Var(&items, "item", "coupon item as description:price[:quantity], repeatable")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	device := &model.Device{
		DeviceID:         "ecfctl",
		Brand:            model.DeviceBrand(strings.ToLower(*brand)),
		Model:            *deviceModel,
		ConnectionType:   model.ConnectionType(strings.ToUpper(*connType)),
		ConnectionConfig: model.JSONObject{},
	}
	switch device.ConnectionType {
	case model.ConnectionTypeSerial:
		for k, v := range cfg.SerialDefaults() {
			device.ConnectionConfig[k] = v
		}
		device.ConnectionConfig["port"] = *port
	case model.ConnectionTypeTCP:
		host, p, err := net.SplitHostPort(*address)
		if err != nil {
			return fmt.Errorf("-address: %w", err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("-address port: %w", err)
		}
		device.ConnectionConfig["host"] = host
		device.ConnectionConfig["port"] = n
	}

	printer, closeFn, err := openPrinter(ctx, cfg, device, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if *status {
		counters, err := printer.Counters(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("COO=%d CCF=%d GNF=%d CRZ=%d\n", counters.COO, counters.CCF, counters.GNF, counters.CRZ)
		return nil
	}
	if len(items) == 0 {
		return errors.New("at least one -item is required")
	}
	return sell(ctx, printer, items, *payment, *message)
}

func openPrinter(ctx context.Context, cfg *config.Config, device *model.Device, logger *zap.Logger) (*fiscal.Printer, func(), error) {
	registry := drivers.NewRegistry(logger)
	opts := drivers.Options{
		BusyAttempts:    cfg.Device.BusyRetries,
		BusyDelay:       cfg.Device.BusyDelay,
		LegacyConfig:    cfg.Device.LegacyConfig,
		VirtualStateDir: cfg.Device.VirtualStateDir,
	}
	if err := drivers.RegisterDefaultDrivers(registry, opts, drivers.NewVirtualDevices(), logger); err != nil {
		return nil, nil, err
	}

	var port *protocol.Port
	closeFn := func() {}
	if device.ConnectionType != model.ConnectionTypeVirtual {
		transport, err := protocol.CreateProtocol(device.ConnectionType, device.ConnectionConfig, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := transport.Open(ctx); err != nil {
			return nil, nil, err
		}
		closeFn = func() { transport.Close() }
		port = protocol.NewPort(transport, logger, protocol.WithMaxEmptyReads(cfg.Device.MaxEmptyReads))
	}

	drv, err := registry.CreateDriver(device, port)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	cp, ok := drv.(driver.CouponProtocol)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("%s %s: %w", device.Brand, device.Model, driver.ErrNotSupported)
	}
	printer := fiscal.NewPrinter(cp, logger)
	if err := printer.Setup(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("printer setup: %w", err)
	}
	return printer, closeFn, nil
}

func sell(ctx context.Context, printer *fiscal.Printer, items itemList, payment, message string) error {
	taxCode, err := printer.TaxConstant(ctx, driver.TaxNone)
	if err != nil {
		return err
	}
	if payment == "" {
		methods, err := printer.PaymentConstants(ctx)
		if err != nil {
			return err
		}
		if len(methods) == 0 {
			return errors.New("device reports no payment methods")
		}
		payment = methods[0].Code
	}

	if err := printer.Open(ctx); err != nil {
		return err
	}
	for _, item := range items {
		item.TaxCode = taxCode
		if _, err := printer.AddItem(ctx, item); err != nil {
			return errors.Join(err, printer.Cancel(ctx))
		}
	}
	total, err := printer.Totalize(ctx, decimal.Zero, decimal.Zero, driver.TaxNone)
	if err != nil {
		return errors.Join(err, printer.Cancel(ctx))
	}
	if _, err := printer.AddPayment(ctx, payment, total, ""); err != nil {
		return errors.Join(err, printer.Cancel(ctx))
	}
	coo, err := printer.Close(ctx, message)
	if err != nil {
		return err
	}
	fmt.Printf("coupon %d closed, total %s\n", coo, total.StringFixed(2))
	return nil
}
