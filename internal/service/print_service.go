// internal/service/print_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/utils"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/graphics"
)

// PrintService drives the non fiscal side of a printer: free text,
// barcodes, QR codes, the cutter and the cash drawer.
type PrintService struct {
	devices *DeviceService
	logger  *utils.ServiceLogger
}

// NewPrintService creates a new print service
func NewPrintService(devices *DeviceService, logger *zap.Logger) *PrintService {
	return &PrintService{
		devices: devices,
		logger:  utils.NewServiceLogger(logger, "print-service"),
	}
}

type printFunc func(ctx context.Context, p driver.NonFiscalPrintable) error

func (ps *PrintService) run(ctx context.Context, deviceID string, opType model.OperationType, request model.JSONObject, fn printFunc) (*PrintResult, error) {
	op, err := ps.devices.Execute(ctx, deviceID, opType, request, func(ctx context.Context, sess *Session, _ *model.FiscalOperation) error {
		p, err := sess.Printer()
		if err != nil {
			return err
		}
		return fn(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return &PrintResult{OperationID: op.ID.String()}, nil
}

// PrintLines prints styled text lines and optionally cuts the paper.
func (ps *PrintService) PrintLines(ctx context.Context, deviceID string, req *PrintLinesRequest) (*PrintResult, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: nothing to print", driver.ErrInvalidArgument)
	}
	request := model.JSONObject{"lines": len(req.Lines), "cut": req.Cut}
	return ps.run(ctx, deviceID, model.OperationNonFiscalPrint, request, func(ctx context.Context, p driver.NonFiscalPrintable) error {
		for _, line := range req.Lines {
			if err := printLine(ctx, p, line); err != nil {
				return err
			}
		}
		if req.Cut {
			return p.CutPaper(ctx)
		}
		return nil
	})
}

// printLine applies the line styles, prints the text and resets the styles.
func printLine(ctx context.Context, p driver.NonFiscalPrintable, line PrintLine) error {
	type toggle struct {
		on       bool
		set, off func(context.Context) error
	}
	toggles := []toggle{
		{line.Center, p.Centralize, p.Descentralize},
		{line.Bold, p.SetBold, p.UnsetBold},
		{line.Condensed, p.SetCondensed, p.UnsetCondensed},
		{line.DoubleHeight, p.SetDoubleHeight, p.UnsetDoubleHeight},
	}
	for _, t := range toggles {
		if t.on {
			if err := t.set(ctx); err != nil {
				return err
			}
		}
	}
	emit := p.PrintLine
	if line.Inline {
		emit = p.PrintInline
	}
	if err := emit(ctx, line.Text); err != nil {
		return err
	}
	for i := len(toggles) - 1; i >= 0; i-- {
		if toggles[i].on {
			if err := toggles[i].off(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrintBarcode prints an EAN-13 or CODE39 style barcode as the driver
// chooses.
func (ps *PrintService) PrintBarcode(ctx context.Context, deviceID, code string) (*PrintResult, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty barcode", driver.ErrInvalidArgument)
	}
	return ps.run(ctx, deviceID, model.OperationNonFiscalPrint, model.JSONObject{"barcode": code},
		func(ctx context.Context, p driver.NonFiscalPrintable) error {
			return p.PrintBarcode(ctx, code)
		})
}

// PrintQRCode prints a QR code. With raster set and a graphics capable
// printer the code is rendered locally and sent as a bitmap.
func (ps *PrintService) PrintQRCode(ctx context.Context, deviceID, code string, raster bool) (*PrintResult, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty qr code", driver.ErrInvalidArgument)
	}
	return ps.run(ctx, deviceID, model.OperationNonFiscalPrint, model.JSONObject{"qrcode": code, "raster": raster},
		func(ctx context.Context, p driver.NonFiscalPrintable) error {
			g, ok := p.(driver.GraphicsCapable)
			if !raster || !ok {
				return p.PrintQRCode(ctx, code)
			}
			matrix, err := graphics.QRMatrix(code)
			if err != nil {
				return fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
			}
			return g.PrintMatrix(ctx, matrix, graphics.API24, 3)
		})
}

// CutPaper cuts the paper.
func (ps *PrintService) CutPaper(ctx context.Context, deviceID string) (*PrintResult, error) {
	return ps.run(ctx, deviceID, model.OperationCutPaper, model.JSONObject{},
		func(ctx context.Context, p driver.NonFiscalPrintable) error {
			return p.CutPaper(ctx)
		})
}

// OpenDrawer kicks the cash drawer.
func (ps *PrintService) OpenDrawer(ctx context.Context, deviceID string) (*PrintResult, error) {
	op, err := ps.devices.Execute(ctx, deviceID, model.OperationOpenDrawer, model.JSONObject{},
		func(ctx context.Context, sess *Session, _ *model.FiscalOperation) error {
			d, err := sess.Drawer()
			if err != nil {
				return err
			}
			return d.OpenDrawer(ctx)
		})
	if err != nil {
		return nil, err
	}
	return &PrintResult{OperationID: op.ID.String()}, nil
}

// DrawerStatus reports whether the cash drawer is open.
func (ps *PrintService) DrawerStatus(ctx context.Context, deviceID string) (bool, error) {
	var open bool
	err := ps.devices.WithSession(ctx, deviceID, func(ctx context.Context, sess *Session) error {
		d, err := sess.Drawer()
		if err != nil {
			return err
		}
		open, err = d.IsDrawerOpen(ctx)
		return err
	})
	return open, err
}

// PrintLine is one line of free text with its styles.
type PrintLine struct {
	Text         string `json:"text"`
	Bold         bool   `json:"bold"`
	Condensed    bool   `json:"condensed"`
	DoubleHeight bool   `json:"double_height"`
	Center       bool   `json:"center"`
	// Inline prints without the trailing line feed.
	Inline bool `json:"inline"`
}

// PrintLinesRequest represents a free text print job
type PrintLinesRequest struct {
	Lines []PrintLine `json:"lines"`
	Cut   bool        `json:"cut"`
}

// PrintResult is returned by every print call.
type PrintResult struct {
	OperationID string `json:"operation_id"`
}
