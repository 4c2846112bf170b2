// internal/service/till_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/utils"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/fiscal"
)

// TillService runs readings, reductions, cash movements and the non sale
// fiscal documents.
type TillService struct {
	devices     *DeviceService
	auditLogger *utils.AuditLogger
	logger      *utils.ServiceLogger
}

// NewTillService creates a new till service
func NewTillService(devices *DeviceService, logger *zap.Logger) *TillService {
	return &TillService{
		devices:     devices,
		auditLogger: utils.NewAuditLogger(logger),
		logger:      utils.NewServiceLogger(logger, "till-service"),
	}
}

type tillFunc func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation) error

func (ts *TillService) run(ctx context.Context, deviceID, action string, opType model.OperationType, request model.JSONObject, value *decimal.Decimal, fn tillFunc) (*TillResult, error) {
	var state fiscal.TillState
	op, err := ts.devices.Execute(ctx, deviceID, opType, request, func(ctx context.Context, sess *Session, op *model.FiscalOperation) error {
		p, err := sess.Fiscal()
		if err != nil {
			return err
		}
		op.Amount = value
		err = fn(ctx, p, op)
		state = p.TillState()
		return err
	})
	if err != nil {
		return nil, err
	}

	ts.auditLogger.LogTillEvent(deviceID, action, value)
	ts.devices.events.Publish(newEvent(model.EventTillChanged, op.DeviceID, model.SeverityInfo, model.JSONObject{
		"action": action,
		"till":   string(state),
	}, ts.devices.clock.Now()))
	return &TillResult{OperationID: op.ID.String(), Till: state}, nil
}

// Summarize emits a reading X.
func (ts *TillService) Summarize(ctx context.Context, deviceID string) (*TillResult, error) {
	return ts.run(ctx, deviceID, "reading_x", model.OperationTillSummarize, model.JSONObject{}, nil,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			return p.Summarize(ctx)
		})
}

// Open opens the fiscal day.
func (ts *TillService) Open(ctx context.Context, deviceID string) (*TillResult, error) {
	return ts.run(ctx, deviceID, "open", model.OperationTillOpen, model.JSONObject{}, nil,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			return p.OpenTill(ctx)
		})
}

// Close emits the Z reduction.
func (ts *TillService) Close(ctx context.Context, deviceID string, previousDay bool) (*TillResult, error) {
	return ts.run(ctx, deviceID, "reduction_z", model.OperationTillClose, model.JSONObject{"previous_day": previousDay}, nil,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			return p.CloseTill(ctx, previousDay)
		})
}

// AddCash registers a cash supply.
func (ts *TillService) AddCash(ctx context.Context, deviceID string, value decimal.Decimal) (*TillResult, error) {
	return ts.run(ctx, deviceID, "cash_in", model.OperationTillAddCash, model.JSONObject{"value": value.String()}, &value,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			return p.TillAddCash(ctx, value)
		})
}

// RemoveCash registers a cash withdrawal.
func (ts *TillService) RemoveCash(ctx context.Context, deviceID string, value decimal.Decimal) (*TillResult, error) {
	return ts.run(ctx, deviceID, "cash_out", model.OperationTillRemoveCash, model.JSONObject{"value": value.String()}, &value,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			return p.TillRemoveCash(ctx, value)
		})
}

// ReadMemory prints the fiscal memory between two dates.
func (ts *TillService) ReadMemory(ctx context.Context, deviceID string, start, end time.Time) (*TillResult, error) {
	request := model.JSONObject{"start": start.Format(time.DateOnly), "end": end.Format(time.DateOnly)}
	return ts.run(ctx, deviceID, "memory_by_date", model.OperationTillReadMemory, request, nil,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			return p.TillReadMemory(ctx, start, end)
		})
}

// ReadMemoryToSerial returns the fiscal memory between two dates as text
// instead of printing it.
func (ts *TillService) ReadMemoryToSerial(ctx context.Context, deviceID string, start, end time.Time) (*TillResult, error) {
	request := model.JSONObject{"start": start.Format(time.DateOnly), "end": end.Format(time.DateOnly), "to_serial": true}
	var lines []string
	res, err := ts.run(ctx, deviceID, "memory_to_serial", model.OperationTillReadMemory, request, nil,
		func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation) error {
			var err error
			lines, err = p.TillReadMemoryToSerial(ctx, start, end)
			if err != nil {
				return err
			}
			op.Result = model.JSONObject{"lines": len(lines)}
			return nil
		})
	if err != nil {
		return nil, err
	}
	res.Lines = lines
	return res, nil
}

// ReadMemoryByReductions prints the fiscal memory between two CRZ numbers.
func (ts *TillService) ReadMemoryByReductions(ctx context.Context, deviceID string, start, end int) (*TillResult, error) {
	request := model.JSONObject{"start_crz": start, "end_crz": end}
	return ts.run(ctx, deviceID, "memory_by_reductions", model.OperationTillReadMemory, request, nil,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			return p.TillReadMemoryByReductions(ctx, start, end)
		})
}

// PendingReduce asks the device whether a Z reduction is pending.
func (ts *TillService) PendingReduce(ctx context.Context, deviceID string) (bool, error) {
	var pending bool
	err := ts.devices.WithSession(ctx, deviceID, func(ctx context.Context, sess *Session) error {
		p, err := sess.Fiscal()
		if err != nil {
			return err
		}
		pending, err = p.HasPendingReduce(ctx)
		return err
	})
	return pending, err
}

// GerencialReport prints a management report. Lines are sent one per call;
// the report is closed even when a line fails.
func (ts *TillService) GerencialReport(ctx context.Context, deviceID string, lines []string) (*TillResult, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: report has no lines", driver.ErrInvalidArgument)
	}
	request := model.JSONObject{"lines": len(lines)}
	return ts.run(ctx, deviceID, "gerencial_report", model.OperationGerencialReport, request, nil,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation) error {
			if err := p.GerencialReportOpen(ctx); err != nil {
				return err
			}
			for _, line := range lines {
				if err := p.GerencialReportPrint(ctx, withNewline(line)); err != nil {
					if closeErr := p.GerencialReportClose(ctx); closeErr != nil {
						ts.logger.Warn("Failed to close report after error", zap.Error(closeErr))
					}
					return err
				}
			}
			return p.GerencialReportClose(ctx)
		})
}

// PaymentReceipt prints the non fiscal receipt bound to a closed coupon,
// and its duplicate when asked and supported.
func (ts *TillService) PaymentReceipt(ctx context.Context, deviceID string, req *PaymentReceiptRequest) (*TillResult, error) {
	request := model.JSONObject{
		"identifier": req.Identifier,
		"coo":        req.COO,
		"method":     req.Method,
		"value":      req.Value.String(),
		"duplicate":  req.Duplicate,
	}
	value := req.Value
	return ts.run(ctx, deviceID, "payment_receipt", model.OperationPaymentReceipt, request, &value,
		func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation) error {
			if req.Duplicate && !p.SupportsDuplicateReceipt() {
				return fmt.Errorf("%w: duplicate receipt", driver.ErrNotSupported)
			}
			coo := req.COO
			op.COO = &coo
			if err := p.PaymentReceiptOpen(ctx, req.Identifier, req.COO, req.Method, req.Value); err != nil {
				return err
			}
			for _, line := range req.Lines {
				if err := p.PaymentReceiptPrint(ctx, withNewline(line)); err != nil {
					return err
				}
			}
			if err := p.PaymentReceiptClose(ctx); err != nil {
				return err
			}
			if req.Duplicate {
				return p.PaymentReceiptPrintDuplicate(ctx)
			}
			return nil
		})
}

func withNewline(line string) string {
	if strings.HasSuffix(line, "\n") {
		return line
	}
	return line + "\n"
}

// PaymentReceiptRequest represents a payment receipt (comprovante de credito
// ou debito).
type PaymentReceiptRequest struct {
	Identifier string          `json:"identifier"`
	COO        int             `json:"coo" binding:"required"`
	Method     string          `json:"method" binding:"required"`
	Value      decimal.Decimal `json:"value"`
	Lines      []string        `json:"lines"`
	Duplicate  bool            `json:"duplicate"`
}

// TillResult is returned by every till call.
type TillResult struct {
	OperationID string           `json:"operation_id"`
	Till        fiscal.TillState `json:"till"`
	// Lines holds a fiscal memory dump.
	Lines []string `json:"lines,omitempty"`
}
