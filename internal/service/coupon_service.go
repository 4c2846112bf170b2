// internal/service/coupon_service.go
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/utils"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/fiscal"
)

// CouponService issues fiscal coupons through a device session.
type CouponService struct {
	devices     *DeviceService
	auditLogger *utils.AuditLogger
	logger      *utils.ServiceLogger
}

// NewCouponService creates a new coupon service
func NewCouponService(devices *DeviceService, logger *zap.Logger) *CouponService {
	return &CouponService{
		devices:     devices,
		auditLogger: utils.NewAuditLogger(logger),
		logger:      utils.NewServiceLogger(logger, "coupon-service"),
	}
}

type couponFunc func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation, res *CouponResult) error

func (cs *CouponService) run(ctx context.Context, deviceID string, opType model.OperationType, request model.JSONObject, fn couponFunc) (*CouponResult, error) {
	res := &CouponResult{}
	op, err := cs.devices.Execute(ctx, deviceID, opType, request, func(ctx context.Context, sess *Session, op *model.FiscalOperation) error {
		p, err := sess.Fiscal()
		if err != nil {
			return err
		}
		err = fn(ctx, p, op, res)
		res.Coupon = p.Coupon()
		return err
	})
	if err != nil {
		return nil, err
	}
	res.OperationID = op.ID
	cs.publish(op.DeviceID, res)
	return res, nil
}

func (cs *CouponService) publish(deviceID uuid.UUID, res *CouponResult) {
	cs.devices.events.Publish(newEvent(model.EventCouponChanged, deviceID, model.SeverityInfo, model.JSONObject{
		"is_open":         res.Coupon.IsOpen,
		"is_totalized":    res.Coupon.IsTotalized,
		"item_count":      len(res.Coupon.Items),
		"totalized_value": res.Coupon.TotalizedValue.StringFixed(2),
		"payments_total":  res.Coupon.PaymentsTotal.StringFixed(2),
		"coo":             res.COO,
	}, cs.devices.clock.Now()))
}

// Status returns the coupon tracked by the session and whether the device
// itself reports an open coupon.
func (cs *CouponService) Status(ctx context.Context, deviceID string) (*CouponStatus, error) {
	var status *CouponStatus
	err := cs.devices.WithSession(ctx, deviceID, func(ctx context.Context, sess *Session) error {
		p, err := sess.Fiscal()
		if err != nil {
			return err
		}
		open, err := p.HasOpenCoupon(ctx)
		if err != nil {
			return err
		}
		status = &CouponStatus{Coupon: p.Coupon(), DeviceOpen: open, Till: p.TillState()}
		return nil
	})
	return status, err
}

// Open starts a new coupon.
func (cs *CouponService) Open(ctx context.Context, deviceID string) (*CouponResult, error) {
	return cs.run(ctx, deviceID, model.OperationCouponOpen, model.JSONObject{},
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation, _ *CouponResult) error {
			return p.Open(ctx)
		})
}

// IdentifyCustomer prints the buyer identification.
func (cs *CouponService) IdentifyCustomer(ctx context.Context, deviceID string, customer driver.Customer) (*CouponResult, error) {
	request := model.JSONObject{
		"name":     customer.Name,
		"address":  customer.Address,
		"document": customer.Document,
	}
	return cs.run(ctx, deviceID, model.OperationCouponIdentify, request,
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation, _ *CouponResult) error {
			return p.IdentifyCustomer(ctx, customer)
		})
}

// AddItem registers an item. A logical tax type is resolved to the device
// tax code when no code is given.
func (cs *CouponService) AddItem(ctx context.Context, deviceID string, req *AddItemRequest) (*CouponResult, error) {
	item := req.item()
	request := model.JSONObject{
		"code":        req.Code,
		"description": req.Description,
		"price":       req.Price.String(),
		"quantity":    item.Quantity.String(),
		"tax_code":    req.TaxCode,
		"tax":         string(req.Tax),
		"unit":        string(req.Unit),
		"discount":    req.Discount.String(),
		"surcharge":   req.Surcharge.String(),
	}
	return cs.run(ctx, deviceID, model.OperationCouponAddItem, request,
		func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation, res *CouponResult) error {
			if item.TaxCode == "" {
				tax := req.Tax
				if tax == "" {
					tax = driver.TaxNone
				}
				code, err := p.TaxConstant(ctx, tax)
				if err != nil {
					return err
				}
				item.TaxCode = code
			}
			id, err := p.AddItem(ctx, item)
			if err != nil && !driver.IsCommitted(err) {
				return err
			}
			res.ItemID = id
			op.Result = model.JSONObject{"item_id": id, "tax_code": item.TaxCode}
			return err
		})
}

// CancelItem removes an item from the open coupon.
func (cs *CouponService) CancelItem(ctx context.Context, deviceID string, itemID int) (*CouponResult, error) {
	return cs.run(ctx, deviceID, model.OperationCouponCancelItem, model.JSONObject{"item_id": itemID},
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation, res *CouponResult) error {
			res.ItemID = itemID
			return p.CancelItem(ctx, itemID)
		})
}

// Totalize fixes the payable value of the coupon.
func (cs *CouponService) Totalize(ctx context.Context, deviceID string, req *TotalizeRequest) (*CouponResult, error) {
	request := model.JSONObject{
		"discount":  req.Discount.String(),
		"surcharge": req.Surcharge.String(),
		"tax":       string(req.Tax),
	}
	return cs.run(ctx, deviceID, model.OperationCouponTotalize, request,
		func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation, res *CouponResult) error {
			total, err := p.Totalize(ctx, req.Discount, req.Surcharge, req.Tax)
			if err != nil {
				return err
			}
			res.Value = &total
			op.Amount = &total
			op.Result = model.JSONObject{"total": total.StringFixed(2)}
			return nil
		})
}

// AddPayment registers a payment and returns the device's answer, usually
// the remaining value.
func (cs *CouponService) AddPayment(ctx context.Context, deviceID string, req *PaymentRequest) (*CouponResult, error) {
	request := model.JSONObject{
		"method":      req.Method,
		"value":       req.Value.String(),
		"description": req.Description,
	}
	return cs.run(ctx, deviceID, model.OperationCouponAddPayment, request,
		func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation, res *CouponResult) error {
			remaining, err := p.AddPayment(ctx, req.Method, req.Value, req.Description)
			if err != nil && !driver.IsCommitted(err) {
				return err
			}
			value := req.Value
			res.Value = &remaining
			op.Amount = &value
			op.Result = model.JSONObject{"remaining": remaining.StringFixed(2)}
			return err
		})
}

// Close finishes the coupon and records it in the audit trail.
func (cs *CouponService) Close(ctx context.Context, deviceID string, message string) (*CouponResult, error) {
	return cs.run(ctx, deviceID, model.OperationCouponClose, model.JSONObject{"message": message},
		func(ctx context.Context, p *fiscal.Printer, op *model.FiscalOperation, res *CouponResult) error {
			before := p.Coupon()
			coo, err := p.Close(ctx, message)
			if err != nil && !driver.IsCommitted(err) {
				return err
			}
			total := before.TotalizedValue
			res.COO = coo
			op.COO = &coo
			op.Amount = &total
			op.Result = model.JSONObject{
				"coo":   coo,
				"total": total.StringFixed(2),
				"paid":  before.PaymentsTotal.StringFixed(2),
			}
			cs.auditLogger.LogCouponClosed(deviceID, coo, total, before.PaymentsTotal)
			return err
		})
}

// Cancel cancels the open coupon.
func (cs *CouponService) Cancel(ctx context.Context, deviceID string) (*CouponResult, error) {
	return cs.run(ctx, deviceID, model.OperationCouponCancel, model.JSONObject{},
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation, _ *CouponResult) error {
			if err := p.Cancel(ctx); err != nil {
				return err
			}
			cs.auditLogger.LogCouponCancelled(deviceID, false)
			return nil
		})
}

// CancelLast cancels the last closed coupon.
func (cs *CouponService) CancelLast(ctx context.Context, deviceID string) (*CouponResult, error) {
	return cs.run(ctx, deviceID, model.OperationCancelLastCoupon, model.JSONObject{},
		func(ctx context.Context, p *fiscal.Printer, _ *model.FiscalOperation, _ *CouponResult) error {
			if err := p.CancelLastCoupon(ctx); err != nil {
				return err
			}
			cs.auditLogger.LogCouponCancelled(deviceID, true)
			return nil
		})
}

// AddItemRequest is an item plus an optional logical tax type used when
// TaxCode is empty.
type AddItemRequest struct {
	driver.ItemRequest
	// Quantity overrides the embedded field on the wire so an omitted
	// quantity can default to one while an explicit zero is sent as is.
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Tax      driver.TaxType   `json:"tax,omitempty"`
}

func (r *AddItemRequest) item() driver.ItemRequest {
	item := r.ItemRequest
	switch {
	case r.Quantity != nil:
		item.Quantity = *r.Quantity
	case item.Quantity.IsZero():
		item.Quantity = decimal.NewFromInt(1)
	}
	return item
}

// TotalizeRequest represents a coupon totalization
type TotalizeRequest struct {
	Discount  decimal.Decimal `json:"discount"`
	Surcharge decimal.Decimal `json:"surcharge"`
	Tax       driver.TaxType  `json:"tax,omitempty"`
}

// PaymentRequest represents a coupon payment. Method is the device payment
// code.
type PaymentRequest struct {
	Method      string          `json:"method" binding:"required"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

// CouponResult is returned by every coupon call.
type CouponResult struct {
	OperationID uuid.UUID        `json:"operation_id"`
	ItemID      int              `json:"item_id,omitempty"`
	Value       *decimal.Decimal `json:"value,omitempty"`
	COO         int              `json:"coo,omitempty"`
	Coupon      fiscal.Coupon    `json:"coupon"`
}

// CouponStatus is the coupon as tracked locally and as seen by the device.
type CouponStatus struct {
	Coupon     fiscal.Coupon    `json:"coupon"`
	DeviceOpen bool             `json:"device_open"`
	Till       fiscal.TillState `json:"till"`
}
