// internal/model/operation.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationType represents the fiscal operation being journaled
type OperationType string

const (
	OperationCouponOpen       OperationType = "COUPON_OPEN"
	OperationCouponIdentify   OperationType = "COUPON_IDENTIFY"
	OperationCouponAddItem    OperationType = "COUPON_ADD_ITEM"
	OperationCouponCancelItem OperationType = "COUPON_CANCEL_ITEM"
	OperationCouponTotalize   OperationType = "COUPON_TOTALIZE"
	OperationCouponAddPayment OperationType = "COUPON_ADD_PAYMENT"
	OperationCouponClose      OperationType = "COUPON_CLOSE"
	OperationCouponCancel     OperationType = "COUPON_CANCEL"
	OperationCancelLastCoupon OperationType = "CANCEL_LAST_COUPON"
	OperationTillSummarize    OperationType = "TILL_SUMMARIZE"
	OperationTillOpen         OperationType = "TILL_OPEN"
	OperationTillClose        OperationType = "TILL_CLOSE"
	OperationTillAddCash      OperationType = "TILL_ADD_CASH"
	OperationTillRemoveCash   OperationType = "TILL_REMOVE_CASH"
	OperationTillReadMemory   OperationType = "TILL_READ_MEMORY"
	OperationGerencialReport  OperationType = "GERENCIAL_REPORT"
	OperationPaymentReceipt   OperationType = "PAYMENT_RECEIPT"
	OperationNonFiscalPrint   OperationType = "NON_FISCAL_PRINT"
	OperationOpenDrawer       OperationType = "OPEN_DRAWER"
	OperationCutPaper         OperationType = "CUT_PAPER"
)

// OperationStatus represents the status of an operation
type OperationStatus string

const (
	OperationStatusProcessing OperationStatus = "PROCESSING"
	OperationStatusSuccess    OperationStatus = "SUCCESS"
	OperationStatusFailed     OperationStatus = "FAILED"
	OperationStatusTimeout    OperationStatus = "TIMEOUT"
)

// FiscalOperation is one journaled call against a device.
type FiscalOperation struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	DeviceID      uuid.UUID        `json:"device_id" db:"device_id"`
	OperationType OperationType    `json:"operation_type" db:"operation_type"`
	Status        OperationStatus  `json:"status" db:"status"`
	Request       JSONObject       `json:"request" db:"request"`
	Result        JSONObject       `json:"result" db:"result"`
	Amount        *decimal.Decimal `json:"amount,omitempty" db:"amount"`
	COO           *int             `json:"coo,omitempty" db:"coo"`
	ErrorCode     *string          `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage  *string          `json:"error_message,omitempty" db:"error_message"`
	StartedAt     time.Time        `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at" db:"completed_at"`
	DurationMs    *int             `json:"duration_ms" db:"duration_ms"`
}

// IsCompleted checks if operation is completed (success or failed)
func (op *FiscalOperation) IsCompleted() bool {
	return op.Status == OperationStatusSuccess ||
		op.Status == OperationStatusFailed ||
		op.Status == OperationStatusTimeout
}

// Complete stamps the operation with its outcome.
func (op *FiscalOperation) Complete(now time.Time, err error) {
	op.CompletedAt = &now
	d := int(now.Sub(op.StartedAt).Milliseconds())
	op.DurationMs = &d
	if err == nil {
		op.Status = OperationStatusSuccess
		return
	}
	op.Status = OperationStatusFailed
	msg := err.Error()
	op.ErrorMessage = &msg
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	DeviceID      *uuid.UUID
	OperationType *OperationType
	Status        *OperationStatus
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}
