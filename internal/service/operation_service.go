// internal/service/operation_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/utils"
)

// OperationService answers journal queries
type OperationService struct {
	devices *DeviceService
	logger  *utils.ServiceLogger
}

// NewOperationService creates a new operation service instance
func NewOperationService(devices *DeviceService, logger *zap.Logger) *OperationService {
	return &OperationService{
		devices: devices,
		logger:  utils.NewServiceLogger(logger, "operation-service"),
	}
}

// GetOperation retrieves operation details
func (os *OperationService) GetOperation(ctx context.Context, operationID uuid.UUID) (*model.FiscalOperation, error) {
	return os.devices.Journal().Get(ctx, operationID)
}

// ListOperations lists the journal of a device, newest first
func (os *OperationService) ListOperations(ctx context.Context, deviceID string, filter *OperationFilter) ([]*model.FiscalOperation, *PaginationResult, error) {
	device, err := os.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, nil, err
	}

	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}
	operations, total, err := os.devices.Journal().List(ctx, &model.JournalFilter{
		DeviceID:      &device.ID,
		OperationType: filter.OperationType,
		Status:        filter.Status,
		From:          filter.From,
		To:            filter.To,
		Limit:         perPage,
		Offset:        (page - 1) * perPage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list operations: %w", err)
	}

	return operations, &PaginationResult{
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// OperationFilter represents operation listing filters
type OperationFilter struct {
	OperationType *model.OperationType   `json:"operation_type,omitempty"`
	Status        *model.OperationStatus `json:"status,omitempty"`
	From          *time.Time             `json:"from,omitempty"`
	To            *time.Time             `json:"to,omitempty"`
	Page          int                    `json:"page"`
	PerPage       int                    `json:"per_page"`
}
