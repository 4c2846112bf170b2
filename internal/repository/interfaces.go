// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ecf-service/internal/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// DeviceRepository defines device data access operations
type DeviceRepository interface {
	Create(ctx context.Context, device *model.Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*model.Device, error)
	Update(ctx context.Context, device *model.Device) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.DeviceStatus, errorInfo model.JSONObject) error
	UpdateLastPing(ctx context.Context, id uuid.UUID, pingTime time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, filter *DeviceFilter) ([]*model.Device, int, error)
}

// JournalRepository stores one row per fiscal call made against a device.
type JournalRepository interface {
	Insert(ctx context.Context, op *model.FiscalOperation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FiscalOperation, error)
	List(ctx context.Context, filter *model.JournalFilter) ([]*model.FiscalOperation, int, error)
	LastCOO(ctx context.Context, deviceID uuid.UUID) (int, bool, error)
	Summary(ctx context.Context, deviceID uuid.UUID, since time.Time) (*JournalSummary, error)
}

// Spool keeps journal entries that could not reach the database.
type Spool interface {
	Put(op *model.FiscalOperation) error
	Pending(limit int) ([]*model.FiscalOperation, error)
	Remove(id uuid.UUID) error
	Len() (int, error)
	Close() error
}

// DeviceFilter represents device listing filters
type DeviceFilter struct {
	Brand          *model.DeviceBrand    `json:"brand,omitempty"`
	Status         *model.DeviceStatus   `json:"status,omitempty"`
	ConnectionType *model.ConnectionType `json:"connection_type,omitempty"`
	SearchTerm     *string               `json:"search_term,omitempty"`
	Page           int                   `json:"page"`
	PerPage        int                   `json:"per_page"`
	SortBy         string                `json:"sort_by"`
	SortOrder      string                `json:"sort_order"`
}

// JournalSummary aggregates a device's journal since a point in time.
type JournalSummary struct {
	DeviceID      uuid.UUID                   `json:"device_id"`
	Since         time.Time                   `json:"since"`
	Total         int                         `json:"total_operations"`
	Failed        int                         `json:"failed_operations"`
	CouponsClosed int                         `json:"coupons_closed"`
	Amount        string                      `json:"amount"`
	ByType        map[model.OperationType]int `json:"by_type"`
}
