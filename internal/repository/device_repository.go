// internal/repository/device_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecf-service/internal/database"
	"ecf-service/internal/model"
)

const deviceColumns = `id, device_id, device_type, brand, model, serial_number,
		   connection_type, connection_config, capabilities, location,
		   status, last_ping, error_info, created_at, updated_at`

var deviceSortColumns = map[string]bool{
	"device_id":  true,
	"brand":      true,
	"model":      true,
	"status":     true,
	"last_ping":  true,
	"created_at": true,
}

// deviceRepository implements DeviceRepository interface
type deviceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *database.DB, logger *zap.Logger) DeviceRepository {
	return &deviceRepository{
		db:     db,
		logger: logger.With(zap.String("repository", "device")),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*model.Device, error) {
	device := &model.Device{}
	err := row.Scan(
		&device.ID, &device.DeviceID, &device.DeviceType, &device.Brand,
		&device.Model, &device.SerialNumber, &device.ConnectionType,
		&device.ConnectionConfig, &device.Capabilities, &device.Location,
		&device.Status, &device.LastPing, &device.ErrorInfo,
		&device.CreatedAt, &device.UpdatedAt,
	)
	return device, err
}

// Create creates a new device
func (r *deviceRepository) Create(ctx context.Context, device *model.Device) error {
	query := `
		INSERT INTO devices (
			id, device_id, device_type, brand, model, serial_number,
			connection_type, connection_config, capabilities, location,
			status, error_info
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		device.ID, device.DeviceID, device.DeviceType, device.Brand,
		device.Model, device.SerialNumber, device.ConnectionType,
		device.ConnectionConfig, device.Capabilities, device.Location,
		device.Status, device.ErrorInfo,
	)
	if err != nil {
		r.logger.Error("Failed to create device", zap.Error(err), zap.String("device_id", device.DeviceID))
		return fmt.Errorf("failed to create device: %w", err)
	}

	r.logger.Info("Device created successfully", zap.String("device_id", device.DeviceID))
	return nil
}

// GetByID retrieves a device by its UUID
func (r *deviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
		r.logger.Error("Failed to get device by ID", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// GetByDeviceID retrieves a device by its device ID
func (r *deviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
		}
		r.logger.Error("Failed to get device by device_id", zap.Error(err), zap.String("device_id", deviceID))
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

func checkAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// Update updates an existing device
func (r *deviceRepository) Update(ctx context.Context, device *model.Device) error {
	query := `
		UPDATE devices SET
			device_type = $2, brand = $3, model = $4, serial_number = $5,
			connection_type = $6, connection_config = $7, capabilities = $8,
			location = $9, status = $10, error_info = $11,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		device.ID, device.DeviceType, device.Brand, device.Model,
		device.SerialNumber, device.ConnectionType, device.ConnectionConfig,
		device.Capabilities, device.Location, device.Status, device.ErrorInfo,
	)
	if err != nil {
		r.logger.Error("Failed to update device", zap.Error(err), zap.String("device_id", device.DeviceID))
		return fmt.Errorf("failed to update device: %w", err)
	}
	return checkAffected(result, "device "+device.ID.String())
}

// UpdateStatus updates device status. errorInfo is cleared when nil.
func (r *deviceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DeviceStatus, errorInfo model.JSONObject) error {
	query := `
		UPDATE devices SET status = $2, error_info = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, errorInfo)
	if err != nil {
		r.logger.Error("Failed to update device status", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("failed to update device status: %w", err)
	}
	return checkAffected(result, "device "+id.String())
}

// UpdateLastPing updates device last ping time
func (r *deviceRepository) UpdateLastPing(ctx context.Context, id uuid.UUID, pingTime time.Time) error {
	query := `UPDATE devices SET last_ping = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, pingTime); err != nil {
		r.logger.Error("Failed to update last ping", zap.Error(err))
		return fmt.Errorf("failed to update last ping: %w", err)
	}
	return nil
}

// Delete removes a device
func (r *deviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete device", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if err := checkAffected(result, "device "+id.String()); err != nil {
		return err
	}

	r.logger.Info("Device deleted successfully", zap.String("id", id.String()))
	return nil
}

// List retrieves devices with filtering and pagination
func (r *deviceRepository) List(ctx context.Context, filter *DeviceFilter) ([]*model.Device, int, error) {
	if filter == nil {
		filter = &DeviceFilter{}
	}
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Brand != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("brand = $%d", argIndex))
		args = append(args, *filter.Brand)
		argIndex++
	}
	if filter.Status != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.ConnectionType != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("connection_type = $%d", argIndex))
		args = append(args, *filter.ConnectionType)
		argIndex++
	}
	if filter.SearchTerm != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("(device_id ILIKE $%d OR model ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.SearchTerm+"%")
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM devices %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	orderBy := "created_at DESC"
	if deviceSortColumns[filter.SortBy] {
		order := "ASC"
		if filter.SortOrder == "desc" {
			order = "DESC"
		}
		orderBy = filter.SortBy + " " + order
	}

	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM devices %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		deviceColumns, whereClause, orderBy, argIndex, argIndex+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list devices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	devices := []*model.Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan device row: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate device rows: %w", err)
	}

	return devices, total, nil
}
