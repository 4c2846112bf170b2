package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/database"
	"ecf-service/internal/model"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return database.Wrap(db, zaptest.NewLogger(t)), mock
}

var deviceRowColumns = []string{
	"id", "device_id", "device_type", "brand", "model", "serial_number",
	"connection_type", "connection_config", "capabilities", "location",
	"status", "last_ping", "error_info", "created_at", "updated_at",
}

func deviceRow(id uuid.UUID, now time.Time) []driver.Value {
	return []driver.Value{
		id.String(), "caixa-01", "FISCAL_PRINTER", "daruma", "FS345", nil,
		"SERIAL", []byte(`{"port":"/dev/ttyS0","baud_rate":9600}`), []byte(`["COUPON"]`), nil,
		"ONLINE", nil, nil, now, now,
	}
}

func TestDeviceRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zaptest.NewLogger(t))

	device := &model.Device{
		ID:               uuid.New(),
		DeviceID:         "caixa-01",
		DeviceType:       model.DeviceTypeFiscalPrinter,
		Brand:            model.BrandDaruma,
		Model:            "FS345",
		ConnectionType:   model.ConnectionTypeSerial,
		ConnectionConfig: model.JSONObject{"port": "/dev/ttyS0"},
		Status:           model.DeviceStatusOffline,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO devices")).
		WithArgs(device.ID, "caixa-01", model.DeviceTypeFiscalPrinter, model.BrandDaruma, "FS345",
			sqlmock.AnyArg(), model.ConnectionTypeSerial, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), model.DeviceStatusOffline, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), device))
}

func TestDeviceRepositoryGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zaptest.NewLogger(t))
	id := uuid.New()
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM devices WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(deviceRowColumns).AddRow(deviceRow(id, now)...))

	device, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, device.ID)
	assert.Equal(t, model.BrandDaruma, device.Brand)
	assert.Equal(t, "/dev/ttyS0", device.ConnectionConfig["port"])
	assert.True(t, device.HasCapability(model.CapabilityCoupon))
	assert.Nil(t, device.SerialNumber)
}

func TestDeviceRepositoryNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zaptest.NewLogger(t))
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM devices WHERE device_id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(deviceRowColumns))
	_, err := repo.GetByDeviceID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM devices")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrNotFound)
}

func TestDeviceRepositoryUpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zaptest.NewLogger(t))
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE devices SET status = $2, error_info = $3")).
		WithArgs(id, model.DeviceStatusError, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), id, model.DeviceStatusError, model.JSONObject{"error": "timeout"})
	require.NoError(t, err)
}

func TestDeviceRepositoryListFiltersAndPaginates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db, zaptest.NewLogger(t))
	now := time.Now()
	brand := model.BrandDaruma
	status := model.DeviceStatusOnline

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM devices WHERE brand = $1 AND status = $2")).
		WithArgs(brand, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(brand, status, 2, 2).
		WillReturnRows(sqlmock.NewRows(deviceRowColumns).AddRow(deviceRow(uuid.New(), now)...))

	devices, total, err := repo.List(context.Background(), &DeviceFilter{
		Brand:   &brand,
		Status:  &status,
		Page:    2,
		PerPage: 2,
		SortBy:  "created_at; DROP TABLE devices",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, devices, 1)
}
