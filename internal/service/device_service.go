// internal/service/device_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"ecf-service/internal/config"
	drivers "ecf-service/internal/driver"
	"ecf-service/internal/model"
	"ecf-service/internal/protocol"
	"ecf-service/internal/repository"
	"ecf-service/internal/utils"
	"ecf-service/pkg/driver"
	"ecf-service/pkg/fiscal"
)

var (
	// ErrDeviceExists is returned when registering a device id twice.
	ErrDeviceExists = errors.New("device already registered")
	// ErrDeviceNotConnected is returned for calls on a device without a session.
	ErrDeviceNotConnected = errors.New("device not connected")
	// ErrDeviceConnected is returned when deleting or reconfiguring a connected device.
	ErrDeviceConnected = errors.New("device is connected, disconnect first")
	// ErrValidation wraps request validation failures.
	ErrValidation = errors.New("validation failed")
)

// TransportFactory opens the byte stream of a device.
type TransportFactory func(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (protocol.Transport, error)

// Option configures a DeviceService.
type Option func(*DeviceService)

// WithClock replaces the wall clock used for journal timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(ds *DeviceService) { ds.clock = c }
}

// WithTransportFactory replaces protocol.CreateProtocol.
func WithTransportFactory(f TransportFactory) Option {
	return func(ds *DeviceService) { ds.newTransport = f }
}

// WithEvents sets the event publisher.
func WithEvents(p EventPublisher) Option {
	return func(ds *DeviceService) { ds.events = p }
}

// DeviceService owns the device registry and the one live session each
// connected device has.
type DeviceService struct {
	deviceRepo     repository.DeviceRepository
	journal        *Journal
	driverRegistry *drivers.Registry
	config         *config.Config
	logger         *utils.ServiceLogger
	auditLogger    *utils.AuditLogger

	sessions     *xsync.MapOf[string, *Session]
	connectMu    sync.Mutex
	newTransport TransportFactory
	events       EventPublisher
	clock        clockwork.Clock
}

// NewDeviceService creates a new device service instance
func NewDeviceService(
	deviceRepo repository.DeviceRepository,
	journal *Journal,
	driverRegistry *drivers.Registry,
	config *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *DeviceService {
	ds := &DeviceService{
		deviceRepo:     deviceRepo,
		journal:        journal,
		driverRegistry: driverRegistry,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "device-service"),
		auditLogger:    utils.NewAuditLogger(logger),
		sessions:       xsync.NewMapOf[string, *Session](),
		newTransport:   protocol.CreateProtocol,
		events:         nopPublisher{},
		clock:          clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Journal returns the fiscal journal.
func (ds *DeviceService) Journal() *Journal { return ds.journal }

// Registry returns the driver registry.
func (ds *DeviceService) Registry() *drivers.Registry { return ds.driverRegistry }

// RegisterDevice registers a new device. Its type and capabilities come from
// the driver registered for its brand and model.
func (ds *DeviceService) RegisterDevice(ctx context.Context, req *RegisterDeviceRequest) (*model.Device, error) {
	if err := ds.validateRegisterRequest(req); err != nil {
		return nil, err
	}
	if _, err := ds.deviceRepo.GetByDeviceID(ctx, req.DeviceID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, req.DeviceID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	sample, err := ds.driverRegistry.CreateDriver(&model.Device{Brand: req.Brand, Model: req.Model}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	traits := drivers.Traits(sample)
	sample.Close()

	deviceType := model.DeviceTypePrinter
	capabilities := make(model.JSONArray, 0, len(traits))
	for _, t := range traits {
		if t == model.CapabilityCoupon {
			deviceType = model.DeviceTypeFiscalPrinter
		}
		capabilities = append(capabilities, string(t))
	}

	now := ds.clock.Now()
	device := &model.Device{
		ID:               uuid.New(),
		DeviceID:         req.DeviceID,
		DeviceType:       deviceType,
		Brand:            req.Brand,
		Model:            req.Model,
		SerialNumber:     req.SerialNumber,
		ConnectionType:   req.ConnectionType,
		ConnectionConfig: model.JSONObject(req.ConnectionConfig),
		Capabilities:     capabilities,
		Location:         req.Location,
		Status:           model.DeviceStatusOffline,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if device.ConnectionConfig == nil {
		device.ConnectionConfig = model.JSONObject{}
	}

	if err := ds.deviceRepo.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	ds.auditLogger.LogDeviceRegistration(device.DeviceID, string(device.Brand), device.Model)
	ds.logger.Info("Device registered",
		zap.String("device_id", device.DeviceID),
		zap.String("device_type", string(device.DeviceType)),
		zap.Strings("capabilities", toStrings(traits)),
	)
	return device, nil
}

// ConnectDevice opens the device's transport, binds its driver and runs the
// driver setup sequence. Connecting a connected device is a no-op.
func (ds *DeviceService) ConnectDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	ds.connectMu.Lock()
	defer ds.connectMu.Unlock()

	device, err := ds.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if _, ok := ds.sessions.Load(deviceID); ok {
		return device, nil
	}

	deviceLogger := utils.NewDeviceLogger(ds.logger.Logger, device.DeviceID, string(device.Brand), device.Model)
	previous := device.Status
	if err := ds.deviceRepo.UpdateStatus(ctx, device.ID, model.DeviceStatusConnecting, nil); err != nil {
		return nil, err
	}

	sess, err := ds.openSession(ctx, device, deviceLogger)
	if err != nil {
		deviceLogger.LogConnection("connect", err)
		ds.markError(ctx, device, err)
		return nil, err
	}
	ds.sessions.Store(deviceID, sess)

	device.Status = model.DeviceStatusOnline
	device.ErrorInfo = nil
	now := ds.clock.Now()
	device.LastPing = &now
	if err := ds.deviceRepo.UpdateStatus(ctx, device.ID, device.Status, nil); err != nil {
		ds.logger.Error("Failed to update device status", zap.Error(err))
	}
	if err := ds.deviceRepo.UpdateLastPing(ctx, device.ID, now); err != nil {
		ds.logger.Warn("Failed to update last ping", zap.Error(err))
	}

	deviceLogger.LogConnection("connect", nil)
	ds.events.Publish(newEvent(model.EventDeviceConnected, device.ID, model.SeverityInfo, model.JSONObject{
		"device_id":       device.DeviceID,
		"previous_status": string(previous),
		"connection_type": string(device.ConnectionType),
		"connection_time": now,
	}, now))
	return device, nil
}

func (ds *DeviceService) openSession(ctx context.Context, device *model.Device, deviceLogger *utils.DeviceLogger) (*Session, error) {
	var (
		transport protocol.Transport
		port      *protocol.Port
	)
	if device.ConnectionType != model.ConnectionTypeVirtual {
		var err error
		transport, err = ds.newTransport(device.ConnectionType, ds.connectionConfig(device), deviceLogger.Logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := transport.Open(ctx); err != nil {
			return nil, err
		}
		port = protocol.NewPort(transport, deviceLogger.Logger, protocol.WithMaxEmptyReads(ds.config.Device.MaxEmptyReads))
	}

	drv, err := ds.driverRegistry.CreateDriver(device, port)
	if err != nil {
		if transport != nil {
			transport.Close()
		}
		return nil, err
	}

	sess := &Session{
		device:      device,
		drv:         drv,
		transport:   transport,
		connectedAt: ds.clock.Now(),
		logger:      deviceLogger,
	}
	if cp, ok := drv.(driver.CouponProtocol); ok {
		sess.printer = fiscal.NewPrinter(cp, deviceLogger.Logger, fiscal.WithClock(ds.clock))
		setupCtx, cancel := context.WithTimeout(ctx, ds.config.Device.OperationTimeout)
		defer cancel()
		if err := sess.printer.Setup(setupCtx); err != nil {
			sess.close()
			return nil, fmt.Errorf("printer setup failed: %w", err)
		}
	}
	return sess, nil
}

// connectionConfig lays the device's own connection map over the configured
// serial defaults.
func (ds *DeviceService) connectionConfig(device *model.Device) map[string]interface{} {
	merged := map[string]interface{}{}
	if device.ConnectionType == model.ConnectionTypeSerial {
		for k, v := range ds.config.SerialDefaults() {
			merged[k] = v
		}
	}
	for k, v := range device.ConnectionConfig {
		merged[k] = v
	}
	return merged
}

// DisconnectDevice closes the device session.
func (ds *DeviceService) DisconnectDevice(ctx context.Context, deviceID string) error {
	ds.connectMu.Lock()
	defer ds.connectMu.Unlock()

	device, err := ds.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return err
	}

	if sess, ok := ds.sessions.LoadAndDelete(deviceID); ok {
		sess.mu.Lock()
		closeErr := sess.close()
		sess.mu.Unlock()
		sess.logger.LogConnection("disconnect", closeErr)
	}

	if err := ds.deviceRepo.UpdateStatus(ctx, device.ID, model.DeviceStatusOffline, nil); err != nil {
		return err
	}
	ds.events.Publish(newEvent(model.EventDeviceDisconnected, device.ID, model.SeverityInfo, model.JSONObject{
		"device_id": device.DeviceID,
		"reason":    "requested",
	}, ds.clock.Now()))
	return nil
}

// Shutdown closes every open session.
func (ds *DeviceService) Shutdown(ctx context.Context) {
	ds.sessions.Range(func(id string, sess *Session) bool {
		sess.mu.Lock()
		err := sess.close()
		sess.mu.Unlock()
		sess.logger.LogConnection("shutdown", err)
		if err := ds.deviceRepo.UpdateStatus(ctx, sess.device.ID, model.DeviceStatusOffline, nil); err != nil {
			ds.logger.Warn("Failed to mark device offline", zap.String("device_id", id), zap.Error(err))
		}
		ds.sessions.Delete(id)
		return true
	})
}

// GetDevice retrieves a device by its device id
func (ds *DeviceService) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	return ds.deviceRepo.GetByDeviceID(ctx, deviceID)
}

// ListDevices lists devices with filtering and pagination
func (ds *DeviceService) ListDevices(ctx context.Context, filter *DeviceFilter) ([]*model.Device, *PaginationResult, error) {
	repoFilter := filter.toRepoFilter()
	devices, total, err := ds.deviceRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list devices: %w", err)
	}

	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return devices, &PaginationResult{
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// UpdateDeviceConfiguration replaces the connection map of a disconnected
// device.
func (ds *DeviceService) UpdateDeviceConfiguration(ctx context.Context, deviceID string, connectionConfig map[string]interface{}, location *string) (*model.Device, error) {
	device, err := ds.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if _, ok := ds.sessions.Load(deviceID); ok {
		return nil, ErrDeviceConnected
	}
	if connectionConfig != nil {
		if device.ConnectionType != model.ConnectionTypeVirtual {
			if err := protocol.ValidateConfig(device.ConnectionType, connectionConfig); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
		device.ConnectionConfig = model.JSONObject(connectionConfig)
	}
	if location != nil {
		device.Location = location
	}
	device.UpdatedAt = ds.clock.Now()

	if err := ds.deviceRepo.Update(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to update device configuration: %w", err)
	}
	ds.logger.Info("Device configuration updated", zap.String("device_id", deviceID))
	return device, nil
}

// DeleteDevice removes a disconnected device and its journal.
func (ds *DeviceService) DeleteDevice(ctx context.Context, deviceID string) error {
	device, err := ds.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return err
	}
	if _, ok := ds.sessions.Load(deviceID); ok {
		return ErrDeviceConnected
	}
	if err := ds.deviceRepo.Delete(ctx, device.ID); err != nil {
		return err
	}
	ds.logger.Info("Device deleted", zap.String("device_id", deviceID))
	return nil
}

// Session returns the live session of a device.
func (ds *DeviceService) Session(deviceID string) (*Session, error) {
	sess, ok := ds.sessions.Load(deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotConnected, deviceID)
	}
	return sess, nil
}

// ConnectedDevices returns the ids of all devices with a session.
func (ds *DeviceService) ConnectedDevices() []string {
	ids := make([]string, 0, ds.sessions.Size())
	ds.sessions.Range(func(id string, _ *Session) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// WithSession runs fn on the locked session of a device without journaling.
func (ds *DeviceService) WithSession(ctx context.Context, deviceID string, fn func(ctx context.Context, sess *Session) error) error {
	sess, err := ds.Session(deviceID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	execCtx, cancel := context.WithTimeout(ctx, ds.config.Device.OperationTimeout)
	defer cancel()
	err = fn(execCtx, sess)
	ds.afterCall(sess, err)
	return err
}

// OperationFunc runs one journaled call on a locked session. It may fill
// op.Result, op.Amount and op.COO.
type OperationFunc func(ctx context.Context, sess *Session, op *model.FiscalOperation) error

// Execute runs fn on the device session and journals the outcome.
func (ds *DeviceService) Execute(ctx context.Context, deviceID string, opType model.OperationType, request model.JSONObject, fn OperationFunc) (*model.FiscalOperation, error) {
	sess, err := ds.Session(deviceID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	op := &model.FiscalOperation{
		ID:            uuid.New(),
		DeviceID:      sess.device.ID,
		OperationType: opType,
		Status:        model.OperationStatusProcessing,
		Request:       request,
		StartedAt:     ds.clock.Now(),
	}
	opLogger := utils.NewOperationLogger(sess.logger.Logger, string(opType), op.ID.String())
	opLogger.Start()

	execCtx, cancel := context.WithTimeout(ctx, ds.config.Device.OperationTimeout)
	err = fn(execCtx, sess, op)
	cancel()

	op.Complete(ds.clock.Now(), err)
	if err != nil {
		if code, ok := driver.CodeOf(err); ok {
			s := strconv.Itoa(code)
			op.ErrorCode = &s
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrTimeout) {
			op.Status = model.OperationStatusTimeout
		}
		// The device holds the change even though the call failed.
		if driver.IsCommitted(err) {
			if op.Result == nil {
				op.Result = model.JSONObject{}
			}
			op.Result["committed"] = true
		}
		opLogger.Error(err, isRefusal(err))
	} else {
		opLogger.Success(zap.Intp("duration_ms", op.DurationMs))
	}

	if jerr := ds.journal.Record(context.WithoutCancel(ctx), op); jerr != nil {
		ds.logger.Error("Operation not journaled", zap.String("operation_id", op.ID.String()), zap.Error(jerr))
	}
	ds.publishOperation(op)
	ds.afterCall(sess, err)
	return op, err
}

// isRefusal reports errors the device or state machine raise by contract,
// as opposed to transport or driver faults.
func isRefusal(err error) bool {
	switch driver.KindOf(err) {
	case driver.KindState, driver.KindCommand:
		return true
	}
	return errors.Is(err, driver.ErrNotSupported)
}

func (ds *DeviceService) publishOperation(op *model.FiscalOperation) {
	eventType, severity := model.EventOperationCompleted, model.SeverityInfo
	data := model.JSONObject{
		"operation_id":   op.ID.String(),
		"operation_type": string(op.OperationType),
		"status":         string(op.Status),
	}
	if op.DurationMs != nil {
		data["duration_ms"] = *op.DurationMs
	}
	if op.ErrorMessage != nil {
		eventType, severity = model.EventOperationFailed, model.SeverityWarning
		data["error_message"] = *op.ErrorMessage
	}
	ds.events.Publish(newEvent(eventType, op.DeviceID, severity, data, ds.clock.Now()))
}

// afterCall flags the device when the transport stopped answering.
func (ds *DeviceService) afterCall(sess *Session, err error) {
	if err == nil || driver.KindOf(err) != driver.KindTransport {
		return
	}
	ds.markError(context.Background(), sess.device, err)
}

func (ds *DeviceService) markError(ctx context.Context, device *model.Device, err error) {
	now := ds.clock.Now()
	info := model.JSONObject{
		"last_error": err.Error(),
		"error_time": now,
		"kind":       driver.KindOf(err).String(),
	}
	if code, ok := driver.CodeOf(err); ok {
		info["code"] = code
	}
	device.Status = model.DeviceStatusError
	device.ErrorInfo = info
	if updateErr := ds.deviceRepo.UpdateStatus(ctx, device.ID, model.DeviceStatusError, info); updateErr != nil {
		ds.logger.Error("Failed to update device error", zap.Error(updateErr))
	}
	ds.events.Publish(newEvent(model.EventDeviceError, device.ID, model.SeverityError, model.JSONObject{
		"error_message": err.Error(),
		"error_time":    now,
		"kind":          driver.KindOf(err).String(),
	}, now))
}

// Capabilities describes what a connected device can do.
func (ds *DeviceService) Capabilities(ctx context.Context, deviceID string) (*DeviceCapabilities, error) {
	var caps *DeviceCapabilities
	err := ds.WithSession(ctx, deviceID, func(ctx context.Context, sess *Session) error {
		caps = &DeviceCapabilities{
			Info:   sess.drv.Info(),
			Traits: drivers.Traits(sess.drv),
		}
		if sess.printer != nil {
			caps.Constraints = sess.printer.Capabilities()
			caps.IdentifyCustomerAtEnd = sess.printer.Driver().IdentifyCustomerAtEnd()
			caps.Till = sess.printer.TillState()
		}
		if p, ok := sess.drv.(driver.NonFiscalPrintable); ok {
			caps.MaxCharacters = p.MaxCharacters()
		}
		return nil
	})
	return caps, err
}

// Constants returns the tax and payment slots of a fiscal printer.
func (ds *DeviceService) Constants(ctx context.Context, deviceID string) (*DeviceConstants, error) {
	var out *DeviceConstants
	err := ds.WithSession(ctx, deviceID, func(ctx context.Context, sess *Session) error {
		p, err := sess.Fiscal()
		if err != nil {
			return err
		}
		taxes, err := p.TaxConstants(ctx)
		if err != nil {
			return err
		}
		payments, err := p.PaymentConstants(ctx)
		if err != nil {
			return err
		}
		serial, err := p.Serial(ctx)
		if err != nil {
			return err
		}
		out = &DeviceConstants{Serial: serial, Taxes: taxes, Payments: payments}
		return nil
	})
	return out, err
}

// Counters returns the sequence counters of a fiscal printer.
func (ds *DeviceService) Counters(ctx context.Context, deviceID string) (driver.Counters, error) {
	var counters driver.Counters
	err := ds.WithSession(ctx, deviceID, func(ctx context.Context, sess *Session) error {
		p, err := sess.Fiscal()
		if err != nil {
			return err
		}
		counters, err = p.Counters(ctx)
		return err
	})
	return counters, err
}

// Sintegra returns the last reduction summary of a fiscal printer.
func (ds *DeviceService) Sintegra(ctx context.Context, deviceID string) (*driver.SintegraData, error) {
	var data *driver.SintegraData
	err := ds.WithSession(ctx, deviceID, func(ctx context.Context, sess *Session) error {
		p, err := sess.Fiscal()
		if err != nil {
			return err
		}
		data, err = p.Sintegra(ctx)
		return err
	})
	return data, err
}

// GetDeviceHealth reports the session and journal state of a device.
func (ds *DeviceService) GetDeviceHealth(ctx context.Context, deviceID string) (*DeviceHealth, error) {
	device, err := ds.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	health := &DeviceHealth{
		DeviceID:  deviceID,
		Status:    string(device.Status),
		LastCheck: device.LastPing,
	}
	if sess, ok := ds.sessions.Load(deviceID); ok {
		health.Connected = true
		health.Uptime = ds.clock.Since(sess.connectedAt).Round(time.Second).String()
		if sess.transport != nil {
			stats := sess.transport.Stats()
			health.Transport = &stats
		}
	}
	since := ds.clock.Now().Add(-24 * time.Hour)
	if summary, err := ds.journal.Summary(ctx, device.ID, since); err == nil {
		health.Journal = summary
	} else {
		ds.logger.Warn("Failed to summarize journal", zap.String("device_id", deviceID), zap.Error(err))
	}
	return health, nil
}

// MonitorHealth pings every session each interval until ctx is done. Busy
// sessions are skipped.
func (ds *DeviceService) MonitorHealth(ctx context.Context) error {
	interval := ds.config.Device.HealthInterval
	if interval <= 0 {
		return nil
	}
	ticker := ds.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			ds.sessions.Range(func(_ string, sess *Session) bool {
				ds.ping(ctx, sess)
				return true
			})
		}
	}
}

func (ds *DeviceService) ping(ctx context.Context, sess *Session) {
	if !sess.mu.TryLock() {
		return
	}
	defer sess.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	switch {
	case sess.printer != nil:
		_, err = sess.printer.HasOpenCoupon(pingCtx)
	case sess.transport != nil && !sess.transport.IsOpen():
		err = driver.ErrNotConnected
	}
	if err != nil {
		sess.logger.Warn("Device ping failed", zap.Error(err))
		if sess.device.Status != model.DeviceStatusError {
			ds.markError(ctx, sess.device, err)
		}
		return
	}

	if sess.device.Status == model.DeviceStatusError {
		sess.device.Status = model.DeviceStatusOnline
		sess.device.ErrorInfo = nil
		if err := ds.deviceRepo.UpdateStatus(ctx, sess.device.ID, model.DeviceStatusOnline, nil); err != nil {
			ds.logger.Warn("Failed to restore device status", zap.Error(err))
		}
		ds.events.Publish(newEvent(model.EventStatusChange, sess.device.ID, model.SeverityInfo, model.JSONObject{
			"old_status": string(model.DeviceStatusError),
			"new_status": string(model.DeviceStatusOnline),
		}, ds.clock.Now()))
	}
	now := ds.clock.Now()
	sess.device.LastPing = &now
	if err := ds.deviceRepo.UpdateLastPing(ctx, sess.device.ID, now); err != nil {
		ds.logger.Warn("Failed to update last ping", zap.Error(err))
	}
}

// SerialPorts lists the serial ports of the host.
func (ds *DeviceService) SerialPorts() ([]protocol.SerialPortInfo, error) {
	return protocol.ListSerialPorts()
}

// validateRegisterRequest validates device registration request
func (ds *DeviceService) validateRegisterRequest(req *RegisterDeviceRequest) error {
	var missing []string
	if req.DeviceID == "" {
		missing = append(missing, "device_id")
	}
	if req.Brand == "" {
		missing = append(missing, "brand")
	}
	if req.Model == "" {
		missing = append(missing, "model")
	}
	if req.ConnectionType == "" {
		missing = append(missing, "connection_type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}
	if !ds.driverRegistry.IsSupported(req.Brand, req.Model) {
		return fmt.Errorf("%w: no driver for %s/%s", ErrValidation, req.Brand, req.Model)
	}
	switch req.ConnectionType {
	case model.ConnectionTypeVirtual:
		if req.Brand != model.BrandVirtual {
			return fmt.Errorf("%w: only virtual printers use the virtual connection", ErrValidation)
		}
	case model.ConnectionTypeSerial, model.ConnectionTypeUSB, model.ConnectionTypeTCP:
		if err := protocol.ValidateConfig(req.ConnectionType, req.ConnectionConfig); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	default:
		return fmt.Errorf("%w: unknown connection type %q", ErrValidation, req.ConnectionType)
	}
	return nil
}

func toStrings(traits []model.Capability) []string {
	out := make([]string, len(traits))
	for i, t := range traits {
		out[i] = string(t)
	}
	return out
}

// Data Transfer Objects

// RegisterDeviceRequest represents device registration request
type RegisterDeviceRequest struct {
	DeviceID         string                 `json:"device_id" binding:"required"`
	Brand            model.DeviceBrand      `json:"brand" binding:"required"`
	Model            string                 `json:"model" binding:"required"`
	SerialNumber     *string                `json:"serial_number,omitempty"`
	ConnectionType   model.ConnectionType   `json:"connection_type" binding:"required"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	Location         *string                `json:"location,omitempty"`
}

// DeviceFilter represents device listing filters
type DeviceFilter struct {
	Brand          *model.DeviceBrand    `json:"brand,omitempty"`
	Status         *model.DeviceStatus   `json:"status,omitempty"`
	ConnectionType *model.ConnectionType `json:"connection_type,omitempty"`
	Search         *string               `json:"search,omitempty"`
	Page           int                   `json:"page"`
	PerPage        int                   `json:"per_page"`
	SortBy         string                `json:"sort_by"`
	SortOrder      string                `json:"sort_order"`
}

// toRepoFilter converts to repository filter
func (df *DeviceFilter) toRepoFilter() *repository.DeviceFilter {
	return &repository.DeviceFilter{
		Brand:          df.Brand,
		Status:         df.Status,
		ConnectionType: df.ConnectionType,
		SearchTerm:     df.Search,
		Page:           df.Page,
		PerPage:        df.PerPage,
		SortBy:         df.SortBy,
		SortOrder:      df.SortOrder,
	}
}

// PaginationResult represents pagination information
type PaginationResult struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// DeviceCapabilities is the answer of the capabilities endpoint.
type DeviceCapabilities struct {
	Info                  driver.Info         `json:"info"`
	Traits                []model.Capability  `json:"traits"`
	Constraints           driver.Capabilities `json:"constraints,omitempty"`
	IdentifyCustomerAtEnd bool                `json:"identify_customer_at_end"`
	MaxCharacters         int                 `json:"max_characters,omitempty"`
	Till                  fiscal.TillState    `json:"till,omitempty"`
}

// DeviceConstants lists the device slots a client needs to build coupons.
type DeviceConstants struct {
	Serial   string                   `json:"serial"`
	Taxes    []driver.TaxConstant     `json:"taxes"`
	Payments []driver.PaymentConstant `json:"payments"`
}

// DeviceHealth represents device health information
type DeviceHealth struct {
	DeviceID  string                     `json:"device_id"`
	Status    string                     `json:"status"`
	Connected bool                       `json:"connected"`
	LastCheck *time.Time                 `json:"last_check,omitempty"`
	Uptime    string                     `json:"uptime,omitempty"`
	Transport *protocol.ProtocolStats    `json:"transport,omitempty"`
	Journal   *repository.JournalSummary `json:"journal,omitempty"`
}
