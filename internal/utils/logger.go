// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"ecf-service/internal/config"
)

const defaultLogFile = "./logs/ecf-service.log"

// LoggerManager manages application logging
type LoggerManager struct {
	logger *zap.Logger
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager := &LoggerManager{
		config: cfg,
	}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	manager.logger = logger
	return logger, nil
}

// createLogger creates the zap logger with proper configuration
func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	encoderConfig := lm.getEncoderConfig()

	var encoder zapcore.Encoder
	switch lm.config.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := zapcore.ParseLevel(lm.config.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core, lm.getLoggerOptions()...), nil
}

// getEncoderConfig returns encoder configuration based on format
func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder
	config.MessageKey = "message"
	config.StacktraceKey = "stacktrace"

	// Console format customizations
	if lm.config.Format == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// getWriteSyncer returns write syncer based on output configuration
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		output := lm.config.Output
		if output == "" {
			output = defaultLogFile
		}

		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   output,
			MaxSize:    lm.config.MaxSize, // MB
			MaxBackups: lm.config.MaxBackups,
			MaxAge:     lm.config.MaxAge, // days
			Compress:   lm.config.Compress,
		}), nil
	}
}

func (lm *LoggerManager) getLoggerOptions() []zap.Option {
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
}

// DeviceLogger wraps zap.Logger with device-specific functionality
type DeviceLogger struct {
	*zap.Logger
	deviceID string
}

// NewDeviceLogger creates a device-specific logger
func NewDeviceLogger(baseLogger *zap.Logger, deviceID, brand, model string) *DeviceLogger {
	return &DeviceLogger{
		Logger: baseLogger.With(
			zap.String("device_id", deviceID),
			zap.String("brand", brand),
			zap.String("model", model),
			zap.String("component", "device"),
		),
		deviceID: deviceID,
	}
}

// LogConnection logs connection events
func (dl *DeviceLogger) LogConnection(action string, err error) {
	if err != nil {
		dl.Error("Device connection event", zap.String("action", action), zap.Bool("success", false), zap.Error(err))
		return
	}
	dl.Info("Device connection event", zap.String("action", action), zap.Bool("success", true))
}

// OperationLogger provides structured logging for one journaled call
type OperationLogger struct {
	logger    *zap.Logger
	startTime time.Time
}

// NewOperationLogger creates an operation-specific logger
func NewOperationLogger(baseLogger *zap.Logger, operationType, operationID string) *OperationLogger {
	return &OperationLogger{
		logger: baseLogger.With(
			zap.String("operation_type", operationType),
			zap.String("operation_id", operationID),
			zap.String("component", "operation"),
		),
		startTime: time.Now(),
	}
}

// Start logs operation start
func (ol *OperationLogger) Start(fields ...zap.Field) {
	ol.logger.Debug("Operation started", fields...)
}

// Success logs successful operation completion
func (ol *OperationLogger) Success(fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Duration("duration", time.Since(ol.startTime)),
		zap.Bool("success", true),
	}, fields...)
	ol.logger.Info("Operation completed", allFields...)
}

// Error logs operation failure. Device refusals are warnings; everything
// else is an error.
func (ol *OperationLogger) Error(err error, expected bool, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Duration("duration", time.Since(ol.startTime)),
		zap.Bool("success", false),
		zap.Error(err),
	}, fields...)
	if expected {
		ol.logger.Warn("Operation refused", allFields...)
		return
	}
	ol.logger.Error("Operation failed", allFields...)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	return &ServiceLogger{
		Logger: baseLogger.With(
			zap.String("service", serviceName),
			zap.String("component", "service"),
		),
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string) {
	sl.Info("Service starting", zap.String("version", version))
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping", zap.String("reason", reason))
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(method, path, clientIP, requestID string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", clientIP),
			zap.String("request_id", requestID),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// AuditLogger writes the fiscal audit trail: every document the printer
// emitted and every till movement.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit-specific logger
func NewAuditLogger(baseLogger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: baseLogger.With(zap.String("component", "audit"))}
}

// LogDeviceRegistration logs device registration events
func (al *AuditLogger) LogDeviceRegistration(deviceID, brand, model string) {
	al.logger.Info("Device registered",
		zap.String("device_id", deviceID),
		zap.String("brand", brand),
		zap.String("model", model),
		zap.String("action", "register_device"),
	)
}

// LogCouponClosed records a fiscal coupon the printer emitted.
func (al *AuditLogger) LogCouponClosed(deviceID string, coo int, total, paid decimal.Decimal) {
	al.logger.Info("Coupon closed",
		zap.String("device_id", deviceID),
		zap.Int("coo", coo),
		zap.String("total", total.StringFixed(2)),
		zap.String("paid", paid.StringFixed(2)),
		zap.String("action", "coupon_close"),
	)
}

// LogCouponCancelled records a cancelled coupon. last is set when the
// previous, already closed coupon was cancelled.
func (al *AuditLogger) LogCouponCancelled(deviceID string, last bool) {
	al.logger.Info("Coupon cancelled",
		zap.String("device_id", deviceID),
		zap.Bool("last_coupon", last),
		zap.String("action", "coupon_cancel"),
	)
}

// LogTillEvent records a reading, a reduction or a cash movement.
func (al *AuditLogger) LogTillEvent(deviceID, action string, value *decimal.Decimal) {
	fields := []zap.Field{
		zap.String("device_id", deviceID),
		zap.String("action", action),
	}
	if value != nil {
		fields = append(fields, zap.String("value", value.StringFixed(2)))
	}
	al.logger.Info("Till event", fields...)
}

// LogRateLimitViolation logs rate limit violations
func LogRateLimitViolation(logger *zap.Logger, clientIP, endpoint string) {
	logger.Warn("Rate limit violation",
		zap.String("component", "security"),
		zap.String("client_ip", clientIP),
		zap.String("endpoint", endpoint),
		zap.String("action", "rate_limit_violation"),
	)
}
