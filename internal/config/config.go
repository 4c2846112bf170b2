// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ECF_SERVICE_DATABASE_HOST.
const EnvPrefix = "ECF_SERVICE"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Offline  OfflineConfig  `mapstructure:"offline"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Device   DeviceConfig   `mapstructure:"device"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required,numeric"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `mapstructure:"key_file" validate:"required_if=Enabled true"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	User           string        `mapstructure:"user" validate:"required"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname" validate:"required"`
	SSLMode        string        `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns" validate:"min=0"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// OfflineConfig controls the local journal spool used while the database
// is unreachable.
type OfflineConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	LocalDBPath   string        `mapstructure:"local_db_path" validate:"required_if=Enabled true"`
	SyncInterval  time.Duration `mapstructure:"sync_interval" validate:"required_if=Enabled true"`
	MaxQueueSize  int           `mapstructure:"max_queue_size" validate:"min=0"`
	RetryAttempts int           `mapstructure:"retry_attempts" validate:"min=0"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests" validate:"required_if=RateLimitEnabled true,min=0"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window" validate:"required_if=RateLimitEnabled true"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error fatal"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DeviceConfig represents printer communication settings
type DeviceConfig struct {
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"required"`
	HealthInterval   time.Duration `mapstructure:"health_interval"`
	// ReadTimeout is the per read timeout of every transport.
	ReadTimeout   time.Duration `mapstructure:"read_timeout" validate:"required"`
	MaxEmptyReads int           `mapstructure:"max_empty_reads" validate:"min=1"`
	BusyRetries   int           `mapstructure:"busy_retries" validate:"min=0"`
	BusyDelay     time.Duration `mapstructure:"busy_delay"`
	// VirtualStateDir holds one till state file per virtual printer.
	VirtualStateDir string `mapstructure:"virtual_state_dir"`
	// LegacyConfig is an optional ini file carried over from older driver
	// installs.
	LegacyConfig string           `mapstructure:"legacy_config"`
	Serial       SerialPortConfig `mapstructure:"serial"`
}

// SerialPortConfig holds the serial line defaults applied to devices that
// leave them out of their connection config.
type SerialPortConfig struct {
	BaudRate int    `mapstructure:"baud_rate" validate:"oneof=1200 2400 4800 9600 19200 38400 57600 115200"`
	DataBits int    `mapstructure:"data_bits" validate:"oneof=7 8"`
	StopBits int    `mapstructure:"stop_bits" validate:"oneof=1 2"`
	Parity   string `mapstructure:"parity" validate:"oneof=none odd even mark space"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,oneof=development staging production test"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from config.yaml in the usual search paths and
// the environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads the given file, or searches for config.yaml when path is
// empty. A missing file is not an error; defaults and environment apply.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/ecf-service")
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "ecf_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "file://migrations")

	// Offline defaults
	v.SetDefault("offline.enabled", true)
	v.SetDefault("offline.local_db_path", "./data/journal-spool.db")
	v.SetDefault("offline.sync_interval", "30s")
	v.SetDefault("offline.max_queue_size", 10000)
	v.SetDefault("offline.retry_attempts", 5)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_window", "1m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Device defaults
	v.SetDefault("device.operation_timeout", "60s")
	v.SetDefault("device.health_interval", "30s")
	v.SetDefault("device.read_timeout", "3s")
	v.SetDefault("device.max_empty_reads", 5)
	v.SetDefault("device.busy_retries", 5)
	v.SetDefault("device.busy_delay", "1s")
	v.SetDefault("device.virtual_state_dir", "./data/virtual")
	v.SetDefault("device.legacy_config", "")
	v.SetDefault("device.serial.baud_rate", 9600)
	v.SetDefault("device.serial.data_bits", 8)
	v.SetDefault("device.serial.stop_bits", 1)
	v.SetDefault("device.serial.parity", "none")

	// App defaults
	v.SetDefault("app.name", "ecf-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate checks the struct tags and reports every failing field.
func validate(config *Config) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(config)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// SerialDefaults returns the connection map entries merged under every
// serial device's own config.
func (c *Config) SerialDefaults() map[string]interface{} {
	return map[string]interface{}{
		"baud_rate": c.Device.Serial.BaudRate,
		"data_bits": c.Device.Serial.DataBits,
		"stop_bits": c.Device.Serial.StopBits,
		"parity":    c.Device.Serial.Parity,
		"timeout":   c.Device.ReadTimeout,
	}
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
