// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port" mapstructure:"port"`
	BaudRate int           `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits int           `json:"data_bits" mapstructure:"data_bits"`
	StopBits int           `json:"stop_bits" mapstructure:"stop_bits"`
	Parity   string        `json:"parity" mapstructure:"parity"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	// DTR is raised on open; most fiscal printers refuse to talk otherwise.
	DTR bool `json:"dtr" mapstructure:"dtr"`
}

// USBConfig represents USB connection configuration
type USBConfig struct {
	VendorID     string        `json:"vendor_id" mapstructure:"vendor_id"`
	ProductID    string        `json:"product_id" mapstructure:"product_id"`
	Interface    int           `json:"interface" mapstructure:"interface"`
	OutEndpoint  int           `json:"out_endpoint" mapstructure:"out_endpoint"`
	InEndpoint   int           `json:"in_endpoint" mapstructure:"in_endpoint"`
	SerialNumber string        `json:"serial_number" mapstructure:"serial_number"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
}

// TCPConfig represents TCP connection configuration
type TCPConfig struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	SSL          bool          `json:"ssl" mapstructure:"ssl"`
	KeepAlive    bool          `json:"keep_alive" mapstructure:"keep_alive"`
	BufferSize   int           `json:"buffer_size" mapstructure:"buffer_size"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// DefaultSerialConfig matches the line settings most ECFs ship with.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  3 * time.Second,
		DTR:      true,
	}
}

// DefaultUSBConfig matches the common ESC/POS bulk endpoints.
func DefaultUSBConfig() USBConfig {
	return USBConfig{
		Interface:   0,
		OutEndpoint: 0x01,
		InEndpoint:  0x82,
		Timeout:     5 * time.Second,
	}
}

// DefaultTCPConfig targets a raw printer port.
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		Port:         9100,
		KeepAlive:    true,
		BufferSize:   4096,
		Timeout:      10 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
