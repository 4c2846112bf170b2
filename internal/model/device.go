// internal/model/device.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeviceType represents the type of device
type DeviceType string

const (
	DeviceTypeFiscalPrinter DeviceType = "FISCAL_PRINTER"
	DeviceTypePrinter       DeviceType = "PRINTER"
)

// DeviceStatus represents the current status of a device
type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "ONLINE"
	DeviceStatusOffline     DeviceStatus = "OFFLINE"
	DeviceStatusError       DeviceStatus = "ERROR"
	DeviceStatusMaintenance DeviceStatus = "MAINTENANCE"
	DeviceStatusConnecting  DeviceStatus = "CONNECTING"
)

// ConnectionType represents how the device is connected
type ConnectionType string

const (
	ConnectionTypeSerial  ConnectionType = "SERIAL"
	ConnectionTypeUSB     ConnectionType = "USB"
	ConnectionTypeTCP     ConnectionType = "TCP"
	ConnectionTypeVirtual ConnectionType = "VIRTUAL"
)

// DeviceBrand represents supported device brands
type DeviceBrand string

const (
	BrandBematech DeviceBrand = "bematech"
	BrandDaruma   DeviceBrand = "daruma"
	BrandElgin    DeviceBrand = "elgin"
	BrandEpson    DeviceBrand = "epson"
	BrandFiscNet  DeviceBrand = "fiscnet"
	BrandSNBC     DeviceBrand = "snbc"
	BrandSweda    DeviceBrand = "sweda"
	BrandTanca    DeviceBrand = "tanca"
	BrandVirtual  DeviceBrand = "virtual"
)

// Capability represents what a device can do
type Capability string

const (
	CapabilityCoupon   Capability = "COUPON"
	CapabilityReports  Capability = "REPORTS"
	CapabilitySintegra Capability = "SINTEGRA"
	CapabilityPrint    Capability = "PRINT"
	CapabilityCut      Capability = "CUT"
	CapabilityDrawer   Capability = "DRAWER"
	CapabilityBarcode  Capability = "BARCODE"
	CapabilityQR       Capability = "QR"
	CapabilityGraphics Capability = "GRAPHICS"
)

// JSONArray type for PostgreSQL JSONB arrays
type JSONArray []interface{}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Device represents a physical device in the system
type Device struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	DeviceID         string         `json:"device_id" db:"device_id"`
	DeviceType       DeviceType     `json:"device_type" db:"device_type"`
	Brand            DeviceBrand    `json:"brand" db:"brand"`
	Model            string         `json:"model" db:"model"`
	SerialNumber     *string        `json:"serial_number" db:"serial_number"`
	ConnectionType   ConnectionType `json:"connection_type" db:"connection_type"`
	ConnectionConfig JSONObject     `json:"connection_config" db:"connection_config"`
	Capabilities     JSONArray      `json:"capabilities" db:"capabilities"`
	Location         *string        `json:"location" db:"location"`
	Status           DeviceStatus   `json:"status" db:"status"`
	LastPing         *time.Time     `json:"last_ping" db:"last_ping"`
	ErrorInfo        JSONObject     `json:"error_info" db:"error_info"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// HasCapability checks if device has a specific capability
func (d *Device) HasCapability(capability Capability) bool {
	for _, cap := range d.Capabilities {
		if cap == string(capability) {
			return true
		}
	}
	return false
}

// IsOnline checks if device is currently online
func (d *Device) IsOnline() bool {
	return d.Status == DeviceStatusOnline
}
