// internal/handler/device_handler.go
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// DeviceHandler handles device-related HTTP requests
type DeviceHandler struct {
	deviceService *service.DeviceService
	logger        *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *service.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		logger:        utils.NewServiceLogger(logger, "device-handler"),
	}
}

// RegisterRoutes registers device-related routes
func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.POST("", h.RegisterDevice)
		devices.GET("", h.ListDevices)

		deviceRoutes := devices.Group("/:id")
		{
			deviceRoutes.GET("", h.GetDevice)
			deviceRoutes.PUT("", h.UpdateDevice)
			deviceRoutes.DELETE("", h.DeleteDevice)
			deviceRoutes.POST("/connect", h.ConnectDevice)
			deviceRoutes.POST("/disconnect", h.DisconnectDevice)
			deviceRoutes.GET("/health", h.GetDeviceHealth)
			deviceRoutes.GET("/capabilities", h.GetCapabilities)
			deviceRoutes.GET("/constants", h.GetConstants)
			deviceRoutes.GET("/counters", h.GetCounters)
			deviceRoutes.GET("/sintegra", h.GetSintegra)
			deviceRoutes.GET("/sintegra.csv", h.ExportSintegra)
		}
	}
}

// RegisterDevice registers a new device
// @Summary Register a new device
// @Description Register a printer. The driver is chosen by brand and model and the device type is derived from it.
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body service.RegisterDeviceRequest true "Device registration request"
// @Success 201 {object} utils.APIResponse{data=model.Device} "Device registered successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Device already exists"
// @Router /devices [post]
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req service.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	device, err := h.deviceService.RegisterDevice(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("Failed to register device", zap.String("device_id", req.DeviceID), zap.Error(err))
		respondError(c, "Failed to register device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Device registered successfully", device)
}

// ListDevices lists devices with filtering and pagination
// @Summary List devices
// @Tags Devices
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param brand query string false "Filter by brand"
// @Param status query string false "Filter by status" Enums(ONLINE, OFFLINE, ERROR, MAINTENANCE, CONNECTING)
// @Param connection_type query string false "Filter by connection type" Enums(SERIAL, USB, TCP, VIRTUAL)
// @Param search query string false "Search device id, model and serial number"
// @Param sort_by query string false "Sort by field" default(created_at)
// @Param sort_order query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} utils.APIResponse{data=object{devices=[]model.Device,pagination=service.PaginationResult}}
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	filter := &service.DeviceFilter{
		Page:      queryInt(c, "page", 1),
		PerPage:   queryInt(c, "per_page", 20),
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	if brand := c.Query("brand"); brand != "" {
		b := model.DeviceBrand(brand)
		filter.Brand = &b
	}
	if status := c.Query("status"); status != "" {
		s := model.DeviceStatus(status)
		filter.Status = &s
	}
	if ct := c.Query("connection_type"); ct != "" {
		t := model.ConnectionType(ct)
		filter.ConnectionType = &t
	}
	if search := c.Query("search"); search != "" {
		filter.Search = &search
	}

	devices, pagination, err := h.deviceService.ListDevices(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list devices", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list devices", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", gin.H{
		"devices":    devices,
		"pagination": pagination,
	})
}

// GetDevice retrieves device by ID
// @Summary Get device details
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=model.Device}
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.deviceService.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device retrieved successfully", device)
}

// UpdateDevice changes the connection config or location of a disconnected device
// @Summary Update device
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body UpdateDeviceRequest true "Fields to change"
// @Success 200 {object} utils.APIResponse{data=model.Device}
// @Failure 400 {object} utils.APIResponse "Invalid connection config"
// @Failure 409 {object} utils.APIResponse "Device is connected"
// @Router /devices/{id} [put]
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var req UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	device, err := h.deviceService.UpdateDeviceConfiguration(c.Request.Context(), c.Param("id"), req.ConnectionConfig, req.Location)
	if err != nil {
		respondError(c, "Failed to update device", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device updated successfully", device)
}

// DeleteDevice handles device deletion
// @Summary Delete device
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 409 {object} utils.APIResponse "Device is connected"
// @Router /devices/{id} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	deviceID := c.Param("id")
	if err := h.deviceService.DeleteDevice(c.Request.Context(), deviceID); err != nil {
		respondError(c, "Failed to delete device", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device deleted successfully", gin.H{"device_id": deviceID})
}

// ConnectDevice connects to a device
// @Summary Connect to device
// @Description Open the transport, create the driver and run the printer setup.
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=model.Device}
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 503 {object} utils.APIResponse "Device unreachable"
// @Router /devices/{id}/connect [post]
func (h *DeviceHandler) ConnectDevice(c *gin.Context) {
	device, err := h.deviceService.ConnectDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to connect device", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device connected successfully", device)
}

// DisconnectDevice disconnects from a device
// @Summary Disconnect from device
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse "Device not connected"
// @Router /devices/{id}/disconnect [post]
func (h *DeviceHandler) DisconnectDevice(c *gin.Context) {
	deviceID := c.Param("id")
	if err := h.deviceService.DisconnectDevice(c.Request.Context(), deviceID); err != nil {
		respondError(c, "Failed to disconnect device", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device disconnected successfully", gin.H{"device_id": deviceID})
}

// GetDeviceHealth retrieves device health metrics
// @Summary Get device health
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.DeviceHealth}
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{id}/health [get]
func (h *DeviceHandler) GetDeviceHealth(c *gin.Context) {
	health, err := h.deviceService.GetDeviceHealth(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get device health", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device health retrieved successfully", health)
}

// GetCapabilities returns the driver info, traits and value constraints
// @Summary Get device capabilities
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.DeviceCapabilities}
// @Failure 409 {object} utils.APIResponse "Device not connected"
// @Router /devices/{id}/capabilities [get]
func (h *DeviceHandler) GetCapabilities(c *gin.Context) {
	caps, err := h.deviceService.Capabilities(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get capabilities", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Capabilities retrieved successfully", caps)
}

// GetConstants returns the serial number and the tax and payment slots
// @Summary Get device constants
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.DeviceConstants}
// @Router /devices/{id}/constants [get]
func (h *DeviceHandler) GetConstants(c *gin.Context) {
	constants, err := h.deviceService.Constants(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to read device constants", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Constants retrieved successfully", constants)
}

// GetCounters returns the COO, CCF, GNF and CRZ counters
// @Summary Get device counters
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=driver.Counters}
// @Router /devices/{id}/counters [get]
func (h *DeviceHandler) GetCounters(c *gin.Context) {
	counters, err := h.deviceService.Counters(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to read counters", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Counters retrieved successfully", counters)
}

// GetSintegra returns the last Z reduction summary
// @Summary Get sintegra data
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=driver.SintegraData}
// @Failure 501 {object} utils.APIResponse "Not supported by the driver"
// @Router /devices/{id}/sintegra [get]
func (h *DeviceHandler) GetSintegra(c *gin.Context) {
	data, err := h.deviceService.Sintegra(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to read sintegra data", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Sintegra data retrieved successfully", data)
}

// sintegraRow is one tax total of a reduction, flattened for CSV.
type sintegraRow struct {
	Serial      string          `csv:"serial"`
	OpeningDate time.Time       `csv:"opening_date"`
	CRZ         int             `csv:"crz"`
	CRO         int             `csv:"cro"`
	COO         int             `csv:"coo"`
	CouponStart int             `csv:"coupon_start"`
	CouponEnd   int             `csv:"coupon_end"`
	PeriodTotal decimal.Decimal `csv:"period_total"`
	Total       decimal.Decimal `csv:"total"`
	TaxCode     string          `csv:"tax_code"`
	TaxType     string          `csv:"tax_type"`
	TaxValue    decimal.Decimal `csv:"tax_value"`
}

// ExportSintegra returns the last Z reduction as CSV, one row per tax total
// @Summary Export sintegra data as CSV
// @Tags Devices
// @Produce text/csv
// @Param id path string true "Device ID"
// @Success 200 {string} string "CSV file"
// @Router /devices/{id}/sintegra.csv [get]
func (h *DeviceHandler) ExportSintegra(c *gin.Context) {
	deviceID := c.Param("id")
	data, err := h.deviceService.Sintegra(c.Request.Context(), deviceID)
	if err != nil {
		respondError(c, "Failed to read sintegra data", err)
		return
	}

	rows := make([]*sintegraRow, 0, len(data.Taxes))
	for _, tax := range data.Taxes {
		rows = append(rows, &sintegraRow{
			Serial:      data.Serial,
			OpeningDate: data.OpeningDate,
			CRZ:         data.CRZ,
			CRO:         data.CRO,
			COO:         data.COO,
			CouponStart: data.CouponStart,
			CouponEnd:   data.CouponEnd,
			PeriodTotal: data.PeriodTotal,
			Total:       data.Total,
			TaxCode:     tax.Code,
			TaxType:     tax.Type,
			TaxValue:    tax.Value,
		})
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		h.logger.Error("Failed to encode sintegra CSV", zap.String("device_id", deviceID), zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to encode sintegra data", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="sintegra-`+deviceID+`-`+strconv.Itoa(data.CRZ)+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}

// queryInt reads a positive integer query parameter.
func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v > 0 {
		return v
	}
	return def
}

// UpdateDeviceRequest represents device update request
type UpdateDeviceRequest struct {
	ConnectionConfig map[string]interface{} `json:"connection_config,omitempty"`
	Location         *string                `json:"location,omitempty"`
}
