// internal/handler/discovery_handler.go
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// DiscoveryHandler handles device discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	deviceService    *service.DeviceService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, deviceService *service.DeviceService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		deviceService:    deviceService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discovery := router.Group("/discovery")
	{
		discovery.GET("/scan", h.ScanDevices)
		discovery.GET("/scanners", h.Scanners)
		discovery.GET("/drivers", h.SupportedDrivers)
		discovery.GET("/serial-ports", h.SerialPorts)
	}
}

// ScanDevices scans for attached printers
// @Summary Scan for printers
// @Description List USB printers and serial ports that could be registered. Devices in use are not opened.
// @Tags Discovery
// @Produce json
// @Param type query string false "Scanner type" Enums(all, usb, serial) default(all)
// @Success 200 {object} utils.APIResponse{data=object{devices_found=int,devices=[]discovery.Candidate}}
// @Failure 400 {object} utils.APIResponse "Unknown scanner type"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanDevices(c *gin.Context) {
	found, err := h.discoveryService.Scan(c.Request.Context(), c.DefaultQuery("type", "all"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to scan devices", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device scan completed", gin.H{
		"devices_found": len(found),
		"devices":       found,
	})
}

// Scanners lists the scanner types available on this host
// @Summary Available scanners
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]string}
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) Scanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Available scanners", h.discoveryService.Scanners())
}

// SupportedDrivers lists the registered printer models
// @Summary Supported printers
// @Tags Discovery
// @Produce json
// @Param trait query string false "Only models with this capability" Enums(COUPON, REPORTS, SINTEGRA, PRINT, GRAPHICS, DRAWER)
// @Param include_virtual query bool false "Include virtual printers"
// @Success 200 {object} utils.APIResponse{data=[]driver.DriverKey}
// @Router /discovery/drivers [get]
func (h *DiscoveryHandler) SupportedDrivers(c *gin.Context) {
	trait := model.Capability(strings.ToUpper(c.Query("trait")))
	includeVirtual := c.Query("include_virtual") == "true"
	utils.SuccessResponse(c, http.StatusOK, "Supported printers", h.discoveryService.SupportedPrinters(trait, includeVirtual))
}

// SerialPorts lists the serial ports of the host
// @Summary Serial ports
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]protocol.SerialPortInfo}
// @Failure 500 {object} utils.APIResponse "Enumeration failed"
// @Router /discovery/serial-ports [get]
func (h *DiscoveryHandler) SerialPorts(c *gin.Context) {
	ports, err := h.deviceService.SerialPorts()
	if err != nil {
		h.logger.Error("Failed to list serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Serial ports", ports)
}
