// internal/handler/print_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// PrintHandler exposes the non fiscal printing of a device.
type PrintHandler struct {
	printService *service.PrintService
	logger       *utils.ServiceLogger
}

// NewPrintHandler creates a new print handler
func NewPrintHandler(printService *service.PrintService, logger *zap.Logger) *PrintHandler {
	return &PrintHandler{
		printService: printService,
		logger:       utils.NewServiceLogger(logger, "print-handler"),
	}
}

// RegisterRoutes registers print routes
func (h *PrintHandler) RegisterRoutes(router *gin.RouterGroup) {
	printing := router.Group("/devices/:id/print")
	{
		printing.POST("/lines", h.PrintLines)
		printing.POST("/barcode", h.PrintBarcode)
		printing.POST("/qrcode", h.PrintQRCode)
		printing.POST("/cut", h.CutPaper)
		printing.POST("/drawer", h.OpenDrawer)
		printing.GET("/drawer", h.DrawerStatus)
	}
}

func (h *PrintHandler) respond(c *gin.Context, message string, res *service.PrintResult, err error) {
	if err != nil {
		h.logger.Warn(message+" failed", zap.String("device_id", c.Param("id")), zap.Error(err))
		respondError(c, message+" failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, message, res)
}

// PrintLines prints styled text
// @Summary Print text lines
// @Tags Print
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body service.PrintLinesRequest true "Lines"
// @Success 200 {object} utils.APIResponse{data=service.PrintResult}
// @Failure 501 {object} utils.APIResponse "Not a non fiscal printer"
// @Router /devices/{id}/print/lines [post]
func (h *PrintHandler) PrintLines(c *gin.Context) {
	var req service.PrintLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.printService.PrintLines(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, "Lines printed", res, err)
}

// PrintBarcode prints a barcode
// @Summary Print barcode
// @Tags Print
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body CodeRequest true "Barcode"
// @Success 200 {object} utils.APIResponse{data=service.PrintResult}
// @Router /devices/{id}/print/barcode [post]
func (h *PrintHandler) PrintBarcode(c *gin.Context) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.printService.PrintBarcode(c.Request.Context(), c.Param("id"), req.Code)
	h.respond(c, "Barcode printed", res, err)
}

// PrintQRCode prints a QR code
// @Summary Print QR code
// @Description With raster set and a graphics capable printer the code is rendered as a bitmap.
// @Tags Print
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body CodeRequest true "QR code"
// @Success 200 {object} utils.APIResponse{data=service.PrintResult}
// @Router /devices/{id}/print/qrcode [post]
func (h *PrintHandler) PrintQRCode(c *gin.Context) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.printService.PrintQRCode(c.Request.Context(), c.Param("id"), req.Code, req.Raster)
	h.respond(c, "QR code printed", res, err)
}

// CutPaper cuts the paper
// @Summary Cut paper
// @Tags Print
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.PrintResult}
// @Router /devices/{id}/print/cut [post]
func (h *PrintHandler) CutPaper(c *gin.Context) {
	res, err := h.printService.CutPaper(c.Request.Context(), c.Param("id"))
	h.respond(c, "Paper cut", res, err)
}

// OpenDrawer kicks the cash drawer
// @Summary Open cash drawer
// @Tags Print
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.PrintResult}
// @Router /devices/{id}/print/drawer [post]
func (h *PrintHandler) OpenDrawer(c *gin.Context) {
	res, err := h.printService.OpenDrawer(c.Request.Context(), c.Param("id"))
	h.respond(c, "Drawer opened", res, err)
}

// DrawerStatus reports whether the drawer is open
// @Summary Cash drawer status
// @Tags Print
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=object{open=bool}}
// @Router /devices/{id}/print/drawer [get]
func (h *PrintHandler) DrawerStatus(c *gin.Context) {
	open, err := h.printService.DrawerStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to read drawer status", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Drawer status", gin.H{"open": open})
}

// CodeRequest is a barcode or QR code payload.
type CodeRequest struct {
	Code   string `json:"code" binding:"required"`
	Raster bool   `json:"raster"`
}
