// internal/handler/till_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// TillHandler exposes the till and the non fiscal reports of a device.
type TillHandler struct {
	tillService *service.TillService
	logger      *utils.ServiceLogger
}

// NewTillHandler creates a new till handler
func NewTillHandler(tillService *service.TillService, logger *zap.Logger) *TillHandler {
	return &TillHandler{
		tillService: tillService,
		logger:      utils.NewServiceLogger(logger, "till-handler"),
	}
}

// RegisterRoutes registers till and report routes
func (h *TillHandler) RegisterRoutes(router *gin.RouterGroup) {
	till := router.Group("/devices/:id/till")
	{
		till.GET("/pending-reduce", h.PendingReduce)
		till.POST("/summarize", h.Summarize)
		till.POST("/open", h.Open)
		till.POST("/close", h.Close)
		till.POST("/cash-in", h.AddCash)
		till.POST("/cash-out", h.RemoveCash)
		till.POST("/memory", h.ReadMemory)
		till.POST("/memory-to-serial", h.ReadMemoryToSerial)
		till.POST("/memory-by-reductions", h.ReadMemoryByReductions)
	}

	reports := router.Group("/devices/:id/reports")
	{
		reports.POST("/gerencial", h.GerencialReport)
		reports.POST("/payment-receipt", h.PaymentReceipt)
	}
}

func (h *TillHandler) respond(c *gin.Context, message string, res *service.TillResult, err error) {
	if err != nil {
		h.logger.Warn(message+" failed", zap.String("device_id", c.Param("id")), zap.Error(err))
		respondError(c, message+" failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, message, res)
}

// Summarize prints the X reading
// @Summary Print X reading
// @Tags Till
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Router /devices/{id}/till/summarize [post]
func (h *TillHandler) Summarize(c *gin.Context) {
	res, err := h.tillService.Summarize(c.Request.Context(), c.Param("id"))
	h.respond(c, "Till summarized", res, err)
}

// Open opens the fiscal day
// @Summary Open till
// @Tags Till
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Router /devices/{id}/till/open [post]
func (h *TillHandler) Open(c *gin.Context) {
	res, err := h.tillService.Open(c.Request.Context(), c.Param("id"))
	h.respond(c, "Till opened", res, err)
}

// Close runs the Z reduction
// @Summary Close till
// @Tags Till
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body CloseTillRequest false "Close the previous day"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Router /devices/{id}/till/close [post]
func (h *TillHandler) Close(c *gin.Context) {
	var req CloseTillRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	res, err := h.tillService.Close(c.Request.Context(), c.Param("id"), req.PreviousDay)
	h.respond(c, "Till closed", res, err)
}

// AddCash registers a cash supply
// @Summary Cash in
// @Tags Till
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body CashRequest true "Value"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Failure 400 {object} utils.APIResponse "Value must be positive"
// @Router /devices/{id}/till/cash-in [post]
func (h *TillHandler) AddCash(c *gin.Context) {
	var req CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.tillService.AddCash(c.Request.Context(), c.Param("id"), req.Value)
	h.respond(c, "Cash added", res, err)
}

// RemoveCash registers a cash withdrawal
// @Summary Cash out
// @Tags Till
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body CashRequest true "Value"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Router /devices/{id}/till/cash-out [post]
func (h *TillHandler) RemoveCash(c *gin.Context) {
	var req CashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.tillService.RemoveCash(c.Request.Context(), c.Param("id"), req.Value)
	h.respond(c, "Cash removed", res, err)
}

// ReadMemory prints the fiscal memory for a date range
// @Summary Read fiscal memory by date
// @Tags Till
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body MemoryByDateRequest true "Date range"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Router /devices/{id}/till/memory [post]
func (h *TillHandler) ReadMemory(c *gin.Context) {
	var req MemoryByDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.tillService.ReadMemory(c.Request.Context(), c.Param("id"), req.Start, req.End)
	h.respond(c, "Fiscal memory printed", res, err)
}

// ReadMemoryToSerial returns the fiscal memory for a date range as text
// @Summary Dump fiscal memory by date
// @Description The device sends the fiscal memory over the connection instead of printing it.
// @Tags Till
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body MemoryByDateRequest true "Date range"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Failure 501 {object} utils.APIResponse "Driver has no memory dump"
// @Router /devices/{id}/till/memory-to-serial [post]
func (h *TillHandler) ReadMemoryToSerial(c *gin.Context) {
	var req MemoryByDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.tillService.ReadMemoryToSerial(c.Request.Context(), c.Param("id"), req.Start, req.End)
	h.respond(c, "Fiscal memory read", res, err)
}

// ReadMemoryByReductions prints the fiscal memory for a CRZ range
// @Summary Read fiscal memory by reductions
// @Tags Till
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body MemoryByReductionsRequest true "Reduction range"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Router /devices/{id}/till/memory-by-reductions [post]
func (h *TillHandler) ReadMemoryByReductions(c *gin.Context) {
	var req MemoryByReductionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.tillService.ReadMemoryByReductions(c.Request.Context(), c.Param("id"), req.Start, req.End)
	h.respond(c, "Fiscal memory printed", res, err)
}

// PendingReduce reports whether a Z reduction is pending
// @Summary Pending Z reduction
// @Tags Till
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=object{pending=bool}}
// @Router /devices/{id}/till/pending-reduce [get]
func (h *TillHandler) PendingReduce(c *gin.Context) {
	pending, err := h.tillService.PendingReduce(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to read reduction status", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Reduction status", gin.H{"pending": pending})
}

// GerencialReport prints a management report
// @Summary Print gerencial report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body GerencialReportRequest true "Report lines"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Router /devices/{id}/reports/gerencial [post]
func (h *TillHandler) GerencialReport(c *gin.Context) {
	var req GerencialReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.tillService.GerencialReport(c.Request.Context(), c.Param("id"), req.Lines)
	h.respond(c, "Gerencial report printed", res, err)
}

// PaymentReceipt prints a credit or debit receipt bound to a coupon
// @Summary Print payment receipt
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body service.PaymentReceiptRequest true "Receipt"
// @Success 200 {object} utils.APIResponse{data=service.TillResult}
// @Failure 501 {object} utils.APIResponse "Duplicate not supported"
// @Router /devices/{id}/reports/payment-receipt [post]
func (h *TillHandler) PaymentReceipt(c *gin.Context) {
	var req service.PaymentReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.tillService.PaymentReceipt(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, "Payment receipt printed", res, err)
}

// CloseTillRequest selects the reduction of the previous day.
type CloseTillRequest struct {
	PreviousDay bool `json:"previous_day"`
}

// CashRequest is a till supply or withdrawal.
type CashRequest struct {
	Value decimal.Decimal `json:"value"`
}

// MemoryByDateRequest is an inclusive date range.
type MemoryByDateRequest struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

// MemoryByReductionsRequest is an inclusive CRZ range.
type MemoryByReductionsRequest struct {
	Start int `json:"start" binding:"required,min=1"`
	End   int `json:"end" binding:"required,gtefield=Start"`
}

// GerencialReportRequest holds the report text, one entry per line.
type GerencialReportRequest struct {
	Lines []string `json:"lines" binding:"required,min=1"`
}
