// internal/handler/coupon_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecf-service/internal/service"
	"ecf-service/internal/utils"
	"ecf-service/pkg/driver"
)

// CouponHandler exposes the fiscal coupon of a device.
type CouponHandler struct {
	couponService *service.CouponService
	logger        *utils.ServiceLogger
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(couponService *service.CouponService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
		logger:        utils.NewServiceLogger(logger, "coupon-handler"),
	}
}

// RegisterRoutes registers coupon routes
func (h *CouponHandler) RegisterRoutes(router *gin.RouterGroup) {
	coupon := router.Group("/devices/:id/coupon")
	{
		coupon.GET("", h.Status)
		coupon.POST("/open", h.Open)
		coupon.POST("/customer", h.IdentifyCustomer)
		coupon.POST("/items", h.AddItem)
		coupon.POST("/items/:item/cancel", h.CancelItem)
		coupon.POST("/totalize", h.Totalize)
		coupon.POST("/payments", h.AddPayment)
		coupon.POST("/close", h.Close)
		coupon.POST("/cancel", h.Cancel)
		coupon.POST("/cancel-last", h.CancelLast)
	}
}

// respond writes a coupon call result. Device refusals and ordering errors
// are logged at warn level; they are expected during normal use.
func (h *CouponHandler) respond(c *gin.Context, status int, message string, res *service.CouponResult, err error) {
	if err != nil {
		h.logger.Warn(message+" failed",
			zap.String("device_id", c.Param("id")),
			zap.String("kind", driver.KindOf(err).String()),
			zap.Error(err),
		)
		respondError(c, message+" failed", err)
		return
	}
	utils.SuccessResponse(c, status, message, res)
}

// Status returns the coupon as tracked by the service and the device flags
// @Summary Coupon status
// @Tags Coupon
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.CouponStatus}
// @Router /devices/{id}/coupon [get]
func (h *CouponHandler) Status(c *gin.Context) {
	status, err := h.couponService.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to read coupon status", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Coupon status", status)
}

// Open opens a fiscal coupon
// @Summary Open coupon
// @Tags Coupon
// @Produce json
// @Param id path string true "Device ID"
// @Success 201 {object} utils.APIResponse{data=service.CouponResult}
// @Failure 409 {object} utils.APIResponse "Coupon already open"
// @Router /devices/{id}/coupon/open [post]
func (h *CouponHandler) Open(c *gin.Context) {
	res, err := h.couponService.Open(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusCreated, "Coupon opened", res, err)
}

// IdentifyCustomer prints the buyer identification
// @Summary Identify customer
// @Tags Coupon
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body driver.Customer true "Customer"
// @Success 200 {object} utils.APIResponse{data=service.CouponResult}
// @Router /devices/{id}/coupon/customer [post]
func (h *CouponHandler) IdentifyCustomer(c *gin.Context) {
	var customer driver.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.couponService.IdentifyCustomer(c.Request.Context(), c.Param("id"), customer)
	h.respond(c, http.StatusOK, "Customer identified", res, err)
}

// AddItem sells an item
// @Summary Add item
// @Description Sell an item. When tax_code is empty the logical tax type is resolved to the device code.
// @Tags Coupon
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body service.AddItemRequest true "Item"
// @Success 201 {object} utils.APIResponse{data=service.CouponResult}
// @Failure 400 {object} utils.APIResponse "Value out of range"
// @Failure 409 {object} utils.APIResponse "Coupon not open or already totalized"
// @Router /devices/{id}/coupon/items [post]
func (h *CouponHandler) AddItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.couponService.AddItem(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, http.StatusCreated, "Item added", res, err)
}

// CancelItem cancels a sold item
// @Summary Cancel item
// @Tags Coupon
// @Produce json
// @Param id path string true "Device ID"
// @Param item path int true "Item ID"
// @Success 200 {object} utils.APIResponse{data=service.CouponResult}
// @Router /devices/{id}/coupon/items/{item}/cancel [post]
func (h *CouponHandler) CancelItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("item"))
	if err != nil || itemID <= 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid item ID", err)
		return
	}
	res, err := h.couponService.CancelItem(c.Request.Context(), c.Param("id"), itemID)
	h.respond(c, http.StatusOK, "Item cancelled", res, err)
}

// Totalize closes the item phase
// @Summary Totalize coupon
// @Tags Coupon
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body service.TotalizeRequest false "Discount and surcharge"
// @Success 200 {object} utils.APIResponse{data=service.CouponResult}
// @Router /devices/{id}/coupon/totalize [post]
func (h *CouponHandler) Totalize(c *gin.Context) {
	var req service.TotalizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	res, err := h.couponService.Totalize(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, http.StatusOK, "Coupon totalized", res, err)
}

// AddPayment registers a payment
// @Summary Add payment
// @Tags Coupon
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body service.PaymentRequest true "Payment"
// @Success 201 {object} utils.APIResponse{data=service.CouponResult} "value holds the remaining amount"
// @Router /devices/{id}/coupon/payments [post]
func (h *CouponHandler) AddPayment(c *gin.Context) {
	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.couponService.AddPayment(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, http.StatusCreated, "Payment added", res, err)
}

// Close closes the coupon
// @Summary Close coupon
// @Tags Coupon
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body CloseCouponRequest false "Promotional message"
// @Success 200 {object} utils.APIResponse{data=service.CouponResult}
// @Router /devices/{id}/coupon/close [post]
func (h *CouponHandler) Close(c *gin.Context) {
	var req CloseCouponRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	res, err := h.couponService.Close(c.Request.Context(), c.Param("id"), req.Message)
	h.respond(c, http.StatusOK, "Coupon closed", res, err)
}

// Cancel cancels the open coupon
// @Summary Cancel coupon
// @Tags Coupon
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.CouponResult}
// @Router /devices/{id}/coupon/cancel [post]
func (h *CouponHandler) Cancel(c *gin.Context) {
	res, err := h.couponService.Cancel(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, "Coupon cancelled", res, err)
}

// CancelLast cancels the last closed coupon
// @Summary Cancel last coupon
// @Tags Coupon
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.CouponResult}
// @Router /devices/{id}/coupon/cancel-last [post]
func (h *CouponHandler) CancelLast(c *gin.Context) {
	res, err := h.couponService.CancelLast(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, "Last coupon cancelled", res, err)
}

// CloseCouponRequest carries the optional message printed at the bottom
// of the coupon.
type CloseCouponRequest struct {
	Message string `json:"message"`
}
