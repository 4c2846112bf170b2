// internal/handler/operation_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// OperationHandler serves the fiscal journal.
type OperationHandler struct {
	operationService *service.OperationService
	logger           *utils.ServiceLogger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(operationService *service.OperationService, logger *zap.Logger) *OperationHandler {
	return &OperationHandler{
		operationService: operationService,
		logger:           utils.NewServiceLogger(logger, "operation-handler"),
	}
}

// RegisterRoutes registers operation-related routes
func (h *OperationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/operations/:operation_id", h.GetOperation)
	router.GET("/devices/:id/operations", h.ListDeviceOperations)
}

// GetOperation returns one journal entry
// @Summary Get operation
// @Tags Journal
// @Produce json
// @Param operation_id path string true "Operation ID"
// @Success 200 {object} utils.APIResponse{data=model.FiscalOperation}
// @Failure 400 {object} utils.APIResponse "Invalid operation ID"
// @Failure 404 {object} utils.APIResponse "Operation not found"
// @Router /operations/{operation_id} [get]
func (h *OperationHandler) GetOperation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("operation_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid operation ID", err)
		return
	}

	op, err := h.operationService.GetOperation(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Operation not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Operation retrieved successfully", op)
}

// ListDeviceOperations lists the journal of a device, newest first
// @Summary List device operations
// @Tags Journal
// @Produce json
// @Param id path string true "Device ID"
// @Param operation_type query string false "Filter by operation type"
// @Param status query string false "Filter by status" Enums(SUCCESS, FAILED, TIMEOUT, PROCESSING)
// @Param from query string false "Started at or after (RFC3339)"
// @Param to query string false "Started before (RFC3339)"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(50)
// @Success 200 {object} utils.APIResponse{data=object{operations=[]model.FiscalOperation,pagination=service.PaginationResult}}
// @Failure 400 {object} utils.APIResponse "Invalid time range"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{id}/operations [get]
func (h *OperationHandler) ListDeviceOperations(c *gin.Context) {
	filter := &service.OperationFilter{
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 50),
	}
	if t := c.Query("operation_type"); t != "" {
		opType := model.OperationType(t)
		filter.OperationType = &opType
	}
	if s := c.Query("status"); s != "" {
		status := model.OperationStatus(s)
		filter.Status = &status
	}
	var ok bool
	if filter.From, ok = queryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = queryTime(c, "to"); !ok {
		return
	}

	operations, pagination, err := h.operationService.ListOperations(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		respondError(c, "Failed to list operations", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Operations retrieved successfully", gin.H{
		"operations": operations,
		"pagination": pagination,
	})
}

// queryTime parses an optional RFC3339 query parameter. It writes the 400
// response itself and returns false on a malformed value.
func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid "+key+" time", err)
		return nil, false
	}
	return &t, true
}
