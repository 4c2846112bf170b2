// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecf-service/internal/config"
	"ecf-service/internal/database"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *database.DB
	devices   *service.DeviceService
	config    *config.Config
	startedAt time.Time
	logger    *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, devices *service.DeviceService, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		devices:   devices,
		config:    cfg,
		startedAt: time.Now(),
		logger:    utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Service health including the database, the journal spool and the connected printers
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Success 207 {object} HealthResponse "Service is degraded"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	if err := h.pingDB(c.Request.Context()); err != nil {
		// Fiscal calls keep working; the journal falls back to the spool.
		health.Status = "degraded"
		health.Checks["database"] = CheckResult{Status: "unhealthy", Message: err.Error()}
	} else {
		stats := h.db.Stats()
		health.Checks["database"] = CheckResult{
			Status:  "healthy",
			Message: "Database connection OK",
			Data: map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
			},
		}
	}

	pending := h.devices.Journal().Pending()
	spool := CheckResult{Status: "healthy", Data: map[string]interface{}{"pending": pending}}
	if pending > 0 {
		spool.Status = "degraded"
		spool.Message = "journal entries waiting for replay"
	}
	health.Checks["journal_spool"] = spool

	connected := h.devices.ConnectedDevices()
	health.Checks["devices"] = CheckResult{
		Status: "healthy",
		Data:   map[string]interface{}{"connected": connected, "count": len(connected)},
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusMultiStatus
	}
	c.JSON(statusCode, health)
}

// ReadinessCheck for Kubernetes readiness check
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
		"database":  h.pingDB(c.Request.Context()) == nil,
	})
}

// LivenessCheck for Kubernetes liveness check
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.Health(ctx)
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
