// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"ecf-service/internal/config"
	"ecf-service/internal/database"
	"ecf-service/internal/handler"
	"ecf-service/internal/middleware"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Devices    *service.DeviceService
	Operations *service.OperationService
	Coupons    *service.CouponService
	Till       *service.TillService
	Print      *service.PrintService
	Discovery  *service.DiscoveryService
}

// Router holds all dependencies for routing
type Router struct {
	config   *config.Config
	logger   *zap.Logger
	db       *database.DB
	services Services
	eventBus *handler.EventBus
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	services Services,
	eventBus *handler.EventBus,
) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		db:       db,
		services: services,
		eventBus: eventBus,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))
	router.Use(middleware.RateLimitMiddleware(&r.config.Security, r.logger))

	r.logger.Info("Middleware configured",
		zap.Bool("rate_limit", r.config.Security.RateLimitEnabled),
	)
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	s := r.services

	// Health checks stay at the root so load balancers need no prefix.
	if r.db != nil {
		handler.NewHealthHandler(r.db, s.Devices, r.config, r.logger).RegisterRoutes(&router.RouterGroup)
	}

	apiV1 := router.Group("/api/v1")
	handler.NewDeviceHandler(s.Devices, r.logger).RegisterRoutes(apiV1)
	handler.NewOperationHandler(s.Operations, r.logger).RegisterRoutes(apiV1)
	handler.NewCouponHandler(s.Coupons, r.logger).RegisterRoutes(apiV1)
	handler.NewTillHandler(s.Till, r.logger).RegisterRoutes(apiV1)
	handler.NewPrintHandler(s.Print, r.logger).RegisterRoutes(apiV1)
	if s.Discovery != nil {
		handler.NewDiscoveryHandler(s.Discovery, s.Devices, r.logger).RegisterRoutes(apiV1)
	}

	if r.eventBus != nil {
		ws := router.Group("/ws")
		handler.NewWebSocketHandler(s.Devices, r.eventBus, r.config.Security.AllowedOrigins, r.logger).RegisterRoutes(ws)
	}

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
