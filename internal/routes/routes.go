// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"monitor-service/internal/config"
	"monitor-service/internal/database"
	"monitor-service/internal/discovery"
	"monitor-service/internal/handler"
	"monitor-service/internal/middleware"
	"monitor-service/internal/repository"
	"monitor-service/internal/service"
	"monitor-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config         *config.Config
	logger         *zap.Logger
	db             *database.DB
	monitorService *service.MonitorService
	events         repository.EventRepository
	scanner        *discovery.ScannerManager
	wsHandler      *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db may be nil.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	monitorService *service.MonitorService,
	events repository.EventRepository,
	scanner *discovery.ScannerManager,
	wsHandler *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:         config,
		logger:         logger,
		db:             db,
		monitorService: monitorService,
		events:         events,
		scanner:        scanner,
		wsHandler:      wsHandler,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	// Set Gin mode
	switch {
	case r.config.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	case r.config.App.Environment == "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
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

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.monitorService, r.config, r.logger)
	monitorHandler := handler.NewMonitorHandler(r.monitorService, r.events, r.logger)
	portsHandler := handler.NewPortsHandler(r.scanner, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addMonitorRoutes(apiV1, monitorHandler)
	apiV1.GET("/ports", portsHandler.ListPorts)

	r.addWebSocketRoutes(router, r.wsHandler)
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/health/db", handler.DatabaseHealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addMonitorRoutes sets up the monitor control routes
func (r *Router) addMonitorRoutes(api *gin.RouterGroup, handler *handler.MonitorHandler) {
	monitor := api.Group("/monitor")
	{
		monitor.POST("/connect", handler.Connect)
		monitor.POST("/disconnect", handler.Disconnect)
		monitor.POST("/send", handler.Send)
		monitor.GET("/settings", handler.GetSettings)
		monitor.PUT("/settings", handler.ChangeSettings)
		monitor.GET("/stream", handler.GetStreamAddress)
		monitor.GET("/current", handler.GetCurrent)
		monitor.GET("/events", handler.ListEvents)
	}
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine, handler *handler.WebSocketHandler) {
	ws := router.Group("/ws")
	{
		ws.GET("/events", handler.HandleEventConnection)
		ws.GET("/stats", handler.GetStats)
	}
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
