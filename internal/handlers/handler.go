package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"nightfall_dashboard/internal/logger"
	"nightfall_dashboard/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler. metrics may be nil, in which
// case /metrics is not served.
func NewHandler(services *service.Service, metrics http.Handler, log *logger.Logger) *Handler {
	return &Handler{services: services, metrics: metrics, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// dashboard snapshot push, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorIdentity)
	{
		h.registerLinkRoutes(api)
		h.registerVideoRoutes(api)
		h.registerAlertRoutes(api)
		api.GET("/telemetry/history", h.getHistory)
		api.GET("/logs", h.getLogs)
	}
}

func (h *Handler) registerLinkRoutes(api *gin.RouterGroup) {
	link := api.Group("/link")
	{
		link.GET("/state", h.getLinkState)
		link.POST("/connect", h.connectLink)
		link.POST("/reconnect", h.reconnectLink)
		link.POST("/disconnect", h.disconnectLink)
	}
	// Body: {"command":"forward"} or {"left":120,"right":-120}
	api.POST("/commands", h.sendCommand)
}

func (h *Handler) registerVideoRoutes(api *gin.RouterGroup) {
	video := api.Group("/video")
	{
		video.GET("/state", h.getVideoState)
		video.POST("/start", h.startVideo)
		video.POST("/stop", h.stopVideo)
		video.POST("/retry", h.retryVideo)
		video.GET("/frame.jpg", h.getFrame)
	}
}

func (h *Handler) registerAlertRoutes(api *gin.RouterGroup) {
	alerts := api.Group("/alerts")
	{
		alerts.GET("", h.getAlerts)
		alerts.DELETE("/:id", h.dismissAlert)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
		"link":   h.services.Dashboard.LinkState(),
	})
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}
