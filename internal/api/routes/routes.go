package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/stackmotive/stackmotive/docs"
	"github.com/stackmotive/stackmotive/internal/api/handlers"
	"github.com/stackmotive/stackmotive/internal/api/middleware"
	"github.com/stackmotive/stackmotive/internal/infrastructure/di"
	"github.com/stackmotive/stackmotive/pkg/ratelimit"
	"github.com/stackmotive/stackmotive/pkg/tracing"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - tracing first so every later log line carries the span
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(container.HealthChecker, container.Readiness)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)
	router.GET("/version", healthHandler.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if container.Config.Environment != "production" {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	ringHandlers := handlers.NewRingHandlers(container.AllocationService, container.ZapLog)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserContext())
	v1.Use(ratelimit.Middleware(container.RateLimiter, ratelimit.UserOrIPKeyFunc, container.ZapLog))
	RegisterRingRoutes(v1, ringHandlers)
	RegisterNotificationRoutes(v1, handlers.NewNotificationHandlers(container.NotificationManager, container.ZapLog))

	return router
}

// RegisterRingRoutes mounts the allocation ring API on an authenticated group
func RegisterRingRoutes(rg *gin.RouterGroup, h *handlers.RingHandlers) {
	rings := rg.Group("/rings")
	{
		rings.POST("", h.CreateRing)
		rings.POST("/default", h.CreateDefaultRing)
		rings.POST("/filter", h.FilterRings)
		rings.GET("", h.ListRings)
		rings.GET("/:id", h.GetRing)
		rings.PATCH("/:id", h.UpdateRing)
		rings.DELETE("/:id", h.DeleteRing)

		rings.POST("/:id/asset-classes", h.AddAssetClass)
		rings.PATCH("/:id/asset-classes/:assetClassId", h.UpdateAssetClass)
		rings.DELETE("/:id/asset-classes/:assetClassId", h.RemoveAssetClass)

		rings.POST("/:id/targets", h.AddTargetAllocation)
		rings.POST("/:id/targets/:targetId/activate", h.ActivateTargetAllocation)
		rings.DELETE("/:id/targets/:targetId", h.RemoveTargetAllocation)

		rings.POST("/:id/analyze", h.AnalyzeRebalancing)
		rings.GET("/:id/performance", h.GetPerformance)
		rings.POST("/:id/refresh", h.RefreshValuations)

		rings.POST("/:id/suggestions/:suggestionId/accept", h.AcceptSuggestion)
		rings.POST("/:id/suggestions/:suggestionId/reject", h.RejectSuggestion)
		rings.POST("/:id/suggestions/:suggestionId/execute", h.ExecuteSuggestion)
	}
}

// RegisterNotificationRoutes mounts the caller's notification preferences
func RegisterNotificationRoutes(rg *gin.RouterGroup, h *handlers.NotificationHandlers) {
	prefs := rg.Group("/notifications/preferences")
	{
		prefs.GET("", h.GetPreferences)
		prefs.PUT("", h.UpdatePreferences)
	}
}
