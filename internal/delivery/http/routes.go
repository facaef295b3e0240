package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clony/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Operational endpoints are not rate limited
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		ingredients := v1.Group("/ingredients")
		{
			ingredients.POST("/segment", handler.SegmentText)
			ingredients.POST("/correct", handler.CorrectTokens)
			ingredients.GET("/search", handler.SearchIngredients)
		}

		analysis := v1.Group("/analysis")
		{
			analysis.POST("/text", handler.AnalyzeText)
			analysis.POST("/blocks", handler.AnalyzeBlocks)
		}
	}

	return router
}
