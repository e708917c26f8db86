package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"homecare/internal/handler"
	"homecare/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PatientHandler *handler.PatientHandler
	NurseHandler   *handler.NurseHandler
	RequestHandler *handler.RequestHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check and metrics.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Patient routes.
		patients := v1.Group("/patients")
		{
			patients.POST("/register", deps.PatientHandler.Register)
			patients.GET("/:id", deps.PatientHandler.Get)
			patients.PUT("/:id/preferences", deps.PatientHandler.UpdatePreferences)
		}

		// Nurse routes.
		nurses := v1.Group("/nurses")
		{
			nurses.POST("/register", deps.NurseHandler.Register)
			nurses.GET("", deps.NurseHandler.GetAll)
			nurses.POST("/:id/location", deps.NurseHandler.UpdateLocation)
			nurses.POST("/:id/offline", deps.NurseHandler.SetOffline)
			nurses.POST("/:id/respond", deps.NurseHandler.Respond)
		}

		// Service request routes.
		requests := v1.Group("/requests")
		{
			requests.POST("", deps.RequestHandler.Create)
			requests.GET("", deps.RequestHandler.List)
			requests.GET("/:id", deps.RequestHandler.Get)
			requests.POST("/:id/cancel", deps.RequestHandler.Cancel)
			requests.POST("/:id/start", deps.RequestHandler.Start)
			requests.POST("/:id/complete", deps.RequestHandler.Complete)
			requests.POST("/:id/review", deps.RequestHandler.Review)
			requests.POST("/:id/rematch", deps.RequestHandler.Rematch)
		}
	}

	return router
}
