package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"shuttle/internal/domain"
	"shuttle/internal/handler"
	"shuttle/internal/metrics"
	"shuttle/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler         *handler.TripHandler
	CheckInHandler      *handler.CheckInHandler
	NotificationHandler *handler.NotificationHandler
	ReportHandler       *handler.ReportHandler
	RateLimiter         *middleware.RateLimiter
	Metrics             *metrics.Metrics
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application
	Logger              *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	admin := middleware.RequireRole(domain.RoleAdmin)
	driver := middleware.RequireRole(domain.RoleDriver)
	passenger := middleware.RequireRole(domain.RolePassenger)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(middleware.Identity())
	if deps.RedisClient != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}
	{
		// Route-scoped trip routes.
		routes := v1.Group("/routes/:id")
		{
			routes.GET("/trips/today", deps.TripHandler.GetTodayTrip)
			routes.POST("/trips", admin, deps.TripHandler.CreateTrip)
			routes.POST("/assignments", admin, deps.TripHandler.AssignPassengers)
		}

		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.DELETE("/:id", admin, deps.TripHandler.DeleteTrip)
			trips.POST("/:id/messages", middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin), deps.TripHandler.SendMessage)
		}

		// Driver routes.
		drivers := v1.Group("/driver/trip", driver)
		{
			drivers.POST("/start", deps.TripHandler.StartTrip)
			drivers.POST("/end", deps.TripHandler.EndTrip)
		}

		// Passenger routes.
		v1.POST("/enrollments", passenger, deps.CheckInHandler.Enroll)
		boarding := v1.Group("", passenger)
		if deps.RateLimiter != nil {
			boarding.Use(deps.RateLimiter.Handler())
		}
		{
			boarding.POST("/checkin", deps.CheckInHandler.CheckIn)
			boarding.POST("/checkout", deps.CheckInHandler.CheckOut)
		}

		// Notification routes.
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", deps.NotificationHandler.List)
			notifications.POST("/:id/read", deps.NotificationHandler.MarkRead)
		}

		// Report routes.
		reports := v1.Group("/reports", admin)
		{
			reports.GET("/daily", deps.ReportHandler.DailySummary)
			reports.GET("/trips/:id/roster", deps.ReportHandler.TripRoster)
			reports.GET("/passengers/:id/history", deps.ReportHandler.PassengerHistory)
		}
	}

	return router
}
