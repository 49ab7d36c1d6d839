package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"shuttle/internal/app"
	"shuttle/internal/clock"
	"shuttle/internal/config"
	"shuttle/internal/handler"
	"shuttle/internal/metrics"
	"shuttle/internal/middleware"
	internalRedis "shuttle/internal/redis"
	"shuttle/internal/repository/postgres"
	"shuttle/internal/service"
	"shuttle/internal/token"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := app.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", slog.Any("error", err))
		} else {
			logger.Info("New Relic enabled", slog.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	if cfg.Database.RunMigrations {
		if err := app.RunMigrations(ctx, db, logger); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	m := metrics.New(logger)
	m.StartDBStatsCollector(db, 15*time.Second)
	defer m.Shutdown()

	server, limiter := wireServer(db, redisClient, nrApp, m, logger, cfg)
	defer limiter.Stop()

	go func() {
		logger.Info("starting server", slog.String("port", cfg.Server.Port), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}
	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server together with
// the rate limiter whose janitor must be stopped on exit.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg *config.Config,
) (*http.Server, *middleware.RateLimiter) {
	clk := clock.RealClock{}
	loc := cfg.Location()

	// Stores.
	store := postgres.NewStore(db)
	reportRepo := postgres.NewReportRepository(db)
	cacheStore := internalRedis.NewCacheStore(redisClient, cfg.Redis.TripTTL)

	// Services.
	deps := service.Lifecycle{
		Store:    store,
		Tokens:   token.NewGenerator(cfg.Token.Pepper),
		Clock:    clk,
		Location: loc,
		Cache:    cacheStore,
		Recorder: m,
		Logger:   logger,
	}
	notificationService := service.NewNotificationService(store, clk, m, logger)
	tripService := service.NewTripService(deps, notificationService)
	checkInService := service.NewCheckInService(deps, service.GeofencePolicy{
		Enabled:             cfg.Geofence.Enabled,
		DefaultRadiusMeters: cfg.Geofence.DefaultRadiusMeters,
	})
	reportService := service.NewReportService(reportRepo, store.Repos().Trips, clk, loc)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Interval, clk)

	router := app.NewRouter(app.RouterDeps{
		TripHandler:         handler.NewTripHandler(tripService, checkInService, notificationService),
		CheckInHandler:      handler.NewCheckInHandler(checkInService, tripService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		ReportHandler:       handler.NewReportHandler(reportService),
		RateLimiter:         limiter,
		Metrics:             m,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
		Logger:              logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, limiter
}
