package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"homecare/internal/app"
	"homecare/internal/config"
	"homecare/internal/handler"
	"homecare/internal/observability"
	internalRedis "homecare/internal/redis"
	"homecare/internal/repository/postgres"
	"homecare/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	observability.InitLogger("homecare-matching", cfg.Log.Env, cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so database and Redis get instrumented.
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
			log.Warn().Err(err).Msg("failed to initialize New Relic")
		} else {
			log.Info().Str("app", cfg.NewRelic.AppName).Msg("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to Redis")

	server := wireServer(db, redisClient, nrApp, cfg)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	presenceStore := internalRedis.NewPresenceStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	patientRepo := postgres.NewPatientRepository(db)
	nurseRepo := postgres.NewNurseRepository(db)
	requestRepo := postgres.NewRequestRepository(db)

	// Initialize services.
	notificationService := service.NewNotificationService(cfg.Matching.PushEndpoint)
	matchingService := service.NewMatchingService(
		presenceStore,
		cacheStore,
		nurseRepo,
		cfg.Matching.DefaultMaxDistanceKm,
		cfg.Matching.ResponsivenessScoring,
	)
	requestService := service.NewRequestService(
		requestRepo,
		patientRepo,
		nurseRepo,
		matchingService,
		notificationService,
		lockStore,
		service.OfferPolicy{
			Fanout:      cfg.Matching.OfferFanout,
			Window:      cfg.Matching.OfferWindow,
			PlatformFee: cfg.Matching.PlatformFee,
		},
	)
	nurseService := service.NewNurseService(presenceStore, cacheStore, nurseRepo)

	// Initialize handlers.
	patientHandler := handler.NewPatientHandler(patientRepo)
	nurseHandler := handler.NewNurseHandler(nurseService, requestService, nurseRepo)
	requestHandler := handler.NewRequestHandler(requestService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		PatientHandler: patientHandler,
		NurseHandler:   nurseHandler,
		RequestHandler: requestHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
