package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridehail/internal/app"
	"ridehail/internal/config"
	"ridehail/internal/events"
	"ridehail/internal/handler"
	"ridehail/internal/logging"
	"ridehail/internal/middleware"
	internalRedis "ridehail/internal/redis"
	"ridehail/internal/repository/postgres"
	"ridehail/internal/service"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database and Redis clients can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", "addr", cfg.Redis.Addr)

	ridePublisher, positionStream, closers := wirePublishers(cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close publisher", "error", err)
			}
		}
	}()

	server := wireServer(db, redisClient, nrApp, ridePublisher, positionStream, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

// wirePublishers connects the optional brokers. A broker that is not
// configured, or cannot be reached at startup, falls back to logging.
func wirePublishers(cfg *config.Config, logger *slog.Logger) (events.RidePublisher, events.PositionPublisher, []io.Closer) {
	var closers []io.Closer
	var ridePublisher events.RidePublisher = events.NewLogPublisher(logger)
	var positionStream events.PositionPublisher = events.NewLogPublisher(logger)

	if cfg.AMQP.URL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Warn("ride events will only be logged", "error", err)
		} else {
			ridePublisher = pub
			closers = append(closers, pub)
			logger.Info("publishing ride events", "exchange", cfg.AMQP.Exchange)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		stream := events.NewKafkaPositionStream(cfg.Kafka.Brokers, cfg.Kafka.LocationTopic)
		positionStream = stream
		closers = append(closers, stream)
		logger.Info("streaming driver positions", "topic", cfg.Kafka.LocationTopic)
	}

	return ridePublisher, positionStream, closers
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	ridePublisher events.RidePublisher,
	positionStream events.PositionPublisher,
	cfg *config.Config,
	logger *slog.Logger,
) *http.Server {
	positionStore := internalRedis.NewPositionStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	rideRepo := postgres.NewRideRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	transactor := postgres.NewTransactor(db)

	notificationService := service.NewNotificationService(ridePublisher, logger)
	fareCalculator := service.NewFareCalculator(cfg.Fare)
	rideService := service.NewRideService(rideRepo, transactor, lockStore, cacheStore, fareCalculator, notificationService, logger)
	rideService.SetLockTTL(cfg.Redis.LockTTL)
	driverService := service.NewDriverService(positionStore, driverRepo, positionStream, logger)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(rideService),
		DriverHandler:  handler.NewDriverHandler(driverService),
		ResponseStore:  middleware.NewRedisResponseStore(redisClient),
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		NewRelicApp:    nrApp,
		Logger:         logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
