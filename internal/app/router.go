package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridehail/internal/handler"
	"ridehail/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	DriverHandler  *handler.DriverHandler
	ResponseStore  middleware.ResponseStore
	IdempotencyTTL time.Duration
	AllowedOrigins []string
	NewRelicApp    *newrelic.Application
	Logger         *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.PrometheusMiddleware())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NoticeErrors())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.IdempotencyMiddleware(deps.ResponseStore, deps.IdempotencyTTL, deps.Logger))
	{
		// Rider routes.
		v1.POST("/rides", deps.RideHandler.CreateRide)
		v1.GET("/rides/:rideId", deps.RideHandler.GetRide)
		v1.POST("/rides/:rideId/cancel", deps.RideHandler.CancelRide)

		// Driver routes.
		v1.GET("/viewAllRides/:driverId", deps.RideHandler.ListRides)
		v1.POST("/acceptRide", deps.RideHandler.AcceptRide)
		v1.POST("/trips/end", deps.RideHandler.FinishRide)
		v1.POST("/updateDriverLocation", deps.DriverHandler.UpdateLocation)
		v1.GET("/drivers/:driverId/location", deps.DriverHandler.GetLocation)
		v1.POST("/drivers/:driverId/offline", deps.DriverHandler.SetOffline)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.IdempotencyHeader},
		ExposeHeaders: []string{"Content-Length", "Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
