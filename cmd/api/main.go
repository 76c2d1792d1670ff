package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traffic-counts-api/analytics"
	"traffic-counts-api/config"
	"traffic-counts-api/handlers"
	"traffic-counts-api/logging"
	"traffic-counts-api/middleware"
	"traffic-counts-api/services"
	"traffic-counts-api/store"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	// Connect to database
	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	cache, err := services.NewCacheService(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, serving without cache", "err", err)
	}
	defer cache.Close()

	aggregator := analytics.NewAggregator(st, cfg.Analytics.Location, logger)
	detector, err := analytics.NewGapDetector(st, cfg.Analytics.GapThreshold, cfg.Analytics.Location, logger)
	if err != nil {
		log.Fatalf("Failed to create gap detector: %v", err)
	}

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))
	handlers.RegisterRoutes(router,
		handlers.NewAnalyticsHandler(aggregator, detector, cache, cfg.Analytics.CacheTTL, logger),
		handlers.NewCountsHandler(st, cfg.Analytics.Location, logger),
		handlers.NewIngestHandler(st, logger),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server", "addr", server.Addr, "db_driver", cfg.Database.Driver,
			"timezone", cfg.Analytics.Location.String(), "gap_threshold", cfg.Analytics.GapThreshold)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
}
