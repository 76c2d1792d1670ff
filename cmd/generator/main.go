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

	"traffic-counts-api/config"
	"traffic-counts-api/generator"
	"traffic-counts-api/logging"
	"traffic-counts-api/middleware"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	sink, err := generator.NewSink(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create %s sink: %v", cfg.Generator.Sink, err)
	}

	gen := generator.New(sink, generator.Options{
		Sensors:           cfg.Generator.Sensors,
		BatchInterval:     cfg.Generator.BatchInterval,
		HeartbeatInterval: cfg.Generator.HeartbeatInterval,
		Logger:            logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, _ := sink.(generator.ConfigRecorder)
	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))
	generator.NewControlHandler(ctx, gen, recorder, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Generator.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("generator control api listening", "addr", server.Addr, "sink", cfg.Generator.Sink)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control api failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("generator shutting down")
	gen.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	if err := sink.Close(); err != nil {
		logger.Warn("sink close failed", "err", err)
	}
}
