package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traffic-counts-api/collector"
	"traffic-counts-api/config"
	"traffic-counts-api/logging"
	"traffic-counts-api/store"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	writer, err := store.NewPgxWriter(ctx, cfg.Database.GetURL())
	if err != nil {
		logger.Error("database unavailable", "err", err)
		os.Exit(1)
	}
	defer writer.Close()

	server := &http.Server{
		Addr:              cfg.Collector.MetricsAddr,
		Handler:           collector.MetricsHandler(writer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
			stop()
		}
	}()

	c := collector.New(writer, cfg.MQTT.TopicPrefix, logger)
	client := mqtt.NewClient(c.ClientOptions(ctx, cfg.MQTT.URL))
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		logger.Error("mqtt connection failed", "err", token.Error())
		os.Exit(1)
	}

	logger.Info("collector running", "mqtt", cfg.MQTT.URL, "prefix", cfg.MQTT.TopicPrefix, "metrics", cfg.Collector.MetricsAddr)

	<-ctx.Done()
	logger.Info("collector shutting down")
	client.Disconnect(250)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
