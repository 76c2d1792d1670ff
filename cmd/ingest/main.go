package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"traffic-counts-api/config"
	"traffic-counts-api/ingest"
	"traffic-counts-api/logging"
	"traffic-counts-api/store"
)

func main() {
	countsPath := flag.String("counts", "data_counts.csv", "counts CSV (time,class,sensor_id,approach); empty to skip")
	systemPath := flag.String("system", "data_system.csv", "system health CSV (time,sensorId); empty to skip")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := ingest.NewLoader(st, cfg.Analytics.Location, logger)
	failed := false

	if *countsPath != "" {
		if _, err := loader.LoadCountsFile(ctx, *countsPath); err != nil {
			logger.Error("error loading counts data", "path", *countsPath, "err", err)
			failed = true
		}
	}
	if *systemPath != "" {
		if _, err := loader.LoadSystemHealthFile(ctx, *systemPath); err != nil {
			logger.Error("error loading system health data", "path", *systemPath, "err", err)
			failed = true
		}
	}

	logger.Info("data ingestion completed")
	if failed {
		stop()
		closer.Close()
		os.Exit(1)
	}
}
