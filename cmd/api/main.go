package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/findings-exporter/internal/aggregator"
	"github.com/kurihiro0119/findings-exporter/internal/api"
	"github.com/kurihiro0119/findings-exporter/internal/config"
	"github.com/kurihiro0119/findings-exporter/internal/logging"
	"github.com/kurihiro0119/findings-exporter/internal/storage"
	"github.com/kurihiro0119/findings-exporter/internal/storage/postgres"
	"github.com/kurihiro0119/findings-exporter/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateStorage(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := logging.Init(os.Stderr, level, cfg.LogFormat)

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL storage: %v", err)
		}
	case "sqlite":
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite storage: %v", err)
		}
	default:
		log.Fatalf("The API server needs a run archive; STORAGE_TYPE is %q", cfg.StorageType)
	}
	defer store.Close()

	gin.SetMode(gin.ReleaseMode)

	agg := aggregator.NewAggregator(store)
	handler := api.NewHandler(agg)
	router := api.SetupRoutes(handler, logger)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info("Starting API server", "addr", addr, "storage", cfg.StorageType)

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
