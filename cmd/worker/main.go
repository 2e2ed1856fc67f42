package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/config"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/database"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/queue"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.WithField("component", "history-worker")

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		cancelMigrate()
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	cancelMigrate()

	repo := database.NewRepository(db)

	// Initialize queue
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		// The API usually owns the configured port; the worker uses the next one
		metricsServer = metrics.NewServerWithLogger(cfg.Metrics.Port+1, logger)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
	}

	// History handler
	handler := func(ctx context.Context, rec *models.HistoryRecord) error {
		if err := repo.RecordDownload(ctx, rec); err != nil {
			return err
		}
		logger.WithField("video_id", rec.VideoID).
			WithField("format", rec.Format).
			Info("Recorded download history")
		return nil
	}

	// Start consuming history events
	logger.Info("Worker started, waiting for history events...")
	if err := q.ConsumeHistory(ctx, handler); err != nil {
		logger.Fatalf("Failed to consume history events: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()

	if metricsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Info("Worker stopped")
}
