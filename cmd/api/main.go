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
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/artifact"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/cache"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/config"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/database"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/jobs"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/middleware"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/notify"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/provider"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/queue"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/storage"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/tracing"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/webhook"
)

func main() {
	// A missing .env is fine
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

	// Tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.WarnWithErr("Tracing disabled", err)
		} else {
			defer closer.Close()
			logger.Infof("Tracing enabled, reporting to %s", cfg.Tracing.Endpoint)
		}
	}

	// Provider, optionally behind the metadata cache
	var prov provider.Provider = provider.NewYtDlp(
		cfg.Downloader.YtDlpPath,
		cfg.Downloader.MetadataTimeout,
		cfg.Downloader.DownloadTimeout,
		logger,
	)
	if cfg.Cache.Enabled {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WarnWithErr("Metadata cache disabled", err)
		} else {
			defer c.Close()
			prov = cache.NewMetadataCache(prov, c, cfg.Cache.TTL, logger)
			logger.Info("Metadata cache enabled")
		}
	}

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

	opts := jobs.Options{
		MaxConcurrent: cfg.Downloader.MaxConcurrent,
		AudioQuality:  cfg.Downloader.AudioQuality,
		History:       repo,
		Logger:        logger,
	}

	// History recording through the worker
	var queueStats monitoring.QueueProvider
	if cfg.History.Mode == config.HistoryModeQueue {
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		opts.History = q
		queueStats = q
		logger.Info("History events are published to the queue")
	}

	// Optional archive of completed artifacts
	if cfg.Storage.Enabled {
		stor, err := storage.New(cfg.Storage, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		opts.Archiver = stor
	}

	hooks := webhook.NewService(cfg.Webhook, logger)
	if hooks.Enabled() {
		opts.Notifier = hooks
	}

	store, err := artifact.NewStore(cfg.Downloader.ArtifactRoot)
	if err != nil {
		logger.Fatalf("Failed to prepare artifact directory: %v", err)
	}
	logger.Infof("Artifacts are written to %s", store.Root())

	manager := jobs.NewManager(prov, store, opts)
	hub := notify.NewHub(manager, logger)
	manager.SetUpdateCallback(hub.Broadcast)
	manager.StartJanitor(cfg.Downloader.CleanupInterval, cfg.Downloader.Retention)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitor := monitoring.NewMonitor(manager, queueStats, logger)
	monitor.Start(monitorCtx, 15*time.Second)

	api := &API{
		provider:    prov,
		manager:     manager,
		history:     repo,
		health:      db,
		hub:         hub,
		monitor:     monitor,
		logger:      logger,
		recentLimit: cfg.History.RecentLimit,
	}

	var limiter *middleware.RateLimiter
	stopLimiter := make(chan struct{})
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go limiter.Cleanup(10*time.Minute, stopLimiter)
	}

	// Setup router
	router := setupRouter(api, limiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServerWithLogger(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	close(stopLimiter)
	stopMonitor()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}
	if err := manager.Shutdown(ctx); err != nil {
		logger.ErrorWithErr("Jobs did not stop in time", err)
	}
	hooks.Wait()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	if err := store.Close(cfg.Downloader.CleanupOnExit); err != nil {
		logger.WarnWithErr("Failed to clean up artifacts", err)
	}

	logger.Info("Server stopped")
}
