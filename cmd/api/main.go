package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"planted-staging/internal/api"
	"planted-staging/internal/commit"
	"planted-staging/internal/config"
	"planted-staging/internal/content"
	"planted-staging/internal/db"
	"planted-staging/internal/excel"
	"planted-staging/internal/linker"
	"planted-staging/internal/lock"
	"planted-staging/internal/logger"
	"planted-staging/internal/moderation"
	"planted-staging/internal/queue"
	"planted-staging/internal/staging"
	"planted-staging/internal/storage"
	"planted-staging/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting API server")

	// Initialize repository
	var repo db.Repository
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory repository, staged uploads are lost on restart")
		repo = db.NewMemoryRepository()
	} else {
		database, err := db.NewConnection(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		if err := db.Migrate(context.Background(), database); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		repo = db.NewRepository(database)
	}

	// Locking and staging events go through Redis when it is enabled
	var (
		locker    lock.Locker
		publisher queue.Publisher
	)
	if cfg.Redis.Enabled {
		redisClient, err := queue.NewRedisClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		locker = lock.NewRedisLocker(redisClient.Client(), cfg.Redis.LockPrefix, cfg.Staging.LockTTL, cfg.Staging.LockWait)
		publisher = queue.NewProducer(redisClient, cfg.Redis.EventsQueue)
	} else {
		locker = lock.NewLocalLocker(cfg.Staging.LockWait)
		publisher = worker.NewEventRecorder(repo)
	}

	// Initialize S3 archive
	var archive storage.Storage
	if cfg.Storage.S3.Enabled {
		s3Storage, err := storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
		archive = s3Storage
	}

	// Initialize content store
	var store content.Store
	if cfg.ContentAPI.Driver == config.ContentDriverMemory {
		log.Warn().Msg("Using in-memory content store, approved items are not published")
		store = content.NewMemoryStore()
	} else {
		store = content.NewClient(cfg.ContentAPI)
	}

	strategy := excel.NewExcelStrategy()
	dayLinker := linker.New(cfg.Staging.DuplicateDayPolicy)

	stagingService := staging.NewService(cfg.Staging, repo, strategy, dayLinker, archive, cfg.Storage.S3.Prefix, publisher)
	moderationEngine := moderation.NewEngine(
		repo,
		locker,
		commit.NewEngine(store, worker.NewWorkerPool(cfg.Staging.CommitConcurrency)),
		dayLinker,
		strategy,
		publisher,
	)

	// Initialize API handler
	handler := api.NewHandler(cfg, stagingService, moderationEngine)
	router := api.NewRouter(handler)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
