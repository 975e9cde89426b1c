package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"planted-staging/internal/config"
	"planted-staging/internal/db"
	"planted-staging/internal/logger"
	"planted-staging/internal/queue"
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

	log.Info().Str("version", cfg.App.Version).Msg("Starting audit worker")

	if !cfg.Redis.Enabled {
		log.Fatal().Msg("Audit worker needs redis.enabled; without Redis the API records events itself")
	}

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if err := db.Migrate(context.Background(), database); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	repo := db.NewRepository(database)

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	consumer := queue.NewConsumer(redisClient, cfg.Redis.EventsQueue, cfg.Redis.DLQSuffix)
	auditWorker := worker.NewAuditWorker(repo, consumer, cfg.Workers.Audit.Count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- auditWorker.Start(ctx)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutting down audit worker...")
		cancel()
		if err := <-done; err != nil {
			log.Error().Err(err).Msg("Audit worker stopped with error")
		}
	case err := <-done:
		if err != nil {
			log.Fatal().Err(err).Msg("Audit worker failed")
		}
	}

	log.Info().Msg("Audit worker exited")
}
