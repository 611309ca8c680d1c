package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/tunehub/internal/bootstrap"
	"anoa.com/tunehub/internal/config"
	"anoa.com/tunehub/internal/server"
	"anoa.com/tunehub/pkg/database"
	"anoa.com/tunehub/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const shutdownGrace = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.AppEnv, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if cfg.AppEnv == "development" {
		if err := bootstrap.SeedDemoUsers(db, log); err != nil {
			return fmt.Errorf("failed to seed demo users: %w", err)
		}
	}

	redisClient := connectRedis(ctx, cfg.RedisURL, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv := server.NewServer(cfg, db, redisClient, log)
	return srv.ListenAndServe(ctx, ":"+cfg.Port, shutdownGrace)
}

// connectRedis returns nil when REDIS_URL is unset or unreachable; the
// pipeline then runs without the preference cache and logs dead letters.
func connectRedis(ctx context.Context, url string, log *slog.Logger) *redis.Client {
	if url == "" {
		log.Info("REDIS_URL not set, running without redis")
		return nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("invalid REDIS_URL, running without redis", logger.Error(err))
		return nil
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, running without redis", logger.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
