package main

import (
	"context"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/config"
	"github.com/KAsare1/Gigstage-server/service/review"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// runWorker fires review visibility timers: queued tasks as they come
// due, and a periodic sweep over the job table for anything the queue
// lost.
func runWorker(ctx context.Context, cfg *config.Config, conn *gorm.DB, logger *zap.Logger) error {
	queue := asynq.NewClient(redisOpt(cfg))
	defer queue.Close()

	timer := review.NewTimer(conn, queue, logger.Named("timer"))
	worker := review.NewWorker(review.NewService(conn, timer, logger.Named("review")), logger.Named("worker"))

	srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      logger.Named("asynq").Sugar(),
	})

	sweeper := cron.New()
	_, err := sweeper.AddFunc(cfg.SweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := worker.Sweep(sweepCtx); err != nil {
			logger.Error("visibility sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	go monitorRedisConnection(ctx, cfg, logger)

	if err := startQueueServer(srv, worker.ServeMux(), logger); err != nil {
		return err
	}
	logger.Info("worker started", zap.String("sweep_schedule", cfg.SweepSchedule))

	<-ctx.Done()
	logger.Info("shutting down worker")
	srv.Shutdown()
	return nil
}

// startQueueServer retries with a growing backoff while Redis comes up.
func startQueueServer(srv *asynq.Server, mux *asynq.ServeMux, logger *zap.Logger) error {
	const maxAttempts = 5

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = srv.Start(mux); err == nil {
			return nil
		}
		logger.Warn("failed to start queue server",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt*2) * time.Second)
	}
	return err
}

// monitorRedisConnection pings Redis periodically to surface outages.
func monitorRedisConnection(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("redis connection lost", zap.Error(err))
			}
		}
	}
}
