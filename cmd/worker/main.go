// Package main runs the standalone notification dispatch worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/notifications/config"
	"github.com/aura-webinar/notifications/internal/emaillogs"
	"github.com/aura-webinar/notifications/internal/registrations"
	"github.com/aura-webinar/notifications/internal/worker"
	"github.com/aura-webinar/notifications/pkg/database"
	"github.com/aura-webinar/notifications/pkg/mailer"
	"github.com/aura-webinar/notifications/pkg/queue"
	"github.com/aura-webinar/notifications/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	repo := registrations.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)
	sender := mailer.New(mailer.Config{
		Provider:        cfg.Email.Provider,
		FromAddress:     cfg.Email.FromAddress,
		FromName:        cfg.Email.FromName,
		Region:          cfg.Email.Region,
		AccessKeyID:     cfg.Email.AccessKeyID,
		SecretAccessKey: cfg.Email.SecretAccessKey,
	}, logger)
	dispatcher := worker.NewDispatcher(jobQueue, sender, repo, emailLogsRepo, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
