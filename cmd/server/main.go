// Package main runs the registration and notification scheduling HTTP server
// with an in-process dispatch worker and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/notifications/config"
	"github.com/aura-webinar/notifications/internal/auth"
	"github.com/aura-webinar/notifications/internal/emaillogs"
	"github.com/aura-webinar/notifications/internal/metrics"
	"github.com/aura-webinar/notifications/internal/middleware"
	"github.com/aura-webinar/notifications/internal/ratelimit"
	"github.com/aura-webinar/notifications/internal/registrations"
	"github.com/aura-webinar/notifications/internal/scheduler"
	"github.com/aura-webinar/notifications/internal/worker"
	"github.com/aura-webinar/notifications/pkg/database"
	"github.com/aura-webinar/notifications/pkg/mailer"
	"github.com/aura-webinar/notifications/pkg/queue"
	"github.com/aura-webinar/notifications/pkg/redis"
	"github.com/aura-webinar/notifications/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	repo := registrations.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo)

	notificationScheduler := scheduler.New(jobQueue, logger)
	gateway := metrics.NewGateway(cfg.Metrics.BaseURL, cfg.Metrics.Timeout, logger)
	registrationHandler := registrations.NewHandler(repo, notificationScheduler, gateway, registrations.Defaults{
		Topic:    cfg.Webinar.DefaultTopic,
		Capacity: cfg.Webinar.DefaultCapacity,
	}, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(jwtService, cfg.JWT.AdminAPIKey, logger)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[string]ratelimit.Rule{
		ratelimit.ActionRegister: {Window: cfg.RateLimit.Window, Max: cfg.RateLimit.RegisterMax},
		ratelimit.ActionRead:     {Window: cfg.RateLimit.Window, Max: cfg.RateLimit.ReadMax},
	}, logger)

	sender := mailer.New(mailer.Config{
		Provider:        cfg.Email.Provider,
		FromAddress:     cfg.Email.FromAddress,
		FromName:        cfg.Email.FromName,
		Region:          cfg.Email.Region,
		AccessKeyID:     cfg.Email.AccessKeyID,
		SecretAccessKey: cfg.Email.SecretAccessKey,
	}, logger)
	dispatcher := worker.NewDispatcher(jobQueue, sender, repo, emailLogsRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: registration and degraded count reads
	router.POST("/register", middleware.RateLimit(limiter, ratelimit.ActionRegister), registrationHandler.Register)
	router.GET("/registrations/count", middleware.RateLimit(limiter, ratelimit.ActionRead), registrationHandler.Count)

	// Admin token exchange
	router.POST("/auth/token", authHandler.Token)

	// Admin API (JWT required)
	admin := router.Group("")
	admin.Use(middleware.JWT(jwtService))
	{
		admin.GET("/webinars/:id/registrations", registrationHandler.ListByWebinar)
		admin.GET("/webinars/:id/emails", emailLogsHandler.ListByWebinar)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background activities: rate-limit sweep and in-process dispatch worker.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go limiter.RunSweep(workerCtx, time.Minute)
	go dispatcher.Run(workerCtx)
	logger.Info("dispatch worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
