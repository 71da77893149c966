package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/curriculum-portal-api/api/swagger"
	"github.com/noah-isme/curriculum-portal-api/internal/handler"
	"github.com/noah-isme/curriculum-portal-api/internal/repository"
	"github.com/noah-isme/curriculum-portal-api/internal/server"
	"github.com/noah-isme/curriculum-portal-api/internal/service"
	"github.com/noah-isme/curriculum-portal-api/pkg/cache"
	"github.com/noah-isme/curriculum-portal-api/pkg/config"
	"github.com/noah-isme/curriculum-portal-api/pkg/database"
	"github.com/noah-isme/curriculum-portal-api/pkg/gemini"
	"github.com/noah-isme/curriculum-portal-api/pkg/jobs"
	"github.com/noah-isme/curriculum-portal-api/pkg/logger"
	"github.com/noah-isme/curriculum-portal-api/pkg/pdftext"
	"github.com/noah-isme/curriculum-portal-api/pkg/storage"
)

// @title Curriculum Portal API
// @version 1.0.0
// @description Collaborative curriculum editing with reviewed updates, feedback analysis and an AI assistant.
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and change broadcasts disabled", zap.Error(err))
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Feedback.AnalysisCacheTTL, logr, cfg.Feedback.AnalysisCacheEnabled && redisClient != nil)

	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, metrics, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	events := service.NewEventBus(logr)
	events.Subscribe("cache-invalidation", service.InvalidateCaches(cacheSvc))
	events.Subscribe("redis-broadcast", service.PublishToChannel(cacheRepo, service.RecordsChangedChannel))
	events.Subscribe("proposer-notification", notificationSvc.OnRecordChanged)

	accessSvc := service.NewAccessService(accessRepo, userRepo, notificationSvc, validate, logr)
	recordSvc := service.NewRecordService(recordRepo, accessSvc, events, notificationSvc, metrics, validate, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, cacheSvc, cfg.Feedback.AnalysisCacheTTL, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, accessSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.MaxFileBytes)
	if err != nil {
		logr.Fatal("failed to prepare upload directory", zap.Error(err))
	}
	var generator service.Generator
	geminiClient, err := gemini.New(ctx, gemini.Config{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model, Timeout: cfg.AI.Timeout}, logr)
	switch {
	case errors.Is(err, gemini.ErrNotConfigured):
		logr.Warn("GEMINI_API_KEY not set, AI endpoints will report AI_NOT_CONFIGURED")
	case err != nil:
		logr.Error("failed to create gemini client", zap.Error(err))
	default:
		generator = geminiClient
		defer geminiClient.Close() //nolint:errcheck
	}
	aiSvc := service.NewAIService(generator, uploads, service.PDFReaderFunc(pdftext.Extract), cfg.AI.MaxInputChars, validate, logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	router := server.NewRouter(server.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CookieName:     cfg.Cookie.Name,
		EnableDocs:     cfg.Env != config.EnvProduction,
	}, server.Handlers{
		Auth:          handler.NewAuthHandler(authSvc, handler.CookieOptions{Name: cfg.Cookie.Name, Domain: cfg.Cookie.Domain, Secure: cfg.Cookie.Secure}),
		Users:         handler.NewUserHandler(userSvc),
		Records:       handler.NewRecordHandler(recordSvc),
		Access:        handler.NewAccessHandler(accessSvc),
		Feedback:      handler.NewFeedbackHandler(feedbackSvc),
		AI:            handler.NewAIHandler(aiSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Metrics:       handler.NewMetricsHandler(metrics, checks, logr),
	}, authSvc, metrics, logr)

	go sweepUploads(ctx, uploads, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// sweepUploads removes staged files left behind by interrupted comparisons.
func sweepUploads(ctx context.Context, uploads *storage.LocalStorage, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := uploads.CleanupOlderThan(time.Hour)
			if err != nil {
				logr.Warn("upload sweep failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("removed stale uploads", zap.Int("count", len(removed)))
			}
		}
	}
}
