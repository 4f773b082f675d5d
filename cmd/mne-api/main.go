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

	_ "github.com/fawe-tz/mne-api/api/swagger"
	"github.com/fawe-tz/mne-api/internal/handler"
	"github.com/fawe-tz/mne-api/internal/importer"
	"github.com/fawe-tz/mne-api/internal/repository"
	"github.com/fawe-tz/mne-api/internal/router"
	"github.com/fawe-tz/mne-api/internal/service"
	"github.com/fawe-tz/mne-api/pkg/cache"
	"github.com/fawe-tz/mne-api/pkg/config"
	"github.com/fawe-tz/mne-api/pkg/database"
	"github.com/fawe-tz/mne-api/pkg/jobs"
	"github.com/fawe-tz/mne-api/pkg/logger"
	"github.com/fawe-tz/mne-api/pkg/storage"
)

// @title School Violence M&E API
// @version 1.0.0
// @description Survey import, analysis and reporting for the school violence monitoring programme.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis, cfg.Cache.Enabled)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	surveyRepo := repository.NewSurveyRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	indicatorRepo := repository.NewIndicatorRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, "mne", logr), metrics, cfg.Cache.TTL, logr, true)
	}

	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	proofStore, err := storage.NewLocalStorage(cfg.Indicators.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare proof storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	surveySvc := service.NewSurveyService(surveyRepo, analyticsRepo, metrics, logr)
	dashboardSvc := service.NewDashboardService(analyticsRepo, cacheSvc, metrics, logr)
	violenceSvc := service.NewViolenceReportService(analyticsRepo, cacheSvc, metrics, logr)
	importSvc := service.NewImportService(importer.New(surveyRepo, logr), userRepo, cacheSvc, metrics, cfg.Imports.MaxUploadBytes, logr)
	indicatorSvc := service.NewIndicatorService(indicatorRepo, proofStore, userRepo, validate, cfg.Indicators.MaxProofSizeBytes, logr)
	exportSvc := service.NewExportService(surveyRepo, violenceSvc, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	worker := service.NewReportWorker(reportRepo, exportSvc, metrics, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Reports.WorkerConcurrency,
		MaxRetries:  cfg.Reports.WorkerRetries,
		RetryDelay:  5 * time.Second,
		Logger:      logr,
		OnExhausted: worker.Exhausted,
	})
	reportSvc := service.NewReportService(reportRepo, queue, exportSvc, userRepo, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
		logr.Error("failed to bootstrap admin", zap.Error(err))
	}

	queue.Start(ctx)
	if n := reportSvc.RecoverPendingJobs(ctx); n > 0 {
		logr.Info("recovered pending report jobs", zap.Int("count", n))
	}
	reportSvc.StartCleanup(ctx)

	readiness := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return database.Ready(ctx, db, 2*time.Second) },
	}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Auth:           authSvc,
		AuditWriter:    userRepo,
		Metrics:        metrics,
		AuthHandler:    handler.NewAuthHandler(authSvc),
		UserHandler:    handler.NewUserHandler(userSvc),
		Import:         handler.NewImportHandler(importSvc, importer.Template, cfg.Imports.MaxUploadBytes),
		Surveys:        handler.NewSurveyHandler(surveySvc),
		Dashboard:      handler.NewDashboardHandler(dashboardSvc),
		Violence:       handler.NewViolenceReportHandler(violenceSvc),
		Reports:        handler.NewReportHandler(reportSvc),
		Indicators:     handler.NewIndicatorHandler(indicatorSvc),
		MetricsHandler: handler.NewMetricsHandler(metrics, readiness),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logr.Info("shutdown signal received")
	case err := <-serverErrors:
		logr.Error("server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	cancel()
	queue.Stop()
}
