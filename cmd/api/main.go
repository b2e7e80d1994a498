package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/wrenchworks/cmms-api/api/swagger"
	"github.com/wrenchworks/cmms-api/internal/handler"
	"github.com/wrenchworks/cmms-api/internal/middleware"
	"github.com/wrenchworks/cmms-api/internal/repository"
	"github.com/wrenchworks/cmms-api/internal/service"
	"github.com/wrenchworks/cmms-api/pkg/cache"
	"github.com/wrenchworks/cmms-api/pkg/config"
	"github.com/wrenchworks/cmms-api/pkg/database"
	"github.com/wrenchworks/cmms-api/pkg/logger"
	corsmiddleware "github.com/wrenchworks/cmms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/wrenchworks/cmms-api/pkg/middleware/requestid"
	"github.com/wrenchworks/cmms-api/pkg/storage"
)

// @title CMMS Work Order API
// @version 1.0.0
// @description Work order lifecycle and technician assignment engine for equipment maintenance
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, rule caching disabled", "error", err)
		redisClient = nil
	}

	photoStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	workOrderRepo := repository.NewWorkOrderRepository(db)
	historyRepo := repository.NewStatusHistoryRepository(db)
	resolutionRepo := repository.NewResolutionRepository(db)
	maintenanceRepo := repository.NewMaintenanceHistoryRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	ruleRepo := repository.NewAssignmentRuleRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, logr)
	allocator, err := service.NewSequenceAllocator(sequenceRepo, db, cfg.Sequence, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init sequence allocator", "error", err)
	}
	assignmentSvc := service.NewAssignmentService(ruleRepo, redisClient, cfg.Assignment.RuleCacheTTL, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, metricsSvc, cfg.Notifications, logr)
	workOrderSvc := service.NewWorkOrderService(service.WorkOrderServiceDeps{
		Orders:      workOrderRepo,
		History:     historyRepo,
		Resolutions: resolutionRepo,
		Maintenance: maintenanceRepo,
		Assets:      assetRepo,
		Users:       userRepo,
		Allocator:   allocator,
		Matcher:     assignmentSvc,
		Notifier:    notificationSvc,
		Photos:      photoStorage,
		Signer:      signer,
		Tx:          db,
		Metrics:     metricsSvc,
	}, cfg.Assignment, cfg.Uploads, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	workOrderHandler := handler.NewWorkOrderHandler(workOrderSvc)
	ruleHandler := handler.NewAssignmentRuleHandler(assignmentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.POST("/work-orders", workOrderHandler.Create)
		authed.GET("/work-orders", workOrderHandler.List)
		authed.GET("/work-orders/:id", workOrderHandler.Get)
		authed.GET("/work-orders/:id/history", workOrderHandler.History)
		authed.PUT("/work-orders/:id/assign", workOrderHandler.Assign)
		authed.PUT("/work-orders/:id/status", workOrderHandler.UpdateStatus)
		authed.POST("/work-orders/:id/complete", workOrderHandler.Complete)
		authed.POST("/work-orders/:id/photos", workOrderHandler.UploadPhotos)
		authed.GET("/work-orders/:id/photos/download", workOrderHandler.DownloadPhoto)
		authed.DELETE("/work-orders/:id", workOrderHandler.Delete)

		authed.GET("/assets/:id/history", workOrderHandler.AssetHistory)

		authed.GET("/notifications", notificationHandler.List)
		authed.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		authed.PUT("/notifications/read-all", notificationHandler.MarkAllRead)

		rules := authed.Group("/assignment-rules")
		rules.Use(middleware.RequireElevated())
		{
			rules.GET("", ruleHandler.List)
			rules.POST("", ruleHandler.Create)
			rules.PUT("/:id", ruleHandler.Update)
			rules.DELETE("/:id", ruleHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
