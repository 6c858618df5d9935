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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuskit/license-exception-api/api/swagger"
	"github.com/campuskit/license-exception-api/internal/handler"
	"github.com/campuskit/license-exception-api/internal/middleware"
	"github.com/campuskit/license-exception-api/internal/models"
	"github.com/campuskit/license-exception-api/internal/repository"
	"github.com/campuskit/license-exception-api/internal/service"
	"github.com/campuskit/license-exception-api/pkg/cache"
	"github.com/campuskit/license-exception-api/pkg/config"
	"github.com/campuskit/license-exception-api/pkg/database"
	"github.com/campuskit/license-exception-api/pkg/export"
	"github.com/campuskit/license-exception-api/pkg/jobs"
	"github.com/campuskit/license-exception-api/pkg/logger"
	corsmiddleware "github.com/campuskit/license-exception-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/license-exception-api/pkg/middleware/requestid"
	"github.com/campuskit/license-exception-api/pkg/storage"
)

// @title License Exception API
// @version 1.0.0
// @description Approval workflow for driver's license exception requests
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	programRepo := repository.NewProgramRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// The program directory cache degrades to the database when redis is
	// down or disabled.
	var cacheService *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, cfg.Cache.TTL, logr, true)
		}
	}

	metricsService := service.NewMetricsService()

	// Services.
	auditService := service.NewAuditService(auditRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	if cfg.Export.Dir != "" {
		archive, err := storage.NewArchive(cfg.Export.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export archive", "error", err)
		}
		auditService.WithArchive(archive)
	}
	authService := service.NewAuthService(userRepo, auditService, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "license-exception-api",
	})
	programService := service.NewProgramService(programRepo, userRepo, cacheService, validate, logr,
		cfg.Workflow.DefaultExpiryDays, cfg.Workflow.DefaultReminderDays)
	requestService := service.NewRequestService(requestRepo, programService, validate, logr)
	approvalService := service.NewApprovalService(approvalRepo, programRepo, requestRepo, logr)
	sweeperService := service.NewSweeperService(requestRepo, metricsService, logr, cfg.Sweeper.BatchSize)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	requestHandler := handler.NewRequestHandler(requestService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	programHandler := handler.NewProgramHandler(programService)
	auditHandler := handler.NewAuditHandler(auditService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	authed.POST("/requests", middleware.RequireRoles(models.RoleStudent), requestHandler.Create)
	authed.GET("/requests", middleware.RequireRoles(models.RoleStudent), requestHandler.List)

	authed.GET("/approvals/pending", middleware.RequireRoles(models.RoleApprover, models.RoleAdmin), requestHandler.ListPending)
	authed.POST("/approvals/:requestId", middleware.RequireRoles(models.RoleApprover, models.RoleAdmin), approvalHandler.Decide)
	authed.DELETE("/approvals/:requestId", middleware.RequireRoles(models.RoleApprover, models.RoleAdmin), approvalHandler.Retract)

	authed.GET("/programs", programHandler.List)
	authed.GET("/programs/:id", programHandler.Get)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/programs", programHandler.Create)
	admin.POST("/programs/:id/approvers", programHandler.AssignApprover)
	admin.DELETE("/programs/approvers/:approverId", programHandler.RemoveApprover)
	admin.PATCH("/programs/approvers/:approverId", programHandler.SetApproverActive)
	admin.GET("/audit", auditHandler.List)
	admin.GET("/audit/export", auditHandler.Export)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweeper *jobs.Runner
	if cfg.Sweeper.Enabled {
		sweeper = jobs.NewRunner("expiry-sweeper", sweeperService.Sweep, jobs.RunnerConfig{
			Interval:   cfg.Sweeper.Interval,
			RunOnStart: true,
			Logger:     logr,
		})
		sweeper.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
