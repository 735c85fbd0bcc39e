package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/feeflow/feeflow-api/api/swagger"
	"github.com/feeflow/feeflow-api/internal/handler"
	"github.com/feeflow/feeflow-api/internal/middleware"
	"github.com/feeflow/feeflow-api/internal/repository"
	"github.com/feeflow/feeflow-api/internal/scheduler"
	"github.com/feeflow/feeflow-api/internal/service"
	"github.com/feeflow/feeflow-api/pkg/cache"
	"github.com/feeflow/feeflow-api/pkg/config"
	"github.com/feeflow/feeflow-api/pkg/database"
	"github.com/feeflow/feeflow-api/pkg/logger"
	"github.com/feeflow/feeflow-api/pkg/mailer"
	corsmiddleware "github.com/feeflow/feeflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/feeflow/feeflow-api/pkg/middleware/requestid"
)

// @title FeeFlow API
// @version 1.0.0
// @description Tuition fee management: rosters, billing, reminders and reports
// @BasePath /api/v1
// @schemes http

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
		// Caching is an optimisation; the API runs without it.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	feeRepo := repository.NewFeeRecordRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Audience:          []string{cfg.JWT.Issuer},
	})
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	classSvc := service.NewClassService(classRepo, nil, logr)
	billingSvc := service.NewBillingService(feeRepo, enrollmentRepo, paymentRepo, metricsSvc, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, billingSvc, nil, logr)
	reminderSvc := service.NewReminderService(feeRepo, mailer.New(cfg.Mail, logr), metricsSvc, service.ReminderServiceConfig{
		LookaheadDays: cfg.Billing.LookaheadDays,
		CooldownDays:  cfg.Billing.CooldownDays,
	}, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, classRepo, feeRepo, cacheSvc, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	}, logr)
	reportSvc := service.NewReportService(reportRepo, feeRepo, logr)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.RouterParams{
		Auth:        handler.NewAuthHandler(authSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Classes:     handler.NewClassHandler(classSvc, enrollmentSvc, studentSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Fees:        handler.NewFeeHandler(billingSvc),
		Reminders:   handler.NewReminderHandler(reminderSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Reports:     handler.NewReportHandler(reportSvc),
		AuthService: authSvc,
	})

	var sched *scheduler.Scheduler
	if cfg.Billing.SchedulerEnabled {
		sched = scheduler.New(billingSvc, reminderSvc, cfg.Billing, logr)
		if err := sched.Start(); err != nil {
			logr.Fatal("failed to start billing scheduler", zap.Error(err))
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
