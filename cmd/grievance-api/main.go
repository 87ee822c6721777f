package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/civicdesk/grievance-api/api/swagger"
	"github.com/civicdesk/grievance-api/internal/handler"
	"github.com/civicdesk/grievance-api/internal/middleware"
	"github.com/civicdesk/grievance-api/internal/models"
	"github.com/civicdesk/grievance-api/internal/repository"
	"github.com/civicdesk/grievance-api/internal/service"
	"github.com/civicdesk/grievance-api/pkg/cache"
	"github.com/civicdesk/grievance-api/pkg/config"
	"github.com/civicdesk/grievance-api/pkg/database"
	"github.com/civicdesk/grievance-api/pkg/jobs"
	"github.com/civicdesk/grievance-api/pkg/logger"
	corsmiddleware "github.com/civicdesk/grievance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/civicdesk/grievance-api/pkg/middleware/requestid"
	"github.com/civicdesk/grievance-api/pkg/storage"
)

// @title CivicDesk Grievance API
// @version 1.0.0
// @description Citizen grievance tracking with SLA-driven escalation
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and sweep locking degraded", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	grievanceRepo := repository.NewGrievanceRepository(db)
	eventRepo := repository.NewEventRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "grievance-api",
	})
	grievanceSvc := service.NewGrievanceService(
		grievanceRepo, eventRepo, categoryRepo, departmentRepo,
		cfg.SLA.TriageDepartment, cfg.SLA.ExtensionDays, logr)
	escalationSvc := service.NewEscalationService(
		grievanceRepo, eventRepo, departmentRepo, cacheRepo,
		cfg.Sweeper.LockTTL, cfg.Sweeper.BatchSize, logr,
		service.WithEscalationMetrics(metricsSvc))
	statsSvc := service.NewStatsService(grievanceRepo, cacheRepo, cfg.Stats.CacheTTL, logr)
	classifierSvc := service.NewClassifierService(
		cfg.Classifier.BaseURL, cfg.Classifier.TopN, cfg.Classifier.Timeout, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(grievanceRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	reportWorker.AttachMetrics(metricsSvc)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportQueue.Start(ctx)
	defer reportQueue.Stop()

	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	if cfg.Sweeper.Enabled {
		go runSweeper(ctx, escalationSvc, cfg.Sweeper.Interval, logr)
	}

	router := setupRouter(cfg, logr, routerDeps{
		auth:       authSvc,
		metrics:    metricsSvc,
		grievances: handler.NewGrievanceHandler(grievanceSvc),
		admin:      handler.NewAdminHandler(statsSvc, escalationSvc),
		authH:      handler.NewAuthHandler(authSvc),
		directory:  handler.NewDirectoryHandler(categoryRepo, departmentRepo),
		classifier: handler.NewClassifierHandler(classifierSvc),
		reports:    handler.NewReportHandler(reportSvc),
		metricsH:   handler.NewMetricsHandler(metricsSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := router.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type routerDeps struct {
	auth       *service.AuthService
	metrics    *service.MetricsService
	grievances *handler.GrievanceHandler
	admin      *handler.AdminHandler
	authH      *handler.AuthHandler
	directory  *handler.DirectoryHandler
	classifier *handler.ClassifierHandler
	reports    *handler.ReportHandler
	metricsH   *handler.MetricsHandler
}

func setupRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.metricsH.Health)
	r.GET("/ready", deps.metricsH.Health)
	r.GET("/metrics", deps.metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.authH.Login)
		auth.POST("/refresh", deps.authH.Refresh)
		auth.POST("/logout", middleware.JWT(deps.auth), deps.authH.Logout)
		auth.GET("/me", middleware.JWT(deps.auth), deps.authH.Me)
	}

	api.GET("/categories", deps.directory.Categories)
	api.GET("/departments", deps.directory.Departments)
	api.GET("/departments/:id/sub-departments", deps.directory.SubDepartments)
	api.POST("/classifier/suggest", deps.classifier.Suggest)

	staff := []models.UserRole{models.RoleTriageOfficer, models.RoleDepartmentAdmin, models.RoleTopAuthority}

	grievances := api.Group("/grievances", middleware.JWT(deps.auth))
	{
		grievances.POST("", deps.grievances.Create)
		grievances.GET("", deps.grievances.List)
		grievances.GET("/:id", deps.grievances.Get)
		grievances.GET("/:id/events", deps.grievances.Events)
		grievances.POST("/:id/transition", middleware.RequireRoles(staff...), deps.grievances.Transition)
		grievances.POST("/:id/reassign", middleware.RequireRoles(models.RoleTriageOfficer, models.RoleTopAuthority), deps.grievances.Reassign)
		grievances.POST("/:id/reopen", middleware.RequireRoles(staff...), deps.grievances.Reopen)
		grievances.POST("/:id/extension", middleware.RequireRoles(models.RoleTopAuthority), deps.grievances.Extend)
		grievances.PATCH("/:id/resolution", middleware.RequireRoles(models.RoleDepartmentAdmin, models.RoleTopAuthority), deps.grievances.UpdateResolution)
	}

	admin := api.Group("/admin", middleware.JWT(deps.auth), middleware.RequireRoles(models.RoleTopAuthority))
	{
		admin.GET("/stats", deps.admin.Stats)
		admin.POST("/sweep", deps.admin.Sweep)
	}

	reports := api.Group("/reports")
	{
		reports.POST("/generate", middleware.JWT(deps.auth),
			middleware.RequireRoles(models.RoleDepartmentAdmin, models.RoleTopAuthority), deps.reports.GenerateReport)
		reports.GET("/status/:id", middleware.JWT(deps.auth), deps.reports.ReportStatus)
		reports.GET("/download/:token", deps.reports.DownloadReport)
	}

	return r
}

func runSweeper(ctx context.Context, svc *service.EscalationService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Sweep(ctx); err != nil {
				logr.Sugar().Warnw("scheduled sweep did not run", "error", err)
			}
		}
	}
}
