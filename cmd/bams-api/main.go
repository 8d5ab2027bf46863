package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/handler"
	"github.com/bams-platform/bams-api/internal/middleware"
	"github.com/bams-platform/bams-api/internal/repository"
	"github.com/bams-platform/bams-api/internal/sequence"
	"github.com/bams-platform/bams-api/internal/service"
	"github.com/bams-platform/bams-api/pkg/cache"
	"github.com/bams-platform/bams-api/pkg/config"
	"github.com/bams-platform/bams-api/pkg/database"
	"github.com/bams-platform/bams-api/pkg/logger"
	corsmiddleware "github.com/bams-platform/bams-api/pkg/middleware/cors"
	reqidmiddleware "github.com/bams-platform/bams-api/pkg/middleware/requestid"
	"github.com/bams-platform/bams-api/pkg/storage"
)

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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init file storage", "error", err)
	}

	// Repositories.
	archiveRepo := repository.NewArchiveRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	stageRepo := repository.NewStageRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	tagRepo := repository.NewTagRepository(db)
	dictRepo := repository.NewDictionaryRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		cacheRepo = repository.NewCacheRepository(redisClient, metricsSvc, logr)
	} else {
		cacheRepo = repository.NewCacheRepository(nil, metricsSvc, logr)
	}

	// Identifier allocation.
	allocator := sequence.NewAllocator(sequence.NewRedisLocker(redisClient), archiveRepo, logr,
		cfg.Sequence.LockTTL, cfg.Sequence.RetryInterval)
	codeGen := sequence.NewCodeGenerator(projectRepo, logr, cfg.Sequence.ProjectCodeRetries)

	// Services.
	auditSvc := service.NewAuditService(auditRepo, logr)
	tagSvc := service.NewTagService(tagRepo, logr)
	statsSvc := service.NewStatisticsService(stageRepo, projectRepo, archiveRepo, cacheRepo, logr)
	versionSvc := service.NewVersionService(versionRepo, archiveRepo, fileStorage, service.NewSHA256Hasher(),
		auditSvc, logr, service.VersionServiceConfig{
			MaxFileSize:       cfg.Archives.MaxFileSizeBytes,
			AllowedExtensions: cfg.Archives.AllowedExtensions,
		})
	archiveSvc := service.NewArchiveService(archiveRepo, versionRepo, projectRepo, allocator,
		tagSvc, statsSvc, auditSvc, auditRepo, fileStorage, logr)
	projectSvc := service.NewProjectService(projectRepo, stageRepo, templateRepo, codeGen,
		cacheRepo, dictRepo, archiveRepo, statsSvc, logr, cfg.Cache.ProjectTTL)
	templateSvc := service.NewTemplateService(templateRepo, logr)
	dashboardSvc := service.NewDashboardService(projectRepo, archiveRepo, cacheRepo, logr, cfg.Cache.DashboardTTL)

	// Handlers.
	archiveHandler := handler.NewArchiveHandler(archiveSvc, auditSvc, metricsSvc)
	versionHandler := handler.NewVersionHandler(versionSvc, auditSvc, metricsSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	dictHandler := handler.NewDictionaryHandler(tagSvc, dictRepo)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		projects := api.Group("/projects")
		{
			projects.POST("", projectHandler.Create)
			projects.GET("", projectHandler.List)
			projects.GET("/:id", projectHandler.Get)
			projects.GET("/:id/detail", projectHandler.Detail)
			projects.PUT("/:id", projectHandler.Update)
			projects.POST("/:id/template", projectHandler.ApplyTemplate)
			projects.DELETE("", projectHandler.Delete)
		}

		archives := api.Group("/archives")
		{
			archives.POST("", archiveHandler.Create)
			archives.GET("", archiveHandler.List)
			archives.GET("/recycle-bin", archiveHandler.RecycleBin)
			archives.POST("/upload-temp", versionHandler.UploadTemp)
			archives.GET("/:id", archiveHandler.Get)
			archives.PUT("/:id", archiveHandler.Update)
			archives.POST("/:id/recycle", archiveHandler.Recycle)
			archives.POST("/:id/restore", archiveHandler.Restore)
			archives.DELETE("/:id", archiveHandler.Purge)
			archives.GET("/:id/audit-logs", archiveHandler.Trail)

			archives.POST("/:id/versions", versionHandler.Upload)
			archives.GET("/:id/versions", versionHandler.List)
			archives.GET("/:id/versions/current", versionHandler.Current)
			archives.GET("/:id/versions/:versionId", versionHandler.Get)
			archives.PUT("/:id/versions/:versionId/current", versionHandler.SetCurrent)
			archives.PUT("/:id/versions/:versionId/remark", versionHandler.UpdateRemark)
			archives.DELETE("/:id/versions/:versionId", versionHandler.Delete)
			archives.GET("/:id/versions/:versionId/download", versionHandler.Download)
			archives.GET("/:id/versions/:versionId/audit-logs", versionHandler.Trail)
		}

		templates := api.Group("/stage-templates")
		{
			templates.POST("", templateHandler.Create)
			templates.GET("", templateHandler.List)
			templates.GET("/:id", templateHandler.Get)
			templates.PUT("/:id", templateHandler.Update)
			templates.DELETE("", templateHandler.Delete)
		}

		api.GET("/tags", dictHandler.Tags)
		api.GET("/dictionaries/:type", dictHandler.Entries)
		api.GET("/dashboard/overview", dashboardHandler.Overview)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
