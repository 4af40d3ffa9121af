package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/studyhall-labs/planner-api/api/swagger"
	"github.com/studyhall-labs/planner-api/internal/freebusy"
	"github.com/studyhall-labs/planner-api/internal/handler"
	"github.com/studyhall-labs/planner-api/internal/middleware"
	"github.com/studyhall-labs/planner-api/internal/repository"
	"github.com/studyhall-labs/planner-api/internal/service"
	"github.com/studyhall-labs/planner-api/pkg/cache"
	"github.com/studyhall-labs/planner-api/pkg/config"
	"github.com/studyhall-labs/planner-api/pkg/database"
	"github.com/studyhall-labs/planner-api/pkg/jobs"
	"github.com/studyhall-labs/planner-api/pkg/logger"
	corsmiddleware "github.com/studyhall-labs/planner-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studyhall-labs/planner-api/pkg/middleware/requestid"
	"github.com/studyhall-labs/planner-api/pkg/storage"
)

// @title StudyHall Planner API
// @version 0.1.0
// @description Study session planning with free/busy conflict detection
// @BasePath /api
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

	var redisClient *redis.Client
	if cfg.FreeBusy.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
	}

	plannerLoc := time.Local
	if cfg.Planner.Timezone != "" {
		plannerLoc, err = time.LoadLocation(cfg.Planner.Timezone)
		if err != nil {
			logr.Sugar().Fatalw("invalid planner timezone", "timezone", cfg.Planner.Timezone, "error", err)
		}
	}

	validate := validator.New()

	planRepo := repository.NewPlanRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)

	busySources := []freebusy.Source{freebusy.NewCalendarSource(calendarRepo)}
	if cfg.FreeBusy.ProviderURL != "" {
		busySources = append(busySources, freebusy.NewHTTPSource(cfg.FreeBusy.ProviderURL, cfg.FreeBusy.FetchTimeout))
	}
	var busy freebusy.Source = freebusy.NewMultiSource(busySources...)
	if redisClient != nil {
		busy = freebusy.NewCachedSource(busy, redisClient, cfg.FreeBusy.CacheTTL, logr)
	}

	metricsSvc := service.NewMetricsService()
	plannerSvc := service.NewPlannerService(planRepo, busy, validate, logr, metricsSvc, service.PlannerServiceConfig{
		DefaultLocation: plannerLoc,
		MaxRangeDays:    cfg.Planner.MaxRangeDays,
	})
	planSvc := service.NewPlanService(planRepo, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, validate, logr)

	plannerHandler := handler.NewPlannerHandler(plannerSvc, planSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)

	var exportHandler *handler.ExportHandler
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportRepository(db)

		var exportSvc *service.ExportService
		exportQueue = jobs.NewQueue("plan_export", func(ctx context.Context, job jobs.Job) error {
			return exportSvc.Process(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc = service.NewExportService(exportRepo, planRepo, exportQueue, store, signer, validate, logr)
		exportHandler = handler.NewExportHandler(exportSvc)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
	}

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
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		planner := api.Group("/planner")
		{
			planner.POST("/plan", plannerHandler.Plan)
			planner.GET("/plans", plannerHandler.List)
			planner.GET("/plans/:id", plannerHandler.Get)
			planner.DELETE("/plans/:id", plannerHandler.Delete)
			if exportHandler != nil {
				planner.POST("/plans/:id/exports", exportHandler.Create)
			}
		}

		calendar := api.Group("/calendar")
		{
			calendar.GET("/events", calendarHandler.List)
			calendar.POST("/events", calendarHandler.Create)
			calendar.GET("/events/:id", calendarHandler.Get)
			calendar.PUT("/events/:id", calendarHandler.Update)
			calendar.DELETE("/events/:id", calendarHandler.Delete)
		}

		if exportHandler != nil {
			api.GET("/exports/:id", exportHandler.Status)
		}
	}

	// Downloads carry their own credential: the signed token issued on
	// completion. No JWT required.
	if exportHandler != nil {
		r.GET(cfg.APIPrefix+"/exports/:id/download", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
