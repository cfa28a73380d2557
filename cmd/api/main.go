// Command api serves the student intelligence HTTP surface: cached and live
// consolidated profiles, report card exports, health, and metrics.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/handler"
	"github.com/edualytics/student-intel/internal/llm"
	"github.com/edualytics/student-intel/internal/middleware"
	"github.com/edualytics/student-intel/internal/repository"
	"github.com/edualytics/student-intel/internal/service"
	"github.com/edualytics/student-intel/internal/store"
	"github.com/edualytics/student-intel/pkg/cache"
	"github.com/edualytics/student-intel/pkg/config"
	"github.com/edualytics/student-intel/pkg/logger"
	corsmiddleware "github.com/edualytics/student-intel/pkg/middleware/cors"
	reqidmiddleware "github.com/edualytics/student-intel/pkg/middleware/requestid"
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

	ctx := context.Background()

	st, closeStore, err := store.FromConfig(ctx, cfg)
	if err != nil {
		logr.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, serving without cache", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(repo, metricsSvc, cfg.Cache.TTL, logr, true)
			defer repo.Close() //nolint:errcheck
		}
	}

	liveNarrator := func(provider string) (service.ConsolidationNarrator, error) {
		if provider == "" {
			provider = cfg.LLM.Provider
		}
		backend, err := llm.NewNamed(cfg.LLM, provider)
		if err != nil {
			return nil, err
		}
		return llm.NewNarrativeGenerator(backend, logr).Observe(metricsSvc.ObserveLLMCall), nil
	}

	studentSvc := service.NewStudentService(st, cacheSvc, liveNarrator, nil, logr)
	exportSvc := service.NewExportService(st, logr)

	studentHandler := handler.NewStudentHandler(studentSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.POST("/student-summary", studentHandler.Summary)
	api.POST("/student-summary/live", studentHandler.LiveSummary)
	api.GET("/students/:id/report", exportHandler.ReportCard)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store_backend", cfg.Store.Backend)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
