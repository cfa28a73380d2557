// Command pipeline runs all five stages end to end against the configured
// tabular store.
//
// Usage:
//
//	pipeline <llm_provider> <llm_row_limit>
//
// Example:
//
//	pipeline ollama 5
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/llm"
	"github.com/edualytics/student-intel/internal/repository"
	"github.com/edualytics/student-intel/internal/service"
	"github.com/edualytics/student-intel/internal/store"
	"github.com/edualytics/student-intel/pkg/cache"
	"github.com/edualytics/student-intel/pkg/config"
	"github.com/edualytics/student-intel/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Positional arguments override the environment so one deployment can be
	// scheduled with different providers and caps.
	if len(os.Args) > 1 {
		cfg.LLM.Provider = os.Args[1]
	}
	if len(os.Args) > 2 {
		limit, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid llm_row_limit %q: %v", os.Args[2], err)
		}
		cfg.LLM.RowLimit = limit
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.FromConfig(ctx, cfg)
	if err != nil {
		logr.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore() //nolint:errcheck

	backend, err := llm.New(cfg.LLM)
	if err != nil {
		logr.Fatal("narrative backend init failed", zap.Error(err))
	}
	narrator := llm.NewNarrativeGenerator(backend, logr)

	pipeline := service.NewPipelineService(
		service.NewValidationService(st, logr),
		service.NewAnalyticsService(st, logr),
		service.NewInsightService(st, logr),
		service.NewNarrativeService(st, narrator, cfg.LLM.RowLimit, logr),
		service.NewConsolidationService(st, narrator, logr),
		nil,
		logr,
	)

	if err := pipeline.Run(ctx); err != nil {
		logr.Fatal("pipeline failed", zap.Error(err))
	}

	invalidateProfiles(ctx, cfg, st, logr)

	fmt.Println("pipeline complete")
}

// invalidateProfiles drops cached student profiles after a run has rewritten
// the tables they are assembled from. A missing cache is not an error.
func invalidateProfiles(ctx context.Context, cfg *config.Config, st store.Store, logr *zap.Logger) {
	if !cfg.Cache.Enabled {
		return
	}
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cached profiles not invalidated", zap.Error(err))
		return
	}
	repo := repository.NewCacheRepository(redisClient, logr)
	defer repo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(repo, nil, cfg.Cache.TTL, logr, true)
	students := service.NewStudentService(st, cacheSvc, nil, nil, logr)
	if err := students.InvalidateProfiles(ctx); err != nil {
		logr.Warn("profile cache invalidation failed", zap.Error(err))
	}
}
