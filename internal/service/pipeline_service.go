package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineService sequences the five stages end to end. A stage failure
// aborts the run; later stages never see a partially produced table.
type PipelineService struct {
	validation    *ValidationService
	analytics     *AnalyticsService
	insights      *InsightService
	narratives    *NarrativeService
	consolidation *ConsolidationService
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewPipelineService constructs the orchestrator. metrics may be nil.
func NewPipelineService(
	validation *ValidationService,
	analytics *AnalyticsService,
	insights *InsightService,
	narratives *NarrativeService,
	consolidation *ConsolidationService,
	metrics *MetricsService,
	logger *zap.Logger,
) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		validation:    validation,
		analytics:     analytics,
		insights:      insights,
		narratives:    narratives,
		consolidation: consolidation,
		metrics:       metrics,
		logger:        logger,
	}
}

// Run executes validation, analytics, insights, narratives, and consolidation
// in order under a single run id.
func (s *PipelineService) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))
	started := time.Now()
	logger.Info("pipeline run starting")

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"validation", func(ctx context.Context) error {
			n, err := s.validation.Run(ctx)
			if err == nil {
				logger.Info("stage complete", zap.String("stage", "validation"), zap.Int("rows", n))
			}
			return err
		}},
		{"analytics", func(ctx context.Context) error {
			n, err := s.analytics.Run(ctx)
			if err == nil {
				logger.Info("stage complete", zap.String("stage", "analytics"), zap.Int("rows", n))
			}
			return err
		}},
		{"insights", func(ctx context.Context) error {
			n, err := s.insights.Run(ctx)
			if err == nil {
				logger.Info("stage complete", zap.String("stage", "insights"), zap.Int("rows", n))
			}
			return err
		}},
		{"narratives", func(ctx context.Context) error {
			n, err := s.narratives.Run(ctx)
			if err == nil {
				logger.Info("stage complete", zap.String("stage", "narratives"), zap.Int("rows", n))
			}
			return err
		}},
		{"consolidation", func(ctx context.Context) error {
			done, skipped, err := s.consolidation.ConsolidateAll(ctx)
			if err == nil {
				logger.Info("stage complete",
					zap.String("stage", "consolidation"),
					zap.Int("students", done),
					zap.Int("skipped", skipped))
			}
			return err
		}},
	}

	for _, stage := range stages {
		stageStart := time.Now()
		if err := stage.run(ctx); err != nil {
			s.observeStage(stage.name, time.Since(stageStart), false)
			logger.Error("pipeline aborted", zap.String("stage", stage.name), zap.Error(err))
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}
		s.observeStage(stage.name, time.Since(stageStart), true)
	}

	logger.Info("pipeline run finished", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (s *PipelineService) observeStage(stage string, elapsed time.Duration, ok bool) {
	if s.metrics != nil {
		s.metrics.ObserveStage(stage, elapsed, ok)
	}
}
