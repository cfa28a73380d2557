package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// SubjectNarrator produces per-subject prose from an insight. Implemented by
// llm.NarrativeGenerator; the interface exists so tests can stub the model.
type SubjectNarrator interface {
	Backend() string
	GenerateSubject(ctx context.Context, insight models.SubjectInsight) models.NarrativeFields
}

// NarrativeService is the fourth pipeline stage: it turns insight rows into
// student-facing prose summaries. Row volume is capped to bound model cost
// per run.
type NarrativeService struct {
	store    store.Store
	narrator SubjectNarrator
	rowLimit int
	logger   *zap.Logger
}

// NewNarrativeService constructs the stage. A rowLimit of zero or less
// disables the cap.
func NewNarrativeService(st store.Store, narrator SubjectNarrator, rowLimit int, logger *zap.Logger) *NarrativeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NarrativeService{store: st, narrator: narrator, rowLimit: rowLimit, logger: logger}
}

// Run reads the insights table, generates a narrative per row up to the cap,
// and fully overwrites the summaries table. Individual backend failures
// degrade to the canned fallback inside the narrator, so a run only fails on
// storage or empty input.
func (s *NarrativeService) Run(ctx context.Context) (int, error) {
	insights, err := s.store.Read(ctx, store.TableSubjectInsights)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", store.TableSubjectInsights, err)
	}
	if insights.Empty() {
		return 0, appErrors.Clone(appErrors.ErrEmptyResult, "subject_insights table is empty")
	}

	records := insights.Records()
	if s.rowLimit > 0 && len(records) > s.rowLimit {
		s.logger.Warn("insight rows exceed narrative cap, truncating",
			zap.Int("rows", len(records)),
			zap.Int("cap", s.rowLimit))
		records = records[:s.rowLimit]
	}

	out := store.Table{Header: models.SummaryColumns}
	for _, rec := range records {
		insight, err := models.ParseSubjectInsight(rec)
		if err != nil {
			continue
		}

		fields := s.narrator.GenerateSubject(ctx, insight)
		summary := models.SubjectSummary{
			StudentID:       insight.StudentID,
			Grade:           insight.Grade,
			Subject:         insight.Subject,
			NarrativeFields: fields,
			Provider:        s.narrator.Backend(),
		}
		out.Rows = append(out.Rows, summary.Row())
	}

	if len(out.Rows) == 0 {
		return 0, appErrors.Clone(appErrors.ErrEmptyResult, "no summaries generated")
	}

	if err := s.store.Write(ctx, store.TableSubjectSummaries, out); err != nil {
		return 0, fmt.Errorf("write %s: %w", store.TableSubjectSummaries, err)
	}

	s.logger.Info("narratives complete",
		zap.Int("summaries_generated", len(out.Rows)),
		zap.String("llm_provider", s.narrator.Backend()))
	return len(out.Rows), nil
}
