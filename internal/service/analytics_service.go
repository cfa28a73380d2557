package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/metrics"
	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// AnalyticsService is the second pipeline stage: it aggregates validated
// scores into one analytics row per (student, grade, subject) group.
type AnalyticsService struct {
	store  store.Store
	logger *zap.Logger
}

// NewAnalyticsService constructs the stage.
func NewAnalyticsService(st store.Store, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{store: st, logger: logger}
}

// Run reads the validated table, computes per-subject analytics, and fully
// overwrites the analytics table. It returns the number of analytics rows.
func (s *AnalyticsService) Run(ctx context.Context) (int, error) {
	validated, err := s.store.Read(ctx, store.TableValidatedResults)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", store.TableValidatedResults, err)
	}
	if validated.Empty() {
		return 0, appErrors.Clone(appErrors.ErrEmptyResult, "validated_results table is empty")
	}

	records, err := Compute(validated)
	if err != nil {
		return 0, err
	}

	out := store.Table{Header: models.AnalyticsColumns}
	for _, a := range records {
		out.Rows = append(out.Rows, a.Row())
	}
	if err := s.store.Write(ctx, store.TableSubjectAnalytics, out); err != nil {
		return 0, fmt.Errorf("write %s: %w", store.TableSubjectAnalytics, err)
	}

	s.logger.Info("analytics complete", zap.Int("subject_groups", len(records)))
	return len(records), nil
}

// Compute turns a validated table into analytics records. Rows whose score
// cannot be parsed are dropped before grouping, and groups that end up with
// no usable scores are skipped rather than emitted with zeroed metrics.
func Compute(validated store.Table) ([]models.SubjectAnalytics, error) {
	var scores []models.ValidatedScore
	for _, rec := range validated.Records() {
		v, err := models.ParseValidatedScore(rec)
		if err != nil {
			continue
		}
		scores = append(scores, v)
	}

	// Chronological order within each group is what gives trend, velocity
	// and the recent window their meaning. Stable sort preserves input
	// order between same-day exams.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].ExamDate.Before(scores[j].ExamDate)
	})

	type groupKey struct {
		studentID string
		grade     int
		subject   string
	}
	groups := make(map[groupKey][]models.ValidatedScore)
	var order []groupKey
	for _, v := range scores {
		key := groupKey{studentID: v.StudentID, grade: v.Grade, subject: v.Subject}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], v)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.studentID != b.studentID {
			return a.studentID < b.studentID
		}
		if a.grade != b.grade {
			return a.grade < b.grade
		}
		return a.subject < b.subject
	})

	var out []models.SubjectAnalytics
	for _, key := range order {
		group := groups[key]
		values := make([]float64, len(group))
		for i, v := range group {
			values[i] = v.Score
		}
		if len(values) == 0 {
			continue
		}

		avg := metrics.Round2(metrics.Mean(values))
		trend := metrics.Trend(values)

		out = append(out, models.SubjectAnalytics{
			StudentID:           key.studentID,
			Grade:               key.grade,
			Subject:             key.subject,
			AttemptCount:        len(group),
			AverageScore:        avg,
			LatestScore:         values[len(values)-1],
			RecentAvgScore:      metrics.RecentAverage(values),
			Trend:               trend,
			ImprovementVelocity: metrics.Velocity(values),
			ConsistencyScore:    metrics.Consistency(values),
			VolatilityLevel:     metrics.Volatility(values),
			MockVsRealGap:       metrics.MockVsRealGap(group),
			PerformanceBand:     metrics.PerformanceBand(avg),
			RiskFlag:            metrics.Risk(avg, trend),
			DataConfidenceLevel: metrics.Confidence(len(group)),
		})
	}

	if len(out) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyResult, "no analytics records generated")
	}
	return out, nil
}
