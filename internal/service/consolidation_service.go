package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// ConsolidationNarrator produces the cross-subject profile fields for one
// student. Implemented by llm.NarrativeGenerator.
type ConsolidationNarrator interface {
	Backend() string
	GenerateConsolidated(
		ctx context.Context,
		studentID string,
		grade int,
		analytics []models.SubjectAnalytics,
		summaries []models.SubjectSummary,
	) (models.ConsolidatedFields, error)
}

// ConsolidationService is the final pipeline stage: it synthesises all of a
// student's subjects into one profile, appending to the history view and
// upserting the latest view. One failing student never breaks the batch.
type ConsolidationService struct {
	store    store.Store
	narrator ConsolidationNarrator
	logger   *zap.Logger
	now      func() time.Time
}

// NewConsolidationService constructs the stage.
func NewConsolidationService(st store.Store, narrator ConsolidationNarrator, logger *zap.Logger) *ConsolidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsolidationService{store: st, narrator: narrator, logger: logger, now: time.Now}
}

// ConsolidateStudent builds and persists the profile for one student. It
// returns false without error when the student has no analytics or no
// summaries, and an error when the backend never produced usable JSON.
func (s *ConsolidationService) ConsolidateStudent(ctx context.Context, studentID string) (bool, error) {
	analytics, summaries, err := s.loadInputs(ctx)
	if err != nil {
		return false, err
	}
	return s.consolidateOne(ctx, studentID, analytics, summaries)
}

// ConsolidateAll runs consolidation for every student present in the
// analytics table, in sorted order. Per-student failures are logged and
// counted as skips; the run itself only fails on storage errors or empty
// input.
func (s *ConsolidationService) ConsolidateAll(ctx context.Context) (consolidated, skipped int, err error) {
	analytics, summaries, err := s.loadInputs(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(analytics) == 0 {
		return 0, 0, appErrors.Clone(appErrors.ErrEmptyResult, "subject_analytics table is empty")
	}

	ids := make(map[string]struct{})
	for _, a := range analytics {
		ids[a.StudentID] = struct{}{}
	}
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	for _, id := range ordered {
		done, err := s.consolidateOne(ctx, id, analytics, summaries)
		if err != nil {
			s.logger.Error("student consolidation failed, skipping",
				zap.String("student_id", id),
				zap.Error(err))
			skipped++
			continue
		}
		if !done {
			skipped++
			continue
		}
		consolidated++
	}

	s.logger.Info("consolidation complete",
		zap.Int("students_consolidated", consolidated),
		zap.Int("students_skipped", skipped),
		zap.String("llm_provider", s.narrator.Backend()))
	return consolidated, skipped, nil
}

func (s *ConsolidationService) loadInputs(ctx context.Context) ([]models.SubjectAnalytics, []models.SubjectSummary, error) {
	analyticsTable, err := s.store.Read(ctx, store.TableSubjectAnalytics)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", store.TableSubjectAnalytics, err)
	}
	summariesTable, err := s.store.Read(ctx, store.TableSubjectSummaries)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", store.TableSubjectSummaries, err)
	}

	var analytics []models.SubjectAnalytics
	for _, rec := range analyticsTable.Records() {
		a, err := models.ParseSubjectAnalytics(rec)
		if err != nil {
			continue
		}
		analytics = append(analytics, a)
	}

	var summaries []models.SubjectSummary
	for _, rec := range summariesTable.Records() {
		sm, err := models.ParseSubjectSummary(rec)
		if err != nil {
			continue
		}
		summaries = append(summaries, sm)
	}

	return analytics, summaries, nil
}

func (s *ConsolidationService) consolidateOne(
	ctx context.Context,
	studentID string,
	analytics []models.SubjectAnalytics,
	summaries []models.SubjectSummary,
) (bool, error) {
	var studentAnalytics []models.SubjectAnalytics
	for _, a := range analytics {
		if a.StudentID == studentID {
			studentAnalytics = append(studentAnalytics, a)
		}
	}
	var studentSummaries []models.SubjectSummary
	for _, sm := range summaries {
		if sm.StudentID == studentID {
			studentSummaries = append(studentSummaries, sm)
		}
	}

	if len(studentAnalytics) == 0 || len(studentSummaries) == 0 {
		s.logger.Warn("skipped, no data for student", zap.String("student_id", studentID))
		return false, nil
	}

	grade := studentAnalytics[0].Grade

	fields, err := s.narrator.GenerateConsolidated(ctx, studentID, grade, studentAnalytics, studentSummaries)
	if err != nil {
		return false, err
	}

	profile := models.ConsolidatedProfile{
		StudentID:          studentID,
		Grade:              grade,
		ConsolidatedFields: fields,
		Provider:           s.narrator.Backend(),
		GeneratedAt:        s.now(),
	}
	row := store.Table{Header: models.ProfileColumns, Rows: [][]string{profile.Row()}}

	if err := s.store.Append(ctx, store.TableConsolidatedHistory, row); err != nil {
		return false, fmt.Errorf("append %s: %w", store.TableConsolidatedHistory, err)
	}
	if err := s.store.Upsert(ctx, store.TableConsolidatedLatest, row, models.ProfileKeyColumns); err != nil {
		return false, fmt.Errorf("upsert %s: %w", store.TableConsolidatedLatest, err)
	}

	s.logger.Info("student consolidation complete",
		zap.String("student_id", studentID),
		zap.String("llm_provider", s.narrator.Backend()))
	return true, nil
}
