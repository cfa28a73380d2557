package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/dto"
	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// Profile serving modes.
const (
	ModeCached = "cached"
	ModeLive   = "live"
)

// LiveNarratorFactory builds a consolidation narrator for a caller-chosen
// provider. Implemented on top of llm.NewNamed in the composition root.
type LiveNarratorFactory func(provider string) (ConsolidationNarrator, error)

// StudentService assembles student profiles for the HTTP surface: cached
// profiles from the persisted pipeline outputs, live profiles through a fresh
// consolidation that bypasses persistence.
type StudentService struct {
	store        store.Store
	cache        *CacheService
	liveNarrator LiveNarratorFactory
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewStudentService constructs the service. cache and liveNarrator may be nil
// when the respective surface is disabled.
func NewStudentService(st store.Store, cache *CacheService, liveNarrator LiveNarratorFactory, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{store: st, cache: cache, liveNarrator: liveNarrator, validator: validate, logger: logger}
}

func profileCacheKey(studentID string) string {
	return "student:profile:" + studentID
}

// Profile returns the cached consolidated profile for a student, joined with
// analytics, summaries and explainability. The second return reports a cache
// hit.
func (s *StudentService) Profile(ctx context.Context, req dto.StudentSummaryRequest) (dto.StudentProfileResponse, bool, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentProfileResponse{}, false, appErrors.Clone(appErrors.ErrValidation, "student_id required")
	}
	studentID := req.StudentID

	var cached dto.StudentProfileResponse
	if hit, err := s.cache.Get(ctx, profileCacheKey(studentID), &cached); err == nil && hit {
		return cached, true, nil
	}

	profile, err := s.assembleProfile(ctx, studentID)
	if err != nil {
		return dto.StudentProfileResponse{}, false, err
	}

	if err := s.cache.Set(ctx, profileCacheKey(studentID), profile, 0); err != nil {
		s.logger.Warn("profile cache write failed", zap.String("student_id", studentID), zap.Error(err))
	}
	return profile, false, nil
}

// Live runs a fresh consolidation for a student on the requested provider and
// returns the result without persisting it.
func (s *StudentService) Live(ctx context.Context, req dto.LiveStudentSummaryRequest) (dto.StudentProfileResponse, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.LLMProvider = strings.ToLower(strings.TrimSpace(req.LLMProvider))
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentProfileResponse{}, appErrors.Clone(appErrors.ErrValidation, "student_id required")
	}
	studentID := req.StudentID

	if s.liveNarrator == nil {
		return dto.StudentProfileResponse{}, appErrors.Clone(appErrors.ErrUnsupportedBackend, "live consolidation is disabled")
	}
	narrator, err := s.liveNarrator(req.LLMProvider)
	if err != nil {
		return dto.StudentProfileResponse{}, err
	}

	analytics, summaries, err := s.readStudentInputs(ctx, studentID)
	if err != nil {
		return dto.StudentProfileResponse{}, err
	}
	if len(analytics) == 0 || len(summaries) == 0 {
		return dto.StudentProfileResponse{}, appErrors.Clone(appErrors.ErrNotFound,
			fmt.Sprintf("no data found for student_id=%s", studentID))
	}

	grade := analytics[0].Grade
	fields, err := narrator.GenerateConsolidated(ctx, studentID, grade, analytics, summaries)
	if err != nil {
		return dto.StudentProfileResponse{}, err
	}

	return dto.StudentProfileResponse{
		StudentID:            studentID,
		Grade:                grade,
		OverallSummary:       fields.OverallSummary,
		KeyStrengths:         fields.KeyStrengths,
		AreasToImprove:       fields.AreasToImprove,
		RecommendedNextSteps: fields.RecommendedNextSteps,
		ConfidenceNote:       fields.ConfidenceNote,
		NumericalPerformance: performanceView(analytics),
		Mode:                 ModeLive,
		LLMProviderUsed:      narrator.Backend(),
	}, nil
}

// InvalidateProfiles drops every cached profile. Called after a pipeline run
// rewrites the tables the profiles are assembled from.
func (s *StudentService) InvalidateProfiles(ctx context.Context) error {
	return s.cache.Invalidate(ctx, "student:profile:*")
}

func (s *StudentService) assembleProfile(ctx context.Context, studentID string) (dto.StudentProfileResponse, error) {
	analytics, summaries, err := s.readStudentInputs(ctx, studentID)
	if err != nil {
		return dto.StudentProfileResponse{}, err
	}

	insightsTable, err := s.store.Read(ctx, store.TableSubjectInsights)
	if err != nil {
		return dto.StudentProfileResponse{}, fmt.Errorf("read %s: %w", store.TableSubjectInsights, err)
	}
	latestTable, err := s.store.Read(ctx, store.TableConsolidatedLatest)
	if err != nil {
		return dto.StudentProfileResponse{}, fmt.Errorf("read %s: %w", store.TableConsolidatedLatest, err)
	}

	var latest *models.ConsolidatedProfile
	for _, rec := range latestTable.Records() {
		if rec["student_id"] != studentID {
			continue
		}
		p, err := models.ParseConsolidatedProfile(rec)
		if err != nil {
			continue
		}
		latest = &p
		break
	}

	if len(analytics) == 0 || len(summaries) == 0 || latest == nil {
		return dto.StudentProfileResponse{}, appErrors.Clone(appErrors.ErrNotFound,
			fmt.Sprintf("no cached data found for student_id=%s", studentID))
	}

	explainability := make(map[string]dto.SubjectExplainability)
	for _, rec := range insightsTable.Records() {
		if rec["student_id"] != studentID {
			continue
		}
		insight, err := models.ParseSubjectInsight(rec)
		if err != nil {
			continue
		}
		explainability[insight.Subject] = dto.SubjectExplainability{
			ExplanationSummary:  insight.ExplanationSummary,
			KeyEvidencePoints:   insight.KeyEvidencePoints,
			ConfidenceInInsight: insight.ConfidenceInInsight,
		}
	}

	views := make([]dto.SubjectSummaryView, 0, len(summaries))
	for _, sm := range summaries {
		views = append(views, dto.SubjectSummaryView{
			Subject:            sm.Subject,
			PerformanceSummary: sm.PerformanceSummary,
			ImprovementPlan:    sm.ImprovementPlan,
			MotivationNote:     sm.MotivationNote,
			ConfidenceNote:     sm.ConfidenceNote,
			LLMProvider:        sm.Provider,
			Explainability:     explainability[sm.Subject],
		})
	}

	return dto.StudentProfileResponse{
		StudentID:            studentID,
		Grade:                latest.Grade,
		OverallSummary:       latest.OverallSummary,
		KeyStrengths:         latest.KeyStrengths,
		AreasToImprove:       latest.AreasToImprove,
		RecommendedNextSteps: latest.RecommendedNextSteps,
		ConfidenceNote:       latest.ConfidenceNote,
		NumericalPerformance: performanceView(analytics),
		SubjectSummaries:     views,
		Mode:                 ModeCached,
		LLMProviderUsed:      latest.Provider,
	}, nil
}

func (s *StudentService) readStudentInputs(ctx context.Context, studentID string) ([]models.SubjectAnalytics, []models.SubjectSummary, error) {
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
		if rec["student_id"] != studentID {
			continue
		}
		a, err := models.ParseSubjectAnalytics(rec)
		if err != nil {
			continue
		}
		analytics = append(analytics, a)
	}

	var summaries []models.SubjectSummary
	for _, rec := range summariesTable.Records() {
		if rec["student_id"] != studentID {
			continue
		}
		sm, err := models.ParseSubjectSummary(rec)
		if err != nil {
			continue
		}
		summaries = append(summaries, sm)
	}

	return analytics, summaries, nil
}

// performanceView projects analytics rows into the numeric profile slice,
// sorted by subject.
func performanceView(analytics []models.SubjectAnalytics) []dto.SubjectPerformance {
	out := make([]dto.SubjectPerformance, 0, len(analytics))
	for _, a := range analytics {
		out = append(out, dto.SubjectPerformance{
			Subject:         a.Subject,
			AverageScore:    a.AverageScore,
			LatestScore:     a.LatestScore,
			Trend:           a.Trend,
			PerformanceBand: a.PerformanceBand,
			RiskFlag:        a.RiskFlag,
			MockVsRealGap:   a.MockVsRealGap,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}
