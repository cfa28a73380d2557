package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// examPressureGap is the mock-vs-real gap below which real exams are read as
// suffering from pressure.
const examPressureGap = -5.0

// insightInputColumns are the analytics columns this stage depends on.
var insightInputColumns = []string{
	"student_id",
	"grade",
	"subject",
	"average_score",
	"trend",
	"volatility_level",
	"risk_flag",
	"data_confidence_level",
	"performance_band",
	"mock_vs_real_gap",
}

// InsightService is the third pipeline stage: it derives rule-based,
// auditable insights from analytics. Every conclusion it writes is traceable
// to an explicit threshold; nothing here consults a model.
type InsightService struct {
	store  store.Store
	logger *zap.Logger
}

// NewInsightService constructs the stage.
func NewInsightService(st store.Store, logger *zap.Logger) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightService{store: st, logger: logger}
}

// Run reads the analytics table, derives one insight per row, and fully
// overwrites the insights table. It returns the number of insight rows.
func (s *InsightService) Run(ctx context.Context) (int, error) {
	analytics, err := s.store.Read(ctx, store.TableSubjectAnalytics)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", store.TableSubjectAnalytics, err)
	}
	if analytics.Empty() {
		return 0, appErrors.Clone(appErrors.ErrEmptyResult, "subject_analytics table is empty")
	}
	if err := checkInsightInput(analytics.Header); err != nil {
		return 0, err
	}

	students := make(map[string]struct{})
	out := store.Table{Header: models.InsightColumns}
	for _, rec := range analytics.Records() {
		a, err := models.ParseSubjectAnalytics(rec)
		if err != nil {
			// Rows with a corrupt average cannot be classified; drop them
			// instead of poisoning the whole stage.
			continue
		}
		insight := DeriveInsight(a)
		out.Rows = append(out.Rows, insight.Row())
		students[a.StudentID] = struct{}{}
	}

	if len(out.Rows) == 0 {
		return 0, appErrors.Clone(appErrors.ErrEmptyResult, "no insights generated")
	}

	if err := s.store.Write(ctx, store.TableSubjectInsights, out); err != nil {
		return 0, fmt.Errorf("write %s: %w", store.TableSubjectInsights, err)
	}

	s.logger.Info("insights complete",
		zap.Int("students_covered", len(students)),
		zap.Int("insights_generated", len(out.Rows)))
	return len(out.Rows), nil
}

// DeriveInsight classifies one analytics record through the issue cascade and
// attaches the evidence trail that justifies the classification.
func DeriveInsight(a models.SubjectAnalytics) models.SubjectInsight {
	primary, rootCause, urgency := DerivePrimaryIssue(a.AverageScore, a.Trend)
	secondary := DeriveSecondaryIssue(a.VolatilityLevel, a.MockVsRealGap)
	focus := DeriveFocusArea(urgency)

	return models.SubjectInsight{
		StudentID:                 a.StudentID,
		Grade:                     a.Grade,
		Subject:                   a.Subject,
		PrimaryIssue:              primary,
		SecondaryIssue:            secondary,
		RootCauseCategory:         rootCause,
		AcademicRiskLevel:         a.RiskFlag,
		UrgencyLevel:              urgency,
		RecommendedFocusArea:      focus,
		TeacherInterventionNeeded: urgency == models.LevelHigh,
		ExplanationSummary:        primary,
		KeyEvidencePoints:         BuildEvidence(a),
		ConfidenceInInsight:       a.DataConfidenceLevel,
		SummarySignal:             fmt.Sprintf("%s performer with %s risk", a.PerformanceBand, a.RiskFlag),
	}
}

// DerivePrimaryIssue runs the first-match cascade over average score and
// trend, returning the issue, its root cause category, and the urgency.
func DerivePrimaryIssue(avg float64, trend string) (issue, rootCause, urgency string) {
	low := avg < bandFloor
	declining := trend == models.TrendDeclining

	switch {
	case low && declining:
		return "Consistently low and declining performance",
			"Conceptual gaps with poor reinforcement",
			models.LevelHigh
	case low:
		return "Low overall performance",
			"Weak foundational understanding",
			models.LevelMedium
	case declining:
		return "Performance regression",
			"Inconsistent preparation or focus",
			models.LevelMedium
	default:
		return "No major academic concern",
			"Healthy learning pattern",
			models.LevelLow
	}
}

// bandFloor mirrors the low performance band cutoff.
const bandFloor = 60.0

// DeriveSecondaryIssue checks volatility first, then mock-vs-real pressure.
// An absent gap never triggers the pressure branch.
func DeriveSecondaryIssue(volatility string, mockGap *float64) string {
	if volatility == models.LevelHigh {
		return "Highly inconsistent performance"
	}
	if mockGap != nil && *mockGap < examPressureGap {
		return "Exam pressure affecting real exam performance"
	}
	return "None observed"
}

// DeriveFocusArea maps urgency to the recommended focus area.
func DeriveFocusArea(urgency string) string {
	switch urgency {
	case models.LevelHigh:
		return "Immediate concept revision and guided practice"
	case models.LevelMedium:
		return "Structured revision and consistency building"
	default:
		return "Maintain current learning approach"
	}
}

// BuildEvidence assembles the ordered evidence trail: average and band, then
// trend, then the conditional volatility and pressure signals, then risk and
// confidence.
func BuildEvidence(a models.SubjectAnalytics) []string {
	signals := []string{
		fmt.Sprintf("Average score is %s, classified as %s", models.FormatFloat(a.AverageScore), a.PerformanceBand),
		fmt.Sprintf("Score trend is '%s', indicating learning direction over time", a.Trend),
	}

	if a.VolatilityLevel == models.LevelHigh {
		signals = append(signals, "Scores show high volatility, suggesting inconsistency")
	}
	if a.MockVsRealGap != nil && *a.MockVsRealGap < examPressureGap {
		signals = append(signals, "Mock scores significantly higher than real exam scores, indicating exam pressure")
	}

	signals = append(signals,
		fmt.Sprintf("Academic risk flagged as '%s' with %s confidence", a.RiskFlag, a.DataConfidenceLevel))
	return signals
}

func checkInsightInput(header []string) error {
	present := make(map[string]struct{}, len(header))
	for _, col := range header {
		present[col] = struct{}{}
	}

	var missing []string
	for _, col := range insightInputColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return appErrors.Clone(appErrors.ErrSchema,
			fmt.Sprintf("missing required columns in analytics data: %s", strings.Join(missing, ", ")))
	}
	return nil
}
