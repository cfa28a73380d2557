package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

func TestDerivePrimaryIssueCascade(t *testing.T) {
	tests := []struct {
		name        string
		avg         float64
		trend       string
		wantIssue   string
		wantCause   string
		wantUrgency string
	}{
		{
			"low and declining", 55, models.TrendDeclining,
			"Consistently low and declining performance",
			"Conceptual gaps with poor reinforcement",
			models.LevelHigh,
		},
		{
			"low only", 55, models.TrendStable,
			"Low overall performance",
			"Weak foundational understanding",
			models.LevelMedium,
		},
		{
			"declining only", 75, models.TrendDeclining,
			"Performance regression",
			"Inconsistent preparation or focus",
			models.LevelMedium,
		},
		{
			"healthy", 85, models.TrendImproving,
			"No major academic concern",
			"Healthy learning pattern",
			models.LevelLow,
		},
		{
			"boundary sixty is not low", 60, models.TrendStable,
			"No major academic concern",
			"Healthy learning pattern",
			models.LevelLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue, cause, urgency := DerivePrimaryIssue(tt.avg, tt.trend)
			assert.Equal(t, tt.wantIssue, issue)
			assert.Equal(t, tt.wantCause, cause)
			assert.Equal(t, tt.wantUrgency, urgency)
		})
	}
}

func TestDeriveSecondaryIssue(t *testing.T) {
	gap := func(v float64) *float64 { return &v }

	// volatility wins over pressure
	assert.Equal(t, "Highly inconsistent performance",
		DeriveSecondaryIssue(models.LevelHigh, gap(-10)))
	assert.Equal(t, "Exam pressure affecting real exam performance",
		DeriveSecondaryIssue(models.LevelLow, gap(-6)))
	// boundary: exactly -5 is not pressure
	assert.Equal(t, "None observed", DeriveSecondaryIssue(models.LevelLow, gap(-5)))
	// absent gap never triggers pressure
	assert.Equal(t, "None observed", DeriveSecondaryIssue(models.LevelLow, nil))
}

func TestDeriveFocusArea(t *testing.T) {
	assert.Equal(t, "Immediate concept revision and guided practice", DeriveFocusArea(models.LevelHigh))
	assert.Equal(t, "Structured revision and consistency building", DeriveFocusArea(models.LevelMedium))
	assert.Equal(t, "Maintain current learning approach", DeriveFocusArea(models.LevelLow))
}

func TestBuildEvidenceOrder(t *testing.T) {
	gap := -10.0
	a := models.SubjectAnalytics{
		AverageScore:        52.5,
		PerformanceBand:     models.LevelLow,
		Trend:               models.TrendDeclining,
		VolatilityLevel:     models.LevelHigh,
		MockVsRealGap:       &gap,
		RiskFlag:            models.LevelHigh,
		DataConfidenceLevel: models.LevelMedium,
	}

	evidence := BuildEvidence(a)
	require.Len(t, evidence, 5)
	assert.Equal(t, "Average score is 52.5, classified as low", evidence[0])
	assert.Equal(t, "Score trend is 'declining', indicating learning direction over time", evidence[1])
	assert.Equal(t, "Scores show high volatility, suggesting inconsistency", evidence[2])
	assert.Equal(t, "Mock scores significantly higher than real exam scores, indicating exam pressure", evidence[3])
	assert.Equal(t, "Academic risk flagged as 'high' with medium confidence", evidence[4])
}

func TestBuildEvidenceSkipsConditionalSignals(t *testing.T) {
	a := models.SubjectAnalytics{
		AverageScore:        85,
		PerformanceBand:     models.LevelHigh,
		Trend:               models.TrendImproving,
		VolatilityLevel:     models.LevelLow,
		RiskFlag:            models.LevelLow,
		DataConfidenceLevel: models.LevelHigh,
	}

	evidence := BuildEvidence(a)
	require.Len(t, evidence, 3)
}

func TestDeriveInsightFields(t *testing.T) {
	a := models.SubjectAnalytics{
		StudentID:           "S001",
		Grade:               10,
		Subject:             "Math",
		AverageScore:        52.5,
		Trend:               models.TrendDeclining,
		VolatilityLevel:     models.LevelLow,
		PerformanceBand:     models.LevelLow,
		RiskFlag:            models.LevelHigh,
		DataConfidenceLevel: models.LevelLow,
	}

	insight := DeriveInsight(a)
	assert.Equal(t, models.LevelHigh, insight.UrgencyLevel)
	assert.True(t, insight.TeacherInterventionNeeded)
	assert.Equal(t, insight.PrimaryIssue, insight.ExplanationSummary)
	assert.Equal(t, "low performer with high risk", insight.SummarySignal)
	assert.Equal(t, models.LevelHigh, insight.AcademicRiskLevel)
	assert.Equal(t, models.LevelLow, insight.ConfidenceInInsight)
}

func TestInsightRunWritesTable(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	analytics := models.SubjectAnalytics{
		StudentID:           "S001",
		Grade:               10,
		Subject:             "Math",
		AttemptCount:        2,
		AverageScore:        52.5,
		LatestScore:         50,
		RecentAvgScore:      52.5,
		Trend:               models.TrendStable,
		VolatilityLevel:     models.LevelLow,
		PerformanceBand:     models.LevelLow,
		RiskFlag:            models.LevelMedium,
		DataConfidenceLevel: models.LevelLow,
	}
	require.NoError(t, st.Write(ctx, store.TableSubjectAnalytics, store.Table{
		Header: models.AnalyticsColumns,
		Rows:   [][]string{analytics.Row()},
	}))

	svc := NewInsightService(st, zap.NewNop())
	count, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	table, err := st.Read(ctx, store.TableSubjectInsights)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	insight, err := models.ParseSubjectInsight(table.Records()[0])
	require.NoError(t, err)
	assert.Equal(t, "Low overall performance", insight.PrimaryIssue)
	assert.Equal(t, "None observed", insight.SecondaryIssue)
	assert.False(t, insight.TeacherInterventionNeeded)
	assert.Equal(t, "low performer with medium risk", insight.SummarySignal)
}

func TestInsightRunSchemaCheck(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Write(ctx, store.TableSubjectAnalytics, store.Table{
		Header: []string{"student_id", "grade"},
		Rows:   [][]string{{"S001", "10"}},
	}))

	svc := NewInsightService(st, zap.NewNop())
	_, err := svc.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrSchema)
}

func TestInsightRunEmptyInput(t *testing.T) {
	svc := NewInsightService(store.NewMemoryStore(), zap.NewNop())

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEmptyResult)
}
