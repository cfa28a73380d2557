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

type stubSubjectNarrator struct {
	calls []models.SubjectInsight
}

func (s *stubSubjectNarrator) Backend() string { return "stub" }

func (s *stubSubjectNarrator) GenerateSubject(_ context.Context, insight models.SubjectInsight) models.NarrativeFields {
	s.calls = append(s.calls, insight)
	return models.NarrativeFields{
		PerformanceSummary: "summary for " + insight.Subject,
		ImprovementPlan:    "plan",
		MotivationNote:     "note",
		ConfidenceNote:     models.LevelMedium,
	}
}

func seedInsights(t *testing.T, st store.Store, insights ...models.SubjectInsight) {
	t.Helper()
	table := store.Table{Header: models.InsightColumns}
	for _, i := range insights {
		table.Rows = append(table.Rows, i.Row())
	}
	require.NoError(t, st.Write(context.Background(), store.TableSubjectInsights, table))
}

func testInsight(studentID, subject string) models.SubjectInsight {
	return models.SubjectInsight{
		StudentID:           studentID,
		Grade:               10,
		Subject:             subject,
		PrimaryIssue:        "No major academic concern",
		SecondaryIssue:      "None observed",
		RootCauseCategory:   "Healthy learning pattern",
		AcademicRiskLevel:   models.LevelLow,
		UrgencyLevel:        models.LevelLow,
		ExplanationSummary:  "No major academic concern",
		ConfidenceInInsight: models.LevelMedium,
		SummarySignal:       "high performer with low risk",
	}
}

func TestNarrativeRunWritesSummaries(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	seedInsights(t, st, testInsight("S001", "Math"), testInsight("S001", "Physics"))

	narrator := &stubSubjectNarrator{}
	svc := NewNarrativeService(st, narrator, 20, zap.NewNop())

	count, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, narrator.calls, 2)

	table, err := st.Read(ctx, store.TableSubjectSummaries)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	summary, err := models.ParseSubjectSummary(table.Records()[0])
	require.NoError(t, err)
	assert.Equal(t, "S001", summary.StudentID)
	assert.Equal(t, "summary for Math", summary.PerformanceSummary)
	assert.Equal(t, "stub", summary.Provider)
}

func TestNarrativeRunHonorsRowCap(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	seedInsights(t, st,
		testInsight("S001", "Math"),
		testInsight("S001", "Physics"),
		testInsight("S002", "Math"),
	)

	narrator := &stubSubjectNarrator{}
	svc := NewNarrativeService(st, narrator, 2, zap.NewNop())

	count, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, narrator.calls, 2)
}

func TestNarrativeRunZeroCapDisablesLimit(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	seedInsights(t, st, testInsight("S001", "Math"), testInsight("S002", "Math"))

	narrator := &stubSubjectNarrator{}
	svc := NewNarrativeService(st, narrator, 0, zap.NewNop())

	count, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNarrativeRunEmptyInput(t *testing.T) {
	svc := NewNarrativeService(store.NewMemoryStore(), &stubSubjectNarrator{}, 20, zap.NewNop())

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEmptyResult)
}

func TestNarrativeRunOverwritesPreviousSummaries(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	stale := models.SubjectSummary{StudentID: "OLD", Grade: 9, Subject: "History"}
	require.NoError(t, st.Write(ctx, store.TableSubjectSummaries, store.Table{
		Header: models.SummaryColumns,
		Rows:   [][]string{stale.Row()},
	}))

	seedInsights(t, st, testInsight("S001", "Math"))
	svc := NewNarrativeService(st, &stubSubjectNarrator{}, 20, zap.NewNop())

	_, err := svc.Run(ctx)
	require.NoError(t, err)

	table, err := st.Read(ctx, store.TableSubjectSummaries)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "S001", table.Rows[0][0])
}
