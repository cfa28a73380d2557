package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

func mustDate(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func seedValidated(t *testing.T, st store.Store, scores ...models.ValidatedScore) {
	t.Helper()
	table := store.Table{Header: models.ScoreColumns}
	for _, s := range scores {
		table.Rows = append(table.Rows, s.Row())
	}
	require.NoError(t, st.Write(context.Background(), store.TableValidatedResults, table))
}

func validatedScore(studentID, subject, examType string, attempt int, score float64, date string) models.ValidatedScore {
	return models.ValidatedScore{
		StudentID:     studentID,
		Grade:         10,
		Subject:       subject,
		ExamID:        "E" + date,
		ExamType:      examType,
		AttemptNumber: attempt,
		Score:         score,
		MaxScore:      100,
		ExamDate:      mustDate(date),
	}
}

func TestAnalyticsRunTwoAttemptSubject(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	seedValidated(t, st,
		validatedScore("S001", "Math", "mock", 1, 55, "2025-03-01"),
		validatedScore("S001", "Math", "real", 1, 50, "2025-04-01"),
	)

	svc := NewAnalyticsService(st, zap.NewNop())
	count, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	table, err := st.Read(ctx, store.TableSubjectAnalytics)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	a, err := models.ParseSubjectAnalytics(table.Records()[0])
	require.NoError(t, err)
	assert.Equal(t, "S001", a.StudentID)
	assert.Equal(t, 2, a.AttemptCount)
	assert.Equal(t, 52.5, a.AverageScore)
	assert.Equal(t, 50.0, a.LatestScore)
	assert.Equal(t, 52.5, a.RecentAvgScore)
	assert.Equal(t, models.TrendStable, a.Trend)
	assert.Equal(t, models.LevelLow, a.PerformanceBand)
	assert.Equal(t, models.LevelMedium, a.RiskFlag)
	assert.Equal(t, models.LevelLow, a.DataConfidenceLevel)
	require.NotNil(t, a.MockVsRealGap)
	assert.Equal(t, -5.0, *a.MockVsRealGap)
}

func TestAnalyticsRunGroupsPerStudentGradeSubject(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	seedValidated(t, st,
		validatedScore("S001", "Math", "mock", 1, 55, "2025-03-01"),
		validatedScore("S001", "Physics", "mock", 1, 80, "2025-03-01"),
		validatedScore("S002", "Math", "mock", 1, 90, "2025-03-01"),
	)

	svc := NewAnalyticsService(st, zap.NewNop())
	count, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	table, err := st.Read(ctx, store.TableSubjectAnalytics)
	require.NoError(t, err)

	// groups emitted in sorted (student_id, grade, subject) order
	var keys [][2]string
	for _, rec := range table.Records() {
		keys = append(keys, [2]string{rec["student_id"], rec["subject"]})
	}
	assert.Equal(t, [][2]string{
		{"S001", "Math"},
		{"S001", "Physics"},
		{"S002", "Math"},
	}, keys)
}

func TestAnalyticsChronologicalOrderDrivesTrend(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	// Stored out of date order on purpose; trend must follow exam_date.
	seedValidated(t, st,
		validatedScore("S001", "Math", "mock", 2, 80, "2025-04-01"),
		validatedScore("S001", "Math", "mock", 1, 50, "2025-03-01"),
	)

	svc := NewAnalyticsService(st, zap.NewNop())
	_, err := svc.Run(ctx)
	require.NoError(t, err)

	table, err := st.Read(ctx, store.TableSubjectAnalytics)
	require.NoError(t, err)
	a, err := models.ParseSubjectAnalytics(table.Records()[0])
	require.NoError(t, err)
	assert.Equal(t, models.TrendImproving, a.Trend)
	assert.Equal(t, 80.0, a.LatestScore)
}

func TestAnalyticsRunEmptyInput(t *testing.T) {
	svc := NewAnalyticsService(store.NewMemoryStore(), zap.NewNop())

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEmptyResult)
}

func TestComputeSkipsUnparseableRows(t *testing.T) {
	table := store.Table{
		Header: models.ScoreColumns,
		Rows: [][]string{
			{"S001", "10", "Math", "E1", "mock", "1", "not-a-number", "100", "2025-03-01"},
		},
	}
	_, err := Compute(table)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEmptyResult)
}
