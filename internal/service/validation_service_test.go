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

func rawScoreTable(rows ...[]string) store.Table {
	return store.Table{Header: models.ScoreColumns, Rows: rows}
}

func rawRow(studentID, grade, subject, examID, examType, attempt, score, maxScore, date string) []string {
	return []string{studentID, grade, subject, examID, examType, attempt, score, maxScore, date}
}

func TestValidationRunPersistsSortedRows(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Write(ctx, store.TableRawScores, rawScoreTable(
		rawRow("S002", "10", "Math", "E1", "mock", "1", "70", "100", "2025-03-01"),
		rawRow("S001", "10", "Math", "E2", "real", "1", "50", "100", "2025-04-01"),
		rawRow("S001", "10", "Math", "E1", "mock", "2", "58", "100", "2025-03-15"),
		rawRow("S001", "10", "Math", "E1", "mock", "1", "55", "100", "2025-03-01"),
	)))

	svc := NewValidationService(st, zap.NewNop())
	count, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	validated, err := st.Read(ctx, store.TableValidatedResults)
	require.NoError(t, err)
	assert.Equal(t, models.ScoreColumns, validated.Header)
	require.Len(t, validated.Rows, 4)

	// deterministic (student_id, exam_id, attempt_number) order
	order := make([][3]string, len(validated.Rows))
	for i, row := range validated.Rows {
		order[i] = [3]string{row[0], row[3], row[5]}
	}
	assert.Equal(t, [][3]string{
		{"S001", "E1", "1"},
		{"S001", "E1", "2"},
		{"S001", "E2", "1"},
		{"S002", "E1", "1"},
	}, order)
}

func TestValidationRunEmptyTable(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEmptyResult)
}

func TestValidateSchemaMissingColumn(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	table := store.Table{
		Header: []string{"student_id", "grade"},
		Rows:   [][]string{{"S001", "10"}},
	}
	_, err := svc.Validate(table)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrSchema)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestValidateSchemaExtraColumn(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	table := rawScoreTable(rawRow("S001", "10", "Math", "E1", "mock", "1", "55", "100", "2025-03-01"))
	table.Header = append(append([]string(nil), models.ScoreColumns...), "surprise")

	_, err := svc.Validate(table)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrSchema)
	assert.Contains(t, err.Error(), "schema drift")
	assert.Contains(t, err.Error(), "surprise")
}

func TestValidateRowErrorsFailWholeBatch(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	table := rawScoreTable(
		rawRow("S001", "10", "Math", "E1", "mock", "1", "55", "100", "2025-03-01"),
		rawRow("S002", "13", "Math", "E1", "mock", "1", "55", "100", "2025-03-01"),
	)
	_, err := svc.Validate(table)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRowValidation)
	assert.Contains(t, err.Error(), "grade out of range")
	assert.Contains(t, err.Error(), "student_id=S002")
}

func TestValidateSurfacesAtMostFiveRowErrors(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	var rows [][]string
	for i := 0; i < 7; i++ {
		rows = append(rows, rawRow("", "10", "Math", "E1", "mock", "1", "55", "100", "2025-03-01"))
	}
	_, err := svc.Validate(rawScoreTable(rows...))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(7 rows)")
	assert.Equal(t, 5, countOccurrences(err.Error(), "student_id missing or invalid"))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}

func TestValidateRowErrorOrder(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want string
	}{
		{"missing student", rawRow("", "13", "", "E1", "bogus", "0", "-1", "0", ""), "student_id missing or invalid"},
		{"grade checked before subject", rawRow("S001", "0", "", "E1", "bogus", "0", "-1", "0", ""), "grade out of range (1-12)"},
		{"subject checked before exam type", rawRow("S001", "10", "", "E1", "bogus", "0", "-1", "0", ""), "invalid subject"},
		{"exam type checked before attempt", rawRow("S001", "10", "Math", "E1", "bogus", "0", "-1", "0", ""), "invalid exam_type"},
		{"attempt checked before max score", rawRow("S001", "10", "Math", "E1", "mock", "0", "-1", "0", ""), "attempt_number < 1"},
		{"max score checked before score", rawRow("S001", "10", "Math", "E1", "mock", "1", "-1", "0", ""), "max_score must be > 0"},
		{"score checked before date", rawRow("S001", "10", "Math", "E1", "mock", "1", "-1", "100", ""), "score outside valid range"},
		{"score above max", rawRow("S001", "10", "Math", "E1", "mock", "1", "101", "100", "2025-03-01"), "score outside valid range"},
		{"bad date", rawRow("S001", "10", "Math", "E1", "mock", "1", "55", "100", "not-a-date"), "exam_date is invalid or missing"},
		{"future date", rawRow("S001", "10", "Math", "E1", "mock", "1", "55", "100", "2099-01-01"), "exam_date is in the future"},
	}

	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(rawScoreTable(tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateDuplicateAttemptRejectsBatch(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	table := rawScoreTable(
		rawRow("S001", "10", "Math", "E1", "mock", "1", "55", "100", "2025-03-01"),
		rawRow("S001", "10", "Math", "E1", "mock", "1", "60", "100", "2025-03-02"),
		rawRow("S002", "10", "Math", "E1", "mock", "1", "70", "100", "2025-03-01"),
	)
	_, err := svc.Validate(table)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUniqueness)
}

func TestValidateAcceptsBoundaryValues(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	table := rawScoreTable(
		rawRow("S001", "1", "Math", "E1", "mock", "1", "0", "100", "2025-03-01"),
		rawRow("S001", "12", "Math", "E2", "real", "1", "100", "100", "2025-03-01T10:00:00Z"),
	)
	validated, err := svc.Validate(table)
	require.NoError(t, err)
	require.Len(t, validated, 2)
	assert.Equal(t, 0.0, validated[0].Score)
	assert.Equal(t, 100.0, validated[1].Score)
}

func TestValidateCoercesFloatStrings(t *testing.T) {
	svc := NewValidationService(store.NewMemoryStore(), zap.NewNop())

	table := rawScoreTable(rawRow("S001", "10.0", "Math", "E1", "mock", "1.0", "55.5", "100.0", "2025-03-01"))
	validated, err := svc.Validate(table)
	require.NoError(t, err)
	require.Len(t, validated, 1)
	assert.Equal(t, 10, validated[0].Grade)
	assert.Equal(t, 1, validated[0].AttemptNumber)
	assert.Equal(t, 55.5, validated[0].Score)
}
