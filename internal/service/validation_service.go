package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// maxSurfacedRowErrors caps how many row errors a batch failure reports.
const maxSurfacedRowErrors = 5

// acceptedDateLayouts are the exam date formats the coercion step accepts.
// Layouts without a zone are treated as UTC; zoned values are converted.
var acceptedDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ValidationService is the first pipeline stage: it turns the raw score
// table into the validated table or fails the whole batch. There is no
// partial acceptance; downstream stages must never see a rejected dataset.
type ValidationService struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewValidationService constructs the stage.
func NewValidationService(st store.Store, logger *zap.Logger) *ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationService{store: st, logger: logger, now: time.Now}
}

// Run reads the raw table, validates it, and writes the validated table in
// deterministic order. It returns the number of validated rows.
func (s *ValidationService) Run(ctx context.Context) (int, error) {
	raw, err := s.store.Read(ctx, store.TableRawScores)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", store.TableRawScores, err)
	}
	if raw.Empty() {
		return 0, appErrors.Clone(appErrors.ErrEmptyResult, "raw_student_scores table is empty")
	}

	validated, err := s.Validate(raw)
	if err != nil {
		return 0, err
	}

	out := store.Table{Header: models.ScoreColumns}
	for _, v := range validated {
		out.Rows = append(out.Rows, v.Row())
	}
	if err := s.store.Write(ctx, store.TableValidatedResults, out); err != nil {
		return 0, fmt.Errorf("write %s: %w", store.TableValidatedResults, err)
	}

	s.logger.Info("validation complete", zap.Int("rows_validated", len(validated)))
	return len(validated), nil
}

// Validate applies the full batch contract to an in-memory raw table:
// schema enforcement, type coercion, fixed-order row validation, uniqueness,
// and deterministic output ordering.
func (s *ValidationService) Validate(raw store.Table) ([]models.ValidatedScore, error) {
	if err := checkSchema(raw.Header); err != nil {
		return nil, err
	}

	records := raw.Records()
	rows := make([]coercedRow, len(records))
	for i, rec := range records {
		rows[i] = coerceRow(rec)
	}

	nowUTC := s.now().UTC()
	var rowErrors []models.RowError
	for i, row := range rows {
		if msg := validateRow(row, nowUTC); msg != "" {
			rowErrors = append(rowErrors, models.RowError{
				RowIndex:  i,
				StudentID: row.studentID,
				Message:   msg,
			})
		}
	}
	if len(rowErrors) > 0 {
		sample := rowErrors
		if len(sample) > maxSurfacedRowErrors {
			sample = sample[:maxSurfacedRowErrors]
		}
		parts := make([]string, len(sample))
		for i, re := range sample {
			parts[i] = fmt.Sprintf("row %d (student_id=%s): %s", re.RowIndex, re.StudentID, re.Message)
		}
		return nil, appErrors.Clone(appErrors.ErrRowValidation,
			fmt.Sprintf("row validation failed (%d rows): %s", len(rowErrors), strings.Join(parts, "; ")))
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		key := row.studentID + "\x1f" + row.examID + "\x1f" + strconv.Itoa(row.attemptNumber)
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrUniqueness,
				"duplicate rows detected for (student_id, exam_id, attempt_number)")
		}
		seen[key] = struct{}{}
	}

	validated := make([]models.ValidatedScore, len(rows))
	for i, row := range rows {
		validated[i] = row.toValidated()
	}

	sort.Slice(validated, func(i, j int) bool {
		a, b := validated[i], validated[j]
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		if a.ExamID != b.ExamID {
			return a.ExamID < b.ExamID
		}
		return a.AttemptNumber < b.AttemptNumber
	})

	return validated, nil
}

// coercedRow holds one raw row after type coercion. Unparseable numeric and
// date fields become sentinels (ok flags) rather than failures; row
// validation turns them into errors.
type coercedRow struct {
	studentID string
	subject   string
	examID    string
	examType  string

	grade   int
	gradeOK bool

	attemptNumber   int
	attemptNumberOK bool

	score   float64
	scoreOK bool

	maxScore   float64
	maxScoreOK bool

	examDate   time.Time
	examDateOK bool
}

func coerceRow(rec map[string]string) coercedRow {
	row := coercedRow{
		studentID: strings.TrimSpace(rec["student_id"]),
		subject:   strings.TrimSpace(rec["subject"]),
		examID:    strings.TrimSpace(rec["exam_id"]),
		examType:  strings.TrimSpace(rec["exam_type"]),
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(rec["grade"]), 64); err == nil {
		row.grade, row.gradeOK = int(v), true
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(rec["attempt_number"]), 64); err == nil {
		row.attemptNumber, row.attemptNumberOK = int(v), true
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(rec["score"]), 64); err == nil {
		row.score, row.scoreOK = v, true
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(rec["max_score"]), 64); err == nil {
		row.maxScore, row.maxScoreOK = v, true
	}
	if t, ok := parseExamDate(strings.TrimSpace(rec["exam_date"])); ok {
		row.examDate, row.examDateOK = t, true
	}

	return row
}

// validateRow applies the fixed-order checks and short-circuits on the first
// violation. The order is part of the contract: identity, grade, subject,
// exam type, attempt, max score, score range, exam date.
func validateRow(row coercedRow, nowUTC time.Time) string {
	if row.studentID == "" {
		return "student_id missing or invalid"
	}
	if !row.gradeOK || row.grade < 1 || row.grade > 12 {
		return "grade out of range (1-12)"
	}
	if row.subject == "" {
		return "invalid subject"
	}
	if row.examType != models.ExamTypeMock && row.examType != models.ExamTypeReal {
		return "invalid exam_type"
	}
	if !row.attemptNumberOK || row.attemptNumber < 1 {
		return "attempt_number < 1"
	}
	if !row.maxScoreOK || row.maxScore <= 0 {
		return "max_score must be > 0"
	}
	if !row.scoreOK || row.score < 0 || row.score > row.maxScore {
		return "score outside valid range"
	}
	if !row.examDateOK {
		return "exam_date is invalid or missing"
	}
	if row.examDate.After(nowUTC) {
		return "exam_date is in the future"
	}
	return ""
}

func (row coercedRow) toValidated() models.ValidatedScore {
	return models.ValidatedScore{
		StudentID:     row.studentID,
		Grade:         row.grade,
		Subject:       row.subject,
		ExamID:        row.examID,
		ExamType:      row.examType,
		AttemptNumber: row.attemptNumber,
		Score:         row.score,
		MaxScore:      row.maxScore,
		ExamDate:      row.examDate,
	}
}

// parseExamDate accepts the supported layouts, normalising everything to
// UTC: naive values are interpreted as UTC, zoned values are converted.
func parseExamDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range acceptedDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// checkSchema enforces the exact raw column contract: no missing columns, no
// silent schema drift through extras.
func checkSchema(header []string) error {
	required := make(map[string]struct{}, len(models.ScoreColumns))
	for _, col := range models.ScoreColumns {
		required[col] = struct{}{}
	}

	present := make(map[string]struct{}, len(header))
	var extra []string
	for _, col := range header {
		present[col] = struct{}{}
		if _, ok := required[col]; !ok {
			extra = append(extra, col)
		}
	}

	var missing []string
	for _, col := range models.ScoreColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return appErrors.Clone(appErrors.ErrSchema,
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return appErrors.Clone(appErrors.ErrSchema,
			fmt.Sprintf("unexpected columns found (schema drift): %s", strings.Join(extra, ", ")))
	}
	return nil
}
