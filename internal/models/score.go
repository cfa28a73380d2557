package models

import (
	"strconv"
	"time"
)

// Exam type values accepted in raw score rows.
const (
	ExamTypeMock = "mock"
	ExamTypeReal = "real"
)

// examDateLayout is the storage format for validated exam dates.
const examDateLayout = "2006-01-02"

// ScoreColumns is the schema contract for both the raw and the validated
// score tables. Order matters: it is the persisted column order.
var ScoreColumns = []string{
	"student_id",
	"grade",
	"subject",
	"exam_id",
	"exam_type",
	"attempt_number",
	"score",
	"max_score",
	"exam_date",
}

// ValidatedScore is one exam attempt after type coercion and validation.
// Immutable once written to the validated table.
type ValidatedScore struct {
	StudentID     string    `json:"student_id"`
	Grade         int       `json:"grade"`
	Subject       string    `json:"subject"`
	ExamID        string    `json:"exam_id"`
	ExamType      string    `json:"exam_type"`
	AttemptNumber int       `json:"attempt_number"`
	Score         float64   `json:"score"`
	MaxScore      float64   `json:"max_score"`
	ExamDate      time.Time `json:"exam_date"`
}

// Row serialises the score in ScoreColumns order. Dates are normalised to the
// YYYY-MM-DD storage form.
func (s ValidatedScore) Row() []string {
	return []string{
		s.StudentID,
		strconv.Itoa(s.Grade),
		s.Subject,
		s.ExamID,
		s.ExamType,
		strconv.Itoa(s.AttemptNumber),
		FormatFloat(s.Score),
		FormatFloat(s.MaxScore),
		s.ExamDate.Format(examDateLayout),
	}
}

// ParseValidatedScore reconstructs a score from a validated-table record.
func ParseValidatedScore(rec map[string]string) (ValidatedScore, error) {
	grade, err := strconv.Atoi(rec["grade"])
	if err != nil {
		return ValidatedScore{}, err
	}
	attempt, err := strconv.Atoi(rec["attempt_number"])
	if err != nil {
		return ValidatedScore{}, err
	}
	score, err := strconv.ParseFloat(rec["score"], 64)
	if err != nil {
		return ValidatedScore{}, err
	}
	maxScore, err := strconv.ParseFloat(rec["max_score"], 64)
	if err != nil {
		return ValidatedScore{}, err
	}
	examDate, err := time.ParseInLocation(examDateLayout, rec["exam_date"], time.UTC)
	if err != nil {
		return ValidatedScore{}, err
	}

	return ValidatedScore{
		StudentID:     rec["student_id"],
		Grade:         grade,
		Subject:       rec["subject"],
		ExamID:        rec["exam_id"],
		ExamType:      rec["exam_type"],
		AttemptNumber: attempt,
		Score:         score,
		MaxScore:      maxScore,
		ExamDate:      examDate,
	}, nil
}

// RowError records a single row validation failure. Collected, never silently
// dropped.
type RowError struct {
	RowIndex  int    `json:"row_index"`
	StudentID string `json:"student_id"`
	Message   string `json:"error"`
}

// FormatFloat renders a float the way the tables store numbers: shortest
// representation that round-trips ("52.5", not "52.50").
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
