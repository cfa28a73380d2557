package models

import "strconv"

// SummaryColumns is the persisted column order of the subject summaries
// table.
var SummaryColumns = []string{
	"student_id",
	"grade",
	"subject",
	"performance_summary",
	"improvement_plan",
	"motivation_note",
	"confidence_note",
	"llm_provider",
}

// NarrativeFields is the fixed JSON shape every narrative backend must
// return for a subject-level summary.
type NarrativeFields struct {
	PerformanceSummary string `json:"performance_summary"`
	ImprovementPlan    string `json:"improvement_plan"`
	MotivationNote     string `json:"motivation_note"`
	ConfidenceNote     string `json:"confidence_note"`
}

// SubjectSummary is a persisted narrative for one (student, subject) pair,
// possibly the canned fallback when the backend kept failing.
type SubjectSummary struct {
	StudentID string `json:"student_id"`
	Grade     int    `json:"grade"`
	Subject   string `json:"subject"`
	NarrativeFields
	Provider string `json:"llm_provider"`
}

// Row serialises the summary in SummaryColumns order.
func (s SubjectSummary) Row() []string {
	return []string{
		s.StudentID,
		strconv.Itoa(s.Grade),
		s.Subject,
		s.PerformanceSummary,
		s.ImprovementPlan,
		s.MotivationNote,
		s.ConfidenceNote,
		s.Provider,
	}
}

// ParseSubjectSummary reconstructs a summary from a table record.
func ParseSubjectSummary(rec map[string]string) (SubjectSummary, error) {
	grade, err := strconv.Atoi(rec["grade"])
	if err != nil {
		return SubjectSummary{}, err
	}

	return SubjectSummary{
		StudentID: rec["student_id"],
		Grade:     grade,
		Subject:   rec["subject"],
		NarrativeFields: NarrativeFields{
			PerformanceSummary: rec["performance_summary"],
			ImprovementPlan:    rec["improvement_plan"],
			MotivationNote:     rec["motivation_note"],
			ConfidenceNote:     rec["confidence_note"],
		},
		Provider: rec["llm_provider"],
	}, nil
}
