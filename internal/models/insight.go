package models

import (
	"strconv"
	"strings"
)

// InsightColumns is the persisted column order of the subject insights table.
var InsightColumns = []string{
	"student_id",
	"grade",
	"subject",
	"primary_issue",
	"secondary_issue",
	"root_cause_category",
	"academic_risk_level",
	"urgency_level",
	"recommended_focus_area",
	"teacher_intervention_needed",
	"explanation_summary",
	"key_evidence_points",
	"confidence_in_insight",
	"summary_signal",
}

// SubjectInsight is the rule-derived, human-auditable insight for one
// (student, subject) pair. No AI is involved in producing it; the narrative
// layer only explains it in prose.
type SubjectInsight struct {
	StudentID                 string   `json:"student_id"`
	Grade                     int      `json:"grade"`
	Subject                   string   `json:"subject"`
	PrimaryIssue              string   `json:"primary_issue"`
	SecondaryIssue            string   `json:"secondary_issue"`
	RootCauseCategory         string   `json:"root_cause_category"`
	AcademicRiskLevel         string   `json:"academic_risk_level"`
	UrgencyLevel              string   `json:"urgency_level"`
	RecommendedFocusArea      string   `json:"recommended_focus_area"`
	TeacherInterventionNeeded bool     `json:"teacher_intervention_needed"`
	ExplanationSummary        string   `json:"explanation_summary"`
	KeyEvidencePoints         []string `json:"key_evidence_points"`
	ConfidenceInInsight       string   `json:"confidence_in_insight"`
	SummarySignal             string   `json:"summary_signal"`
}

// Row serialises the insight in InsightColumns order. Evidence points are
// stored as a bulleted multi-line cell; the boolean becomes yes/no.
func (i SubjectInsight) Row() []string {
	intervention := "no"
	if i.TeacherInterventionNeeded {
		intervention = "yes"
	}

	points := make([]string, len(i.KeyEvidencePoints))
	for n, p := range i.KeyEvidencePoints {
		points[n] = "- " + p
	}

	return []string{
		i.StudentID,
		strconv.Itoa(i.Grade),
		i.Subject,
		i.PrimaryIssue,
		i.SecondaryIssue,
		i.RootCauseCategory,
		i.AcademicRiskLevel,
		i.UrgencyLevel,
		i.RecommendedFocusArea,
		intervention,
		i.ExplanationSummary,
		strings.Join(points, "\n"),
		i.ConfidenceInInsight,
		i.SummarySignal,
	}
}

// ParseSubjectInsight reconstructs an insight from a table record.
func ParseSubjectInsight(rec map[string]string) (SubjectInsight, error) {
	grade, err := strconv.Atoi(rec["grade"])
	if err != nil {
		return SubjectInsight{}, err
	}

	var points []string
	for _, line := range strings.Split(rec["key_evidence_points"], "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			points = append(points, line)
		}
	}

	return SubjectInsight{
		StudentID:                 rec["student_id"],
		Grade:                     grade,
		Subject:                   rec["subject"],
		PrimaryIssue:              rec["primary_issue"],
		SecondaryIssue:            rec["secondary_issue"],
		RootCauseCategory:         rec["root_cause_category"],
		AcademicRiskLevel:         rec["academic_risk_level"],
		UrgencyLevel:              rec["urgency_level"],
		RecommendedFocusArea:      rec["recommended_focus_area"],
		TeacherInterventionNeeded: rec["teacher_intervention_needed"] == "yes",
		ExplanationSummary:        rec["explanation_summary"],
		KeyEvidencePoints:         points,
		ConfidenceInInsight:       rec["confidence_in_insight"],
		SummarySignal:             rec["summary_signal"],
	}, nil
}
