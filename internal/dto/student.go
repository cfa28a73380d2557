// Package dto defines the request and response shapes of the HTTP surface.
package dto

// StudentSummaryRequest asks for a student's cached consolidated profile.
type StudentSummaryRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// LiveStudentSummaryRequest asks for a fresh consolidation bypassing the
// persisted views, optionally on a different narrative backend.
type LiveStudentSummaryRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	LLMProvider string `json:"llm_provider" validate:"omitempty,oneof=openai deepseek ollama"`
}

// SubjectPerformance is the numeric slice of one subject shown in a profile.
type SubjectPerformance struct {
	Subject         string   `json:"subject"`
	AverageScore    float64  `json:"average_score"`
	LatestScore     float64  `json:"latest_score"`
	Trend           string   `json:"trend"`
	PerformanceBand string   `json:"performance_band"`
	RiskFlag        string   `json:"risk_flag"`
	MockVsRealGap   *float64 `json:"mock_vs_real_gap,omitempty"`
}

// SubjectExplainability carries the audit trail behind a subject narrative.
type SubjectExplainability struct {
	ExplanationSummary  string   `json:"explanation_summary"`
	KeyEvidencePoints   []string `json:"key_evidence_points"`
	ConfidenceInInsight string   `json:"confidence_in_insight"`
}

// SubjectSummaryView is one subject narrative joined with its explainability.
type SubjectSummaryView struct {
	Subject            string                `json:"subject"`
	PerformanceSummary string                `json:"performance_summary"`
	ImprovementPlan    string                `json:"improvement_plan"`
	MotivationNote     string                `json:"motivation_note"`
	ConfidenceNote     string                `json:"confidence_note"`
	LLMProvider        string                `json:"llm_provider"`
	Explainability     SubjectExplainability `json:"explainability"`
}

// StudentProfileResponse is the full cached profile of one student.
// Consolidated fields stay structured when the stored cell held JSON.
type StudentProfileResponse struct {
	StudentID            string               `json:"student_id"`
	Grade                int                  `json:"grade"`
	OverallSummary       interface{}          `json:"overall_summary"`
	KeyStrengths         interface{}          `json:"key_strengths"`
	AreasToImprove       interface{}          `json:"areas_to_improve"`
	RecommendedNextSteps interface{}          `json:"recommended_next_steps"`
	ConfidenceNote       string               `json:"confidence_note"`
	NumericalPerformance []SubjectPerformance `json:"numerical_performance"`
	SubjectSummaries     []SubjectSummaryView `json:"subject_summaries"`
	Mode                 string               `json:"mode"`
	LLMProviderUsed      string               `json:"llm_provider_used"`
}
