package models

import "strconv"

// Trend values.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// Level values shared by volatility, bands, risk, and confidence.
const (
	LevelLow     = "low"
	LevelMedium  = "medium"
	LevelHigh    = "high"
	LevelUnknown = "unknown"
)

// AnalyticsColumns is the persisted column order of the subject analytics
// table.
var AnalyticsColumns = []string{
	"student_id",
	"grade",
	"subject",
	"attempt_count",
	"average_score",
	"latest_score",
	"recent_avg_score",
	"trend",
	"improvement_velocity",
	"consistency_score",
	"volatility_level",
	"mock_vs_real_gap",
	"performance_band",
	"risk_flag",
	"data_confidence_level",
}

// SubjectAnalytics is the derived per-(student, grade, subject) metrics
// record. Recomputed wholesale each pipeline run.
type SubjectAnalytics struct {
	StudentID           string   `json:"student_id"`
	Grade               int      `json:"grade"`
	Subject             string   `json:"subject"`
	AttemptCount        int      `json:"attempt_count"`
	AverageScore        float64  `json:"average_score"`
	LatestScore         float64  `json:"latest_score"`
	RecentAvgScore      float64  `json:"recent_avg_score"`
	Trend               string   `json:"trend"`
	ImprovementVelocity float64  `json:"improvement_velocity"`
	ConsistencyScore    float64  `json:"consistency_score"`
	VolatilityLevel     string   `json:"volatility_level"`
	MockVsRealGap       *float64 `json:"mock_vs_real_gap"`
	PerformanceBand     string   `json:"performance_band"`
	RiskFlag            string   `json:"risk_flag"`
	DataConfidenceLevel string   `json:"data_confidence_level"`
}

// Row serialises the record in AnalyticsColumns order. A nil mock/real gap is
// stored as an empty cell.
func (a SubjectAnalytics) Row() []string {
	gap := ""
	if a.MockVsRealGap != nil {
		gap = FormatFloat(*a.MockVsRealGap)
	}
	return []string{
		a.StudentID,
		strconv.Itoa(a.Grade),
		a.Subject,
		strconv.Itoa(a.AttemptCount),
		FormatFloat(a.AverageScore),
		FormatFloat(a.LatestScore),
		FormatFloat(a.RecentAvgScore),
		a.Trend,
		FormatFloat(a.ImprovementVelocity),
		FormatFloat(a.ConsistencyScore),
		a.VolatilityLevel,
		gap,
		a.PerformanceBand,
		a.RiskFlag,
		a.DataConfidenceLevel,
	}
}

// ParseSubjectAnalytics reconstructs an analytics record from a table record.
func ParseSubjectAnalytics(rec map[string]string) (SubjectAnalytics, error) {
	grade, err := strconv.Atoi(rec["grade"])
	if err != nil {
		return SubjectAnalytics{}, err
	}
	attempts, err := strconv.Atoi(rec["attempt_count"])
	if err != nil {
		return SubjectAnalytics{}, err
	}
	avg, err := strconv.ParseFloat(rec["average_score"], 64)
	if err != nil {
		return SubjectAnalytics{}, err
	}
	latest, err := strconv.ParseFloat(rec["latest_score"], 64)
	if err != nil {
		return SubjectAnalytics{}, err
	}
	recent, err := strconv.ParseFloat(rec["recent_avg_score"], 64)
	if err != nil {
		return SubjectAnalytics{}, err
	}
	velocity, err := strconv.ParseFloat(rec["improvement_velocity"], 64)
	if err != nil {
		return SubjectAnalytics{}, err
	}
	consistency, err := strconv.ParseFloat(rec["consistency_score"], 64)
	if err != nil {
		return SubjectAnalytics{}, err
	}

	var gap *float64
	if raw := rec["mock_vs_real_gap"]; raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return SubjectAnalytics{}, err
		}
		gap = &v
	}

	return SubjectAnalytics{
		StudentID:           rec["student_id"],
		Grade:               grade,
		Subject:             rec["subject"],
		AttemptCount:        attempts,
		AverageScore:        avg,
		LatestScore:         latest,
		RecentAvgScore:      recent,
		Trend:               rec["trend"],
		ImprovementVelocity: velocity,
		ConsistencyScore:    consistency,
		VolatilityLevel:     rec["volatility_level"],
		MockVsRealGap:       gap,
		PerformanceBand:     rec["performance_band"],
		RiskFlag:            rec["risk_flag"],
		DataConfidenceLevel: rec["data_confidence_level"],
	}, nil
}
