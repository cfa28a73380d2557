package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ProfileColumns is the persisted column order of both consolidated views
// (history and latest).
var ProfileColumns = []string{
	"student_id",
	"grade",
	"overall_summary",
	"key_strengths",
	"areas_to_improve",
	"recommended_next_steps",
	"confidence_note",
	"llm_provider",
	"generated_at",
}

// ProfileKeyColumns identifies a row in the latest view.
var ProfileKeyColumns = []string{"student_id"}

// ConsolidatedFields is the JSON shape returned by the consolidation backend.
// Backends are asked for strings but occasionally return lists or nested
// objects; those survive as structured values here and are flattened to
// storage-safe scalars on write.
type ConsolidatedFields struct {
	OverallSummary       interface{} `json:"overall_summary"`
	KeyStrengths         interface{} `json:"key_strengths"`
	AreasToImprove       interface{} `json:"areas_to_improve"`
	RecommendedNextSteps interface{} `json:"recommended_next_steps"`
	ConfidenceNote       string      `json:"confidence_note"`
}

// ConsolidatedProfile is the cross-subject synthesis for one student.
type ConsolidatedProfile struct {
	StudentID string `json:"student_id"`
	Grade     int    `json:"grade"`
	ConsolidatedFields
	Provider    string    `json:"llm_provider"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Row serialises the profile in ProfileColumns order, normalising structured
// values to storage-safe scalar cells.
func (p ConsolidatedProfile) Row() []string {
	return []string{
		p.StudentID,
		strconv.Itoa(p.Grade),
		NormalizeCell(p.OverallSummary),
		NormalizeCell(p.KeyStrengths),
		NormalizeCell(p.AreasToImprove),
		NormalizeCell(p.RecommendedNextSteps),
		p.ConfidenceNote,
		p.Provider,
		p.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

// ParseConsolidatedProfile reconstructs a profile from a table record,
// reviving JSON-shaped cells into structured values.
func ParseConsolidatedProfile(rec map[string]string) (ConsolidatedProfile, error) {
	grade, err := strconv.Atoi(rec["grade"])
	if err != nil {
		return ConsolidatedProfile{}, err
	}

	generatedAt, _ := time.Parse(time.RFC3339, rec["generated_at"])

	return ConsolidatedProfile{
		StudentID: rec["student_id"],
		Grade:     grade,
		ConsolidatedFields: ConsolidatedFields{
			OverallSummary:       ReviveCell(rec["overall_summary"]),
			KeyStrengths:         ReviveCell(rec["key_strengths"]),
			AreasToImprove:       ReviveCell(rec["areas_to_improve"]),
			RecommendedNextSteps: ReviveCell(rec["recommended_next_steps"]),
			ConfidenceNote:       rec["confidence_note"],
		},
		Provider:    rec["llm_provider"],
		GeneratedAt: generatedAt,
	}, nil
}

// NormalizeCell flattens a value to a storage-safe scalar: strings pass
// through, nil becomes empty, and lists/objects are serialised to JSON text.
func NormalizeCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// ReviveCell is the inverse of NormalizeCell: cells that look like JSON
// lists or objects are parsed back into structured values, everything else
// stays a plain string.
func ReviveCell(cell string) interface{} {
	trimmed := strings.TrimSpace(cell)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed interface{}
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return cell
}
