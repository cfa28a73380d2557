package llm

import (
	"encoding/json"
	"strings"

	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// ParseState names each step of the JSON recovery state machine. Backends
// return free text that should be a JSON object but often is not; recovery
// proceeds through explicit states instead of nested error handling.
type ParseState int

const (
	// StateDirect: the raw text parsed as JSON unchanged.
	StateDirect ParseState = iota
	// StateBraceExtract: the substring between the first '{' and the last '}'
	// parsed after the direct attempt failed.
	StateBraceExtract
	// StateFailed: both attempts failed; callers decide between retry,
	// fallback, or hard error.
	StateFailed
)

func (s ParseState) String() string {
	switch s {
	case StateDirect:
		return "direct"
	case StateBraceExtract:
		return "brace_extract"
	default:
		return "failed"
	}
}

// DecodeObject runs the recovery machine over raw backend output and
// unmarshals the surviving JSON object into dest. The returned state reports
// which step succeeded.
func DecodeObject(raw string, dest interface{}) (ParseState, error) {
	text := stripFences(raw)
	if text == "" {
		return StateFailed, appErrors.Clone(appErrors.ErrNarrativeParse, "backend returned empty output")
	}

	// State 1: direct parse.
	if err := json.Unmarshal([]byte(text), dest); err == nil {
		return StateDirect, nil
	}

	// State 2: brace extraction.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), dest); err == nil {
			return StateBraceExtract, nil
		}
	}

	return StateFailed, appErrors.Clone(appErrors.ErrNarrativeParse, "no JSON object found in backend output")
}

// stripFences removes the markdown code fences backends commonly wrap JSON
// in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}
	return strings.TrimSpace(s)
}
