// Package metrics holds the pure score-series computations behind subject
// analytics. All thresholds are fixed calibration constants carried over from
// the observed system behaviour; do not reparameterize them.
package metrics

import (
	"math"

	"github.com/edualytics/student-intel/internal/models"
)

const (
	// trendDelta is the minimum last-first score difference that counts as a
	// direction rather than noise.
	trendDelta = 5.0

	// Volatility cutoffs on population standard deviation.
	volatilityLowMax    = 5.0
	volatilityMediumMax = 10.0

	// Performance band cutoffs on average score.
	bandLowMax    = 60.0
	bandMediumMax = 80.0

	// Confidence cutoffs on attempt count.
	confidenceHighMin   = 5
	confidenceMediumMin = 3

	// recentWindow is the default number of latest attempts in the recent
	// average.
	recentWindow = 2
)

// Trend classifies the direction of an ordered (chronological) score series
// by comparing its last and first values.
func Trend(scores []float64) string {
	if len(scores) < 2 {
		return models.TrendInsufficientData
	}

	diff := scores[len(scores)-1] - scores[0]
	switch {
	case diff > trendDelta:
		return models.TrendImproving
	case diff < -trendDelta:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// Velocity is the per-attempt score change, (last-first)/count, rounded to
// two decimals. Zero for series shorter than two points.
func Velocity(scores []float64) float64 {
	if len(scores) < 2 {
		return 0.0
	}
	return Round2((scores[len(scores)-1] - scores[0]) / float64(len(scores)))
}

// Consistency maps score spread into (0, 1]: 1/(1+stddev), rounded to three
// decimals. A single data point is perfectly consistent by convention.
func Consistency(scores []float64) float64 {
	if len(scores) < 2 {
		return 1.0
	}
	return Round3(1 / (1 + stddev(scores)))
}

// Volatility classifies score dispersion independent of direction.
func Volatility(scores []float64) string {
	if len(scores) < 2 {
		return models.LevelUnknown
	}

	sd := stddev(scores)
	switch {
	case sd < volatilityLowMax:
		return models.LevelLow
	case sd < volatilityMediumMax:
		return models.LevelMedium
	default:
		return models.LevelHigh
	}
}

// RecentAverage is the mean of the last recentWindow scores, or of all scores
// when fewer exist. Rounded to two decimals.
func RecentAverage(scores []float64) float64 {
	if len(scores) < recentWindow {
		return Round2(mean(scores))
	}
	return Round2(mean(scores[len(scores)-recentWindow:]))
}

// Risk combines average performance and trend into an intervention signal:
// both low average and decline mean high risk, exactly one of them medium.
func Risk(avgScore float64, trend string) string {
	low := avgScore < bandLowMax
	declining := trend == models.TrendDeclining
	switch {
	case low && declining:
		return models.LevelHigh
	case low || declining:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// Confidence grades how much data backs the analytics record.
func Confidence(attemptCount int) string {
	switch {
	case attemptCount >= confidenceHighMin:
		return models.LevelHigh
	case attemptCount >= confidenceMediumMin:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// PerformanceBand buckets an average score.
func PerformanceBand(avgScore float64) string {
	switch {
	case avgScore < bandLowMax:
		return models.LevelLow
	case avgScore < bandMediumMax:
		return models.LevelMedium
	default:
		return models.LevelHigh
	}
}

// MockVsRealGap is mean(real) - mean(mock) over a group of attempts, rounded
// to two decimals, or nil when either side has no samples.
func MockVsRealGap(scores []models.ValidatedScore) *float64 {
	var mock, real []float64
	for _, s := range scores {
		switch s.ExamType {
		case models.ExamTypeMock:
			mock = append(mock, s.Score)
		case models.ExamTypeReal:
			real = append(real, s.Score)
		}
	}
	if len(mock) == 0 || len(real) == 0 {
		return nil
	}

	gap := Round2(mean(real) - mean(mock))
	return &gap
}

// Mean exposes the arithmetic mean for the aggregation layer.
func Mean(scores []float64) float64 {
	return mean(scores)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round3 rounds to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// stddev is the population standard deviation.
func stddev(scores []float64) float64 {
	m := mean(scores)
	sum := 0.0
	for _, s := range scores {
		d := s - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(scores)))
}
