package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// Retry policy for narrative generation: a fixed number of attempts with a
// fixed synchronous delay, applied per call.
const (
	maxAttempts = 3
	retryDelay  = 3 * time.Second
)

// Sampling temperatures per call site.
const (
	subjectTemperature       = 0.4
	consolidationTemperature = 0.3
)

const subjectSystemPrompt = "You are a senior academic mentor writing faculty-grade feedback.\n" +
	"Your tone must be calm, encouraging, and constructive.\n" +
	"Write in complete, well-structured paragraphs.\n" +
	"Explain performance clearly without inventing data.\n" +
	"Avoid short or robotic sentences.\n" +
	"Assume the output will be read by students, parents, and teachers.\n" +
	"Return ONLY valid JSON.\n"

const consolidationSystemPrompt = "You are a senior academic advisor.\n" +
	"Generate a consolidated academic assessment across subjects.\n" +
	"Use ONLY provided data.\n" +
	"Identify cross-subject patterns.\n" +
	"Be concrete, structured, and professional.\n" +
	"Return ONLY valid JSON.\n"

// fallbackNarrative is the canned safe narrative used when the backend keeps
// failing on a subject summary. A single subject must never block the batch.
var fallbackNarrative = models.NarrativeFields{
	PerformanceSummary: "Based on the available academic signals, the student's performance " +
		"pattern has been analyzed, though a detailed AI narrative could not " +
		"be generated at this time.",
	ImprovementPlan: "Continue reviewing core concepts regularly and seek clarification " +
		"on challenging topics to strengthen understanding.",
	MotivationNote: "Progress is built through consistency. With steady effort and support, " +
		"meaningful improvement is achievable.",
	ConfidenceNote: models.LevelLow,
}

// CallObserver receives the duration and outcome of every backend call,
// including each retry attempt.
type CallObserver func(backend string, elapsed time.Duration, ok bool)

// NarrativeGenerator turns insight and analytics records into prose via a
// text-generation backend, with JSON recovery and fixed-delay retries.
type NarrativeGenerator struct {
	backend  Generator
	logger   *zap.Logger
	observer CallObserver

	attempts uint64
	delay    time.Duration
}

// NewNarrativeGenerator wires a generator around an explicit backend. The
// backend is a constructor argument, never ambient state, so concurrent
// generators with different backends cannot race.
func NewNarrativeGenerator(backend Generator, logger *zap.Logger) *NarrativeGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NarrativeGenerator{
		backend:  backend,
		logger:   logger,
		attempts: maxAttempts,
		delay:    retryDelay,
	}
}

// Observe registers an observer invoked once per backend call. It keeps call
// metrics out of this package without coupling it to the metrics service.
func (g *NarrativeGenerator) Observe(obs CallObserver) *NarrativeGenerator {
	g.observer = obs
	return g
}

// Backend reports the backend identifier persisted alongside narratives.
func (g *NarrativeGenerator) Backend() string {
	return g.backend.Name()
}

// GenerateSubject produces the narrative for one subject insight. It never
// returns an error: when the backend exhausts its retries the fixed fallback
// narrative is returned instead, so one failing subject cannot abort a batch.
func (g *NarrativeGenerator) GenerateSubject(ctx context.Context, insight models.SubjectInsight) models.NarrativeFields {
	prompt := BuildSubjectPrompt(insight)

	var fields models.NarrativeFields
	err := g.generateInto(ctx, Request{
		System:      subjectSystemPrompt,
		Prompt:      prompt,
		Temperature: subjectTemperature,
	}, &fields)
	if err != nil {
		g.logger.Warn("subject narrative fell back to canned text",
			zap.String("student_id", insight.StudentID),
			zap.String("subject", insight.Subject),
			zap.Error(err),
		)
		return fallbackNarrative
	}
	return fields
}

// GenerateConsolidated produces the cross-subject profile fields for one
// student. Unlike the subject path it fails hard after exhausting retries;
// the caller is expected to skip that student, not the whole run.
func (g *NarrativeGenerator) GenerateConsolidated(
	ctx context.Context,
	studentID string,
	grade int,
	analytics []models.SubjectAnalytics,
	summaries []models.SubjectSummary,
) (models.ConsolidatedFields, error) {
	prompt := BuildConsolidationPrompt(studentID, grade, analytics, summaries)

	var fields models.ConsolidatedFields
	err := g.generateInto(ctx, Request{
		System:      consolidationSystemPrompt,
		Prompt:      prompt,
		Temperature: consolidationTemperature,
	}, &fields)
	if err != nil {
		return models.ConsolidatedFields{}, appErrors.Wrap(err,
			appErrors.ErrNarrativeParse.Code, appErrors.ErrNarrativeParse.Status,
			fmt.Sprintf("consolidation narrative failed for student %s", studentID))
	}
	return fields, nil
}

// generateInto runs the attempt loop: invoke backend, decode through the
// recovery machine, and wait the fixed delay before the next attempt.
func (g *NarrativeGenerator) generateInto(ctx context.Context, req Request, dest interface{}) error {
	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		raw, err := g.backend.Generate(ctx, req)
		if g.observer != nil {
			g.observer(g.backend.Name(), time.Since(start), err == nil)
		}
		if err != nil {
			g.logger.Warn("narrative backend call failed",
				zap.String("backend", g.backend.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}

		state, err := DecodeObject(raw, dest)
		if err != nil {
			g.logger.Warn("narrative output unparseable",
				zap.String("backend", g.backend.Name()),
				zap.Int("attempt", attempt),
				zap.String("parse_state", state.String()),
			)
			return err
		}

		g.logger.Debug("narrative parsed",
			zap.String("backend", g.backend.Name()),
			zap.Int("attempt", attempt),
			zap.String("parse_state", state.String()),
		)
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.delay), g.attempts-1),
		ctx,
	)
	return backoff.Retry(op, policy)
}

// BuildSubjectPrompt embeds one insight record into the fixed-shape subject
// narrative prompt.
func BuildSubjectPrompt(insight models.SubjectInsight) string {
	intervention := "no"
	if insight.TeacherInterventionNeeded {
		intervention = "yes"
	}

	var b strings.Builder
	b.WriteString("Student Academic Context\n")
	b.WriteString("------------------------\n")
	fmt.Fprintf(&b, "Grade: %d\n", insight.Grade)
	fmt.Fprintf(&b, "Subject: %s\n\n", insight.Subject)
	b.WriteString("Interpretable Insights\n")
	b.WriteString("---------------------\n")
	fmt.Fprintf(&b, "Primary issue: %s\n", insight.PrimaryIssue)
	fmt.Fprintf(&b, "Secondary issue: %s\n", insight.SecondaryIssue)
	fmt.Fprintf(&b, "Root cause category: %s\n", insight.RootCauseCategory)
	fmt.Fprintf(&b, "Academic risk level: %s\n", insight.AcademicRiskLevel)
	fmt.Fprintf(&b, "Urgency level: %s\n", insight.UrgencyLevel)
	fmt.Fprintf(&b, "Recommended focus area: %s\n", insight.RecommendedFocusArea)
	fmt.Fprintf(&b, "Teacher intervention needed: %s\n\n", intervention)
	b.WriteString("Instructions\n")
	b.WriteString("------------\n")
	b.WriteString("Write a detailed but readable academic summary.\n\n")
	b.WriteString("Return ONLY valid JSON in the following structure:\n")
	b.WriteString("{\n")
	b.WriteString(`  "performance_summary": "2-4 sentences explaining current performance and pattern",` + "\n")
	b.WriteString(`  "improvement_plan": "Concrete, actionable steps written as guidance, not commands",` + "\n")
	b.WriteString(`  "motivation_note": "Encouraging message focused on confidence and growth mindset",` + "\n")
	b.WriteString(`  "confidence_note": "high | medium | low"` + "\n")
	b.WriteString("}\n")
	return b.String()
}

// BuildConsolidationPrompt embeds all per-subject analytics and narratives of
// one student into the consolidation prompt.
func BuildConsolidationPrompt(
	studentID string,
	grade int,
	analytics []models.SubjectAnalytics,
	summaries []models.SubjectSummary,
) string {
	analyticsJSON, _ := json.MarshalIndent(analytics, "", "  ")
	summariesJSON, _ := json.MarshalIndent(summaries, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Student ID: %s\n", studentID)
	fmt.Fprintf(&b, "Grade: %d\n\n", grade)
	fmt.Fprintf(&b, "Numerical subject analytics:\n%s\n\n", analyticsJSON)
	fmt.Fprintf(&b, "Subject-level AI summaries:\n%s\n\n", summariesJSON)
	b.WriteString("Return JSON ONLY in this exact schema:\n")
	b.WriteString("{\n")
	b.WriteString(`  "overall_summary": "...",` + "\n")
	b.WriteString(`  "key_strengths": "...",` + "\n")
	b.WriteString(`  "areas_to_improve": "...",` + "\n")
	b.WriteString(`  "recommended_next_steps": "...",` + "\n")
	b.WriteString(`  "confidence_note": "high | medium | low"` + "\n")
	b.WriteString("}")
	return b.String()
}

// FallbackNarrative exposes the canned narrative for tests and callers that
// need to recognise it.
func FallbackNarrative() models.NarrativeFields {
	return fallbackNarrative
}
