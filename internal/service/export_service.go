package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/edualytics/student-intel/internal/models"
	"github.com/edualytics/student-intel/internal/store"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
	"github.com/edualytics/student-intel/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ReportFile is a rendered report card ready to be served.
type ReportFile struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders downloadable report cards from the consolidated
// profile plus the per-subject analytics table.
type ExportService struct {
	store  store.Store
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(st store.Store, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:  st,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// ReportCard renders a student's report card in the requested format.
func (s *ExportService) ReportCard(ctx context.Context, studentID, format string) (ReportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return ReportFile{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported export format: %s", format))
	}

	dataset, err := s.buildDataset(ctx, studentID)
	if err != nil {
		return ReportFile{}, err
	}

	switch format {
	case FormatPDF:
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Report Card - %s", studentID))
		if err != nil {
			return ReportFile{}, fmt.Errorf("render pdf report: %w", err)
		}
		return ReportFile{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("report-card-%s.pdf", studentID),
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return ReportFile{}, fmt.Errorf("render csv report: %w", err)
		}
		return ReportFile{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("report-card-%s.csv", studentID),
		}, nil
	}
}

func (s *ExportService) buildDataset(ctx context.Context, studentID string) (export.Dataset, error) {
	analyticsTable, err := s.store.Read(ctx, store.TableSubjectAnalytics)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("read %s: %w", store.TableSubjectAnalytics, err)
	}
	latestTable, err := s.store.Read(ctx, store.TableConsolidatedLatest)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("read %s: %w", store.TableConsolidatedLatest, err)
	}

	var rows []map[string]string
	for _, rec := range analyticsTable.Records() {
		if rec["student_id"] != studentID {
			continue
		}
		rows = append(rows, map[string]string{
			"subject":          rec["subject"],
			"attempts":         rec["attempt_count"],
			"average_score":    rec["average_score"],
			"latest_score":     rec["latest_score"],
			"trend":            rec["trend"],
			"performance_band": rec["performance_band"],
			"risk_flag":        rec["risk_flag"],
		})
	}
	if len(rows) == 0 {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrNotFound,
			fmt.Sprintf("no analytics found for student_id=%s", studentID))
	}

	summary := [][2]string{{"Student ID", studentID}}
	for _, rec := range latestTable.Records() {
		if rec["student_id"] != studentID {
			continue
		}
		profile, err := models.ParseConsolidatedProfile(rec)
		if err != nil {
			break
		}
		summary = append(summary,
			[2]string{"Grade", rec["grade"]},
			[2]string{"Overall Summary", models.NormalizeCell(profile.OverallSummary)},
			[2]string{"Key Strengths", models.NormalizeCell(profile.KeyStrengths)},
			[2]string{"Areas To Improve", models.NormalizeCell(profile.AreasToImprove)},
			[2]string{"Recommended Next Steps", models.NormalizeCell(profile.RecommendedNextSteps)},
			[2]string{"Confidence", profile.ConfidenceNote},
		)
		break
	}

	return export.Dataset{
		Headers: []string{"subject", "attempts", "average_score", "latest_score", "trend", "performance_band", "risk_flag"},
		Rows:    rows,
		Summary: summary,
	}, nil
}
