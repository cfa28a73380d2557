package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edualytics/student-intel/internal/service"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
	"github.com/edualytics/student-intel/pkg/response"
)

// ExportHandler serves downloadable report cards.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs the export handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ReportCard streams a student report card as CSV or PDF.
func (h *ExportHandler) ReportCard(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	studentID := strings.TrimSpace(c.Param("id"))
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student id required"))
		return
	}

	file, err := h.exports.ReportCard(c.Request.Context(), studentID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
