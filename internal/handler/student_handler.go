package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edualytics/student-intel/internal/dto"
	"github.com/edualytics/student-intel/internal/middleware"
	"github.com/edualytics/student-intel/internal/service"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
	"github.com/edualytics/student-intel/pkg/response"
)

// StudentHandler exposes the consolidated student profile endpoints.
type StudentHandler struct {
	students *service.StudentService
}

// NewStudentHandler constructs the student handler.
func NewStudentHandler(students *service.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// Summary returns the cached consolidated profile for a student.
func (h *StudentHandler) Summary(c *gin.Context) {
	if h.students == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	var req dto.StudentSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id required"))
		return
	}

	start := time.Now()
	profile, cacheHit, err := h.students.Profile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMode(c, profile.Mode)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, profile, meta)
}

// LiveSummary runs a fresh consolidation for a student, bypassing the
// persisted views, on the requested narrative backend.
func (h *StudentHandler) LiveSummary(c *gin.Context) {
	if h.students == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	var req dto.LiveStudentSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id required"))
		return
	}

	start := time.Now()
	profile, err := h.students.Live(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetMode(c, profile.Mode)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, profile, meta)
}
