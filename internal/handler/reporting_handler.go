package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/lms-api/internal/service"
	"github.com/openlearn/lms-api/pkg/response"
)

// ReportingHandler wires HTTP endpoints to the reporting service.
type ReportingHandler struct {
	service *service.ReportingService
}

// NewReportingHandler creates a new handler.
func NewReportingHandler(svc *service.ReportingService) *ReportingHandler {
	return &ReportingHandler{service: svc}
}

// Funnel godoc
// @Summary Course completion funnel
// @Tags Reports
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/courses/{id}/funnel [get]
func (h *ReportingHandler) Funnel(c *gin.Context) {
	funnel, err := h.service.Funnel(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, funnel, nil)
}

// Learners godoc
// @Summary Per-learner course standing
// @Tags Reports
// @Produce json
// @Param id path string true "Course ID"
// @Param format query string false "Export format (csv, xlsx, pdf); omit for JSON"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/courses/{id}/learners [get]
func (h *ReportingHandler) Learners(c *gin.Context) {
	actor := actorFromContext(c)
	courseID := c.Param("id")

	if format := c.Query("format"); format != "" {
		result, err := h.service.ExportLearners(c.Request.Context(), actor, courseID, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		c.Data(http.StatusOK, result.ContentType, result.Content)
		return
	}

	rows, err := h.service.Learners(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// Overview godoc
// @Summary Instructor dashboard overview
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/overview [get]
func (h *ReportingHandler) Overview(c *gin.Context) {
	rows, err := h.service.Overview(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}
