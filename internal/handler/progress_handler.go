package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/lms-api/internal/models"
	"github.com/openlearn/lms-api/internal/service"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
	"github.com/openlearn/lms-api/pkg/response"
)

// ProgressHandler wires HTTP endpoints to the progress service.
type ProgressHandler struct {
	service *service.ProgressService
}

// NewProgressHandler creates a new handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// Track godoc
// @Summary Record lesson activity
// @Description Time spent accumulates; completion is write-once
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body models.TrackProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/progress [post]
func (h *ProgressHandler) Track(c *gin.Context) {
	var req models.TrackProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid progress payload"))
		return
	}

	progress, err := h.service.Track(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, progress, nil)
}

// LessonProgress godoc
// @Summary Get own progress for a lesson
// @Tags Progress
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/progress [get]
func (h *ProgressHandler) LessonProgress(c *gin.Context) {
	progress, err := h.service.LessonProgress(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, progress, nil)
}

// CourseProgress godoc
// @Summary Get own completion summary for a course
// @Tags Progress
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/progress [get]
func (h *ProgressHandler) CourseProgress(c *gin.Context) {
	progress, err := h.service.CourseProgress(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, progress, nil)
}

// Stats godoc
// @Summary Get own lifetime stats and badge
// @Tags Progress
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/stats [get]
func (h *ProgressHandler) Stats(c *gin.Context) {
	actor := actorFromContext(c)
	if !actor.Authenticated() {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
