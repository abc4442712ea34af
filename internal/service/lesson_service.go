package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

type lessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
	CreateAttachment(ctx context.Context, attachment *models.LessonAttachment) error
	ListAttachments(ctx context.Context, lessonID string) ([]models.LessonAttachment, error)
	FindAttachmentByID(ctx context.Context, id string) (*models.LessonAttachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

type contentGate interface {
	CanViewContent(ctx context.Context, actor Permissions, course *models.Course) (bool, error)
}

// LessonService owns lesson authoring and gated content reads.
type LessonService struct {
	repo      lessonRepository
	courses   courseReader
	gate      contentGate
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs LessonService.
func NewLessonService(repo lessonRepository, courses courseReader, gate contentGate, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, courses: courses, gate: gate, validator: validate, logger: logger}
}

// Create adds a lesson to a course owned by the actor.
func (s *LessonService) Create(ctx context.Context, actor Permissions, courseID string, req models.CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.authorOf(ctx, actor, courseID); err != nil {
		return nil, err
	}
	if req.Type != models.LessonQuiz && req.ContentURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content_url is required for non-quiz lessons")
	}

	lesson := &models.Lesson{
		CourseID:        courseID,
		Title:           req.Title,
		Type:            req.Type,
		ContentURL:      req.ContentURL,
		DurationSeconds: req.DurationSeconds,
		AllowDownload:   req.AllowDownload,
		Description:     req.Description,
		OrderIndex:      req.OrderIndex,
		CreatedBy:       actor.UserID,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// Update edits a lesson.
func (s *LessonService) Update(ctx context.Context, actor Permissions, lessonID string, req models.UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson, err := s.loadOwnedLesson(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.Type != nil {
		lesson.Type = *req.Type
	}
	if req.ContentURL != nil {
		lesson.ContentURL = *req.ContentURL
	}
	if req.DurationSeconds != nil {
		lesson.DurationSeconds = *req.DurationSeconds
	}
	if req.AllowDownload != nil {
		lesson.AllowDownload = *req.AllowDownload
	}
	if req.Description != nil {
		lesson.Description = *req.Description
	}
	if req.OrderIndex != nil {
		lesson.OrderIndex = *req.OrderIndex
	}

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}

// Delete removes a lesson and its attachments.
func (s *LessonService) Delete(ctx context.Context, actor Permissions, lessonID string) error {
	if _, err := s.loadOwnedLesson(ctx, actor, lessonID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, lessonID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	return nil
}

// Get returns a lesson the actor is allowed to read.
func (s *LessonService) Get(ctx context.Context, actor Permissions, lessonID string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorizeRead(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}
	return lesson, nil
}

// ListByCourse returns the ordered lessons of a course the actor may read.
func (s *LessonService) ListByCourse(ctx context.Context, actor Permissions, courseID string) ([]models.Lesson, error) {
	if err := s.authorizeRead(ctx, actor, courseID); err != nil {
		return nil, err
	}
	lessons, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, nil
}

// AddAttachment links a file to a lesson owned by the actor.
func (s *LessonService) AddAttachment(ctx context.Context, actor Permissions, lessonID string, req models.CreateAttachmentRequest) (*models.LessonAttachment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attachment payload")
	}
	if _, err := s.loadOwnedLesson(ctx, actor, lessonID); err != nil {
		return nil, err
	}

	attachment := &models.LessonAttachment{
		LessonID: lessonID,
		Title:    req.Title,
		FileURL:  req.FileURL,
		FileSize: req.FileSize,
		FileType: req.FileType,
	}
	if err := s.repo.CreateAttachment(ctx, attachment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attachment")
	}
	return attachment, nil
}

// ListAttachments returns a lesson's attachments, gated like the lesson.
func (s *LessonService) ListAttachments(ctx context.Context, actor Permissions, lessonID string) ([]models.LessonAttachment, error) {
	lesson, err := s.repo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorizeRead(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListAttachments(ctx, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	if attachments == nil {
		attachments = []models.LessonAttachment{}
	}
	return attachments, nil
}

// GetAttachment returns an attachment the actor is allowed to download.
// Downloads require the owning lesson to allow them.
func (s *LessonService) GetAttachment(ctx context.Context, actor Permissions, attachmentID string) (*models.LessonAttachment, *models.Lesson, error) {
	attachment, err := s.repo.FindAttachmentByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	lesson, err := s.repo.FindByID(ctx, attachment.LessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorizeRead(ctx, actor, lesson.CourseID); err != nil {
		return nil, nil, err
	}
	if !lesson.AllowDownload && !actor.Owns(lesson.CreatedBy) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "downloads are disabled for this lesson")
	}
	return attachment, lesson, nil
}

// RemoveAttachment deletes an attachment from a lesson owned by the actor.
func (s *LessonService) RemoveAttachment(ctx context.Context, actor Permissions, attachmentID string) error {
	attachment, err := s.repo.FindAttachmentByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	if _, err := s.loadOwnedLesson(ctx, actor, attachment.LessonID); err != nil {
		return err
	}
	if err := s.repo.DeleteAttachment(ctx, attachmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attachment")
	}
	return nil
}

func (s *LessonService) authorOf(ctx context.Context, actor Permissions, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !actor.Owns(course.CreatedBy) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may manage lessons")
	}
	return course, nil
}

func (s *LessonService) loadOwnedLesson(ctx context.Context, actor Permissions, lessonID string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if _, err := s.authorOf(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *LessonService) authorizeRead(ctx context.Context, actor Permissions, courseID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	allowed, err := s.gate.CanViewContent(ctx, actor, course)
	if err != nil {
		return err
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "enroll in this course to access its content")
	}
	return nil
}
