package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

type progressRepository interface {
	Upsert(ctx context.Context, userID, lessonID, courseID string, completed bool, timeSpentDelta int64) (*models.LessonProgress, error)
	FindByUserAndLesson(ctx context.Context, userID, lessonID string) (*models.LessonProgress, error)
	ListByUserAndCourse(ctx context.Context, userID, courseID string) ([]models.LessonProgress, error)
	CourseCounts(ctx context.Context, userID, courseID string) (completed, total int, err error)
	LearnerStats(ctx context.Context, userID string) (*models.LearnerStats, error)
}

type progressLessonReader interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
}

// ProgressService tracks lesson completion and learner aggregates.
type ProgressService struct {
	repo      progressRepository
	lessons   progressLessonReader
	courses   courseReader
	gate      contentGate
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressService constructs ProgressService.
func NewProgressService(repo progressRepository, lessons progressLessonReader, courses courseReader, gate contentGate, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{repo: repo, lessons: lessons, courses: courses, gate: gate, validator: validate, logger: logger}
}

// Track records lesson activity for the caller. Quiz lessons cannot be
// completed by hand; a passing attempt completes them.
func (s *ProgressService) Track(ctx context.Context, actor Permissions, lessonID string, req models.TrackProgressRequest) (*models.LessonProgress, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}

	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorizeRead(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}

	completed := req.Completed
	if completed && lesson.Type == models.LessonQuiz {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quiz lessons are completed by passing the quiz")
	}

	progress, err := s.repo.Upsert(ctx, actor.UserID, lessonID, lesson.CourseID, completed, req.TimeSpentSeconds)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record progress")
	}
	return progress, nil
}

// LessonProgress returns the caller's progress for one lesson. A lesson
// never touched reads back as an empty row.
func (s *ProgressService) LessonProgress(ctx context.Context, actor Permissions, lessonID string) (*models.LessonProgress, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorizeRead(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}

	progress, err := s.repo.FindByUserAndLesson(ctx, actor.UserID, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.LessonProgress{UserID: actor.UserID, LessonID: lessonID, CourseID: lesson.CourseID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}
	return progress, nil
}

// CourseProgress summarizes the caller's completion within a course.
func (s *ProgressService) CourseProgress(ctx context.Context, actor Permissions, courseID string) (*models.CourseProgress, error) {
	if err := s.authorizeRead(ctx, actor, courseID); err != nil {
		return nil, err
	}

	completed, total, err := s.repo.CourseCounts(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course progress")
	}

	// Whole-number percentage, rounded half up.
	var pct float64
	if total > 0 {
		pct = math.Round(100 * float64(completed) / float64(total))
	}
	return &models.CourseProgress{
		CourseID:         courseID,
		CompletedLessons: completed,
		TotalLessons:     total,
		Percentage:       pct,
	}, nil
}

// Stats returns the caller's lifetime stats with the badge applied.
func (s *ProgressService) Stats(ctx context.Context, actor Permissions) (*models.LearnerStats, error) {
	stats, err := s.repo.LearnerStats(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner stats")
	}
	stats.Badge = models.BadgeForPoints(stats.TotalPoints)
	return stats, nil
}

func (s *ProgressService) authorizeRead(ctx context.Context, actor Permissions, courseID string) error {
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
		return appErrors.Clone(appErrors.ErrForbidden, "enroll in this course to track progress")
	}
	return nil
}
