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

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id string) (*models.Review, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.ReviewDetail, error)
	AverageForCourse(ctx context.Context, courseID string) (float64, int, error)
	Delete(ctx context.Context, id string) error
}

type reviewEnrollmentReader interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
}

// ReviewService owns course reviews.
type ReviewService struct {
	repo        reviewRepository
	courses     courseReader
	enrollments reviewEnrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(repo reviewRepository, courses courseReader, enrollments reviewEnrollmentReader, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, courses: courses, enrollments: enrollments, validator: validate, logger: logger}
}

// Create posts a review. Only enrolled learners may review, once per
// course.
func (s *ReviewService) Create(ctx context.Context, actor Permissions, courseID string, req models.CreateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.CreatedBy == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "instructors cannot review their own course")
	}

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, actor.UserID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enroll in this course before reviewing it")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentActive && enrollment.Status != models.EnrollmentCompleted {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enroll in this course before reviewing it")
	}

	review := &models.Review{
		CourseID:   courseID,
		UserID:     actor.UserID,
		Rating:     req.Rating,
		ReviewText: req.ReviewText,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateReview) {
			return nil, appErrors.ErrDuplicateReview
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}
	return review, nil
}

// ListByCourse returns a course's reviews with its rating summary.
func (s *ReviewService) ListByCourse(ctx context.Context, courseID string) ([]models.ReviewDetail, float64, int, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, 0, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	reviews, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	if reviews == nil {
		reviews = []models.ReviewDetail{}
	}

	avg, count, err := s.repo.AverageForCourse(ctx, courseID)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate reviews")
	}
	return reviews, avg, count, nil
}

// Delete removes a review. The author or an admin may delete.
func (s *ReviewService) Delete(ctx context.Context, actor Permissions, reviewID string) error {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if !actor.Owns(review.UserID) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author may delete this review")
	}
	if err := s.repo.Delete(ctx, reviewID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	return nil
}
