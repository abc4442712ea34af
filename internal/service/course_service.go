package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

const (
	courseCacheTTL     = 5 * time.Minute
	courseCachePattern = "courses:*"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string, countView bool) (*models.CourseDetail, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error)
	Update(ctx context.Context, course *models.Course) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
}

type lessonCounter interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

// CourseService owns course authoring, publication and the catalog.
type CourseService struct {
	repo      courseRepository
	lessons   lessonCounter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, lessons lessonCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, lessons: lessons, cache: cache, validator: validate, logger: logger}
}

// Create authors a new unpublished course owned by the actor.
func (s *CourseService) Create(ctx context.Context, actor Permissions, req models.CreateCourseRequest) (*models.Course, error) {
	if !actor.HasRole(models.RoleInstructor, models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors may author courses")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.AccessRule == models.AccessPaid && req.PriceCents <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paid courses require a positive price")
	}

	course := &models.Course{
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		Tags:             pq.StringArray(req.Tags),
		Visibility:       req.Visibility,
		AccessRule:       req.AccessRule,
		PriceCents:       req.PriceCents,
		IsPublished:      false,
		CreatedBy:        actor.UserID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Update edits a course. Only the owner or an admin may edit.
func (s *CourseService) Update(ctx context.Context, actor Permissions, courseID string, req models.UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.loadOwned(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.ShortDescription != nil {
		course.ShortDescription = *req.ShortDescription
	}
	if req.LongDescription != nil {
		course.LongDescription = *req.LongDescription
	}
	if req.Tags != nil {
		course.Tags = pq.StringArray(req.Tags)
	}
	if req.Visibility != nil {
		course.Visibility = *req.Visibility
	}
	if req.AccessRule != nil {
		course.AccessRule = *req.AccessRule
	}
	if req.PriceCents != nil {
		course.PriceCents = *req.PriceCents
	}
	if course.AccessRule == models.AccessPaid && course.PriceCents <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paid courses require a positive price")
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Publish makes a course visible to learners. A course needs at least one
// lesson before it can go live.
func (s *CourseService) Publish(ctx context.Context, actor Permissions, courseID string) (*models.Course, error) {
	course, err := s.loadOwned(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsPublished {
		return course, nil
	}

	count, err := s.lessons.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}
	if count == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a course needs at least one lesson before publishing")
	}

	if err := s.repo.SetPublished(ctx, courseID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish course")
	}
	course.IsPublished = true
	s.invalidateCatalog(ctx)
	return course, nil
}

// Unpublish hides a course from the catalog without deleting it.
func (s *CourseService) Unpublish(ctx context.Context, actor Permissions, courseID string) (*models.Course, error) {
	course, err := s.loadOwned(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return course, nil
	}
	if err := s.repo.SetPublished(ctx, courseID, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unpublish course")
	}
	course.IsPublished = false
	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course and everything under it.
func (s *CourseService) Delete(ctx context.Context, actor Permissions, courseID string) error {
	if _, err := s.loadOwned(ctx, actor, courseID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// Get returns the course detail page. Unpublished courses are visible
// only to their owner; each external read bumps the view counter.
func (s *CourseService) Get(ctx context.Context, actor Permissions, courseID string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	isOwner := actor.Owns(course.CreatedBy)
	if !course.IsPublished && !isOwner {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if course.Visibility == models.VisibilitySignedIn && !actor.Authenticated() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	detail, err := s.repo.FindDetailByID(ctx, courseID, !isOwner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course detail")
	}
	return detail, nil
}

// List returns the catalog for the given filter, cached per filter key.
func (s *CourseService) List(ctx context.Context, actor Permissions, filter models.CourseFilter) ([]models.CourseSummary, *models.Pagination, error) {
	filter.SignedIn = actor.Authenticated()
	if filter.IncludeUnpublished {
		// Drafts are only the caller's own.
		filter.OwnerID = actor.UserID
		if filter.OwnerID == "" {
			filter.IncludeUnpublished = false
		}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	type cachedCatalog struct {
		Courses []models.CourseSummary `json:"courses"`
		Total   int                    `json:"total"`
	}

	key := catalogCacheKey(filter)
	if s.cache.Enabled() {
		var cached cachedCatalog
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: cached.Total}, nil
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if courses == nil {
		courses = []models.CourseSummary{}
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, cachedCatalog{Courses: courses, Total: total}, courseCacheTTL); err != nil {
			s.logger.Debug("catalog cache write failed", zap.Error(err))
		}
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *CourseService) loadOwned(ctx context.Context, actor Permissions, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !actor.Owns(course.CreatedBy) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may modify this course")
	}
	return course, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, courseCachePattern); err != nil {
		s.logger.Debug("catalog cache invalidation failed", zap.Error(err))
	}
}

func catalogCacheKey(filter models.CourseFilter) string {
	raw := fmt.Sprintf("%s|%s|%s|%t|%t|%d|%d|%s|%s",
		filter.Search, strings.Join(filter.Tags, ","), filter.OwnerID,
		filter.IncludeUnpublished, filter.SignedIn,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	sum := sha1.Sum([]byte(raw))
	return "courses:list:" + hex.EncodeToString(sum[:])
}
