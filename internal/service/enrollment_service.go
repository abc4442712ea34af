package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
	"github.com/openlearn/lms-api/pkg/jobs"
)

const minPaymentRefLength = 5

type enrollmentRepository interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	UpsertActive(ctx context.Context, userID, courseID string, paymentTxnID *string) (*models.Enrollment, error)
	UpsertInvited(ctx context.Context, userID, courseID, tokenHash, invitedBy string) (*models.Enrollment, error)
	ActivateInvited(ctx context.Context, userID, courseID, tokenHash string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, userID, courseID string, status models.EnrollmentStatus) (*models.Enrollment, error)
	ListByUser(ctx context.Context, userID string, statuses []models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type userReader interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// EnrollmentService drives the enrollment and access-control state machine.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	users     userReader
	mailJobs  jobDispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, users userReader, mailJobs jobDispatcher, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, users: users, mailJobs: mailJobs, validator: validate, logger: logger}
}

// Enroll grants the caller access to a course according to its access
// rule. Re-enrolling while already ACTIVE is an idempotent no-op; the
// second return value reports whether the enrollment was activated by
// this call rather than found already active.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID string, req models.EnrollRequest) (*models.Enrollment, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsPublished {
		return nil, false, appErrors.ErrCourseNotPublished
	}

	existing, err := s.repo.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if existing != nil && existing.Status == models.EnrollmentActive {
		return existing, false, nil
	}

	switch course.AccessRule {
	case models.AccessOpen:
		enrollment, err := s.repo.UpsertActive(ctx, userID, courseID, nil)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate enrollment")
		}
		return enrollment, true, nil

	case models.AccessInvite:
		hasPendingInvite := existing != nil && existing.Status == models.EnrollmentInvited
		tokenHash := ""
		switch {
		case hasPendingInvite:
			// Self-claim: the caller's own pending invite activates without
			// a token, even when a stale one is supplied.
		case req.InviteToken != "":
			tokenHash = hashToken(req.InviteToken)
		default:
			return nil, false, appErrors.ErrTokenRequired
		}
		enrollment, err := s.repo.ActivateInvited(ctx, userID, courseID, tokenHash)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, false, appErrors.ErrInvalidToken
			}
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate invite")
		}
		return enrollment, true, nil

	case models.AccessPaid:
		if len(req.PaymentTxnID) < minPaymentRefLength {
			return nil, false, appErrors.ErrPaymentRefRequired
		}
		ref := req.PaymentTxnID
		enrollment, err := s.repo.UpsertActive(ctx, userID, courseID, &ref)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate enrollment")
		}
		return enrollment, true, nil

	default:
		return nil, false, appErrors.Clone(appErrors.ErrInternal, "unknown course access rule")
	}
}

// CreateInvite invites a registered user to a course. Only the course
// owner or an admin may invite. The plaintext token is returned once and
// stored hashed.
func (s *EnrollmentService) CreateInvite(ctx context.Context, courseID string, req models.CreateInviteRequest, actor Permissions) (*models.InviteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invite payload")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !actor.Owns(course.CreatedBy) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may invite")
	}

	target, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no account registered with this email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	token, err := randomToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invite token")
	}

	enrollment, err := s.repo.UpsertInvited(ctx, target.ID, courseID, hashToken(token), actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store invite")
	}

	if s.mailJobs != nil {
		inviterName := "Your instructor"
		if inviter, err := s.users.FindByID(ctx, actor.UserID); err == nil {
			inviterName = inviter.FullName
		}
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: MailJobInvite,
			Payload: InviteMailPayload{
				ToName:      target.FullName,
				ToEmail:     target.Email,
				CourseTitle: course.Title,
				InviterName: inviterName,
				Token:       token,
			},
		}
		if err := s.mailJobs.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue invite email", zap.Error(err))
		}
	}

	return &models.InviteResult{Enrollment: *enrollment, Token: token}, nil
}

// UpdateStatus moves the caller's enrollment between states.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, userID, courseID string, req models.UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	enrollment, err := s.repo.UpdateStatus(ctx, userID, courseID, req.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	return enrollment, nil
}

// MyEnrollments lists the caller's active and completed enrollments.
func (s *EnrollmentService) MyEnrollments(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByUser(ctx, userID, []models.EnrollmentStatus{models.EnrollmentActive, models.EnrollmentCompleted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// PendingInvites lists the caller's unclaimed invites.
func (s *EnrollmentService) PendingInvites(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	invites, err := s.repo.ListByUser(ctx, userID, []models.EnrollmentStatus{models.EnrollmentInvited})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invites")
	}
	return invites, nil
}

// CanViewContent decides whether the actor may read a course's content.
func (s *EnrollmentService) CanViewContent(ctx context.Context, actor Permissions, course *models.Course) (bool, error) {
	if course == nil {
		return false, nil
	}
	if actor.Owns(course.CreatedBy) {
		return true, nil
	}
	if !course.IsPublished {
		return false, nil
	}
	if course.Visibility == models.VisibilitySignedIn && !actor.Authenticated() {
		return false, nil
	}
	if !actor.Authenticated() {
		// Anonymous readers see EVERYONE courses but hold no enrollment.
		return course.AccessRule == models.AccessOpen && course.Visibility == models.VisibilityEveryone, nil
	}

	enrollment, err := s.repo.FindByUserAndCourse(ctx, actor.UserID, course.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment.Status == models.EnrollmentActive || enrollment.Status == models.EnrollmentCompleted, nil
}
