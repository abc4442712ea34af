package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
	"github.com/openlearn/lms-api/pkg/jobs"
)

type fakeEnrollmentRepo struct {
	existing        *models.Enrollment
	activated       *models.Enrollment
	activateErr     error
	upsertActive    *models.Enrollment
	upsertInvited   *models.Enrollment
	lastTokenHash   string
	lastPaymentRef  *string
	activateCalled  bool
	upsertActCalled bool
}

func (f *fakeEnrollmentRepo) FindByUserAndCourse(_ context.Context, _, _ string) (*models.Enrollment, error) {
	if f.existing == nil {
		return nil, sql.ErrNoRows
	}
	return f.existing, nil
}

func (f *fakeEnrollmentRepo) UpsertActive(_ context.Context, userID, courseID string, paymentTxnID *string) (*models.Enrollment, error) {
	f.upsertActCalled = true
	f.lastPaymentRef = paymentTxnID
	if f.upsertActive != nil {
		return f.upsertActive, nil
	}
	return &models.Enrollment{UserID: userID, CourseID: courseID, Status: models.EnrollmentActive, PaymentTxnID: paymentTxnID}, nil
}

func (f *fakeEnrollmentRepo) UpsertInvited(_ context.Context, userID, courseID, tokenHash, invitedBy string) (*models.Enrollment, error) {
	f.lastTokenHash = tokenHash
	if f.upsertInvited != nil {
		return f.upsertInvited, nil
	}
	return &models.Enrollment{UserID: userID, CourseID: courseID, Status: models.EnrollmentInvited, InvitedBy: &invitedBy}, nil
}

func (f *fakeEnrollmentRepo) ActivateInvited(_ context.Context, userID, courseID, tokenHash string) (*models.Enrollment, error) {
	f.activateCalled = true
	f.lastTokenHash = tokenHash
	if f.activateErr != nil {
		return nil, f.activateErr
	}
	if f.activated != nil {
		return f.activated, nil
	}
	return &models.Enrollment{UserID: userID, CourseID: courseID, Status: models.EnrollmentActive}, nil
}

func (f *fakeEnrollmentRepo) UpdateStatus(_ context.Context, userID, courseID string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	return &models.Enrollment{UserID: userID, CourseID: courseID, Status: status}, nil
}

func (f *fakeEnrollmentRepo) ListByUser(_ context.Context, _ string, _ []models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

type fakeCourseReader struct {
	course *models.Course
}

func (f *fakeCourseReader) FindByID(_ context.Context, _ string) (*models.Course, error) {
	if f.course == nil {
		return nil, sql.ErrNoRows
	}
	return f.course, nil
}

type fakeUserReader struct {
	byEmail *models.User
	byID    *models.User
}

func (f *fakeUserReader) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	if f.byEmail == nil {
		return nil, sql.ErrNoRows
	}
	return f.byEmail, nil
}

func (f *fakeUserReader) FindByID(_ context.Context, _ string) (*models.User, error) {
	if f.byID == nil {
		return nil, sql.ErrNoRows
	}
	return f.byID, nil
}

type fakeDispatcher struct {
	jobs []jobs.Job
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func openCourse() *models.Course {
	return &models.Course{
		ID:          "course-1",
		Title:       "Intro to Go",
		Visibility:  models.VisibilityEveryone,
		AccessRule:  models.AccessOpen,
		IsPublished: true,
		CreatedBy:   "instructor-1",
	}
}

func TestEnrollUnpublishedCourseRejected(t *testing.T) {
	course := openCourse()
	course.IsPublished = false
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	_, _, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{})
	require.ErrorIs(t, err, appErrors.ErrCourseNotPublished)
}

func TestEnrollOpenCourseActivates(t *testing.T) {
	repo := &fakeEnrollmentRepo{}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: openCourse()}, &fakeUserReader{}, nil, nil, nil)

	enrollment, created, err := svc.Enroll(context.Background(), "learner-1", "course-1", models.EnrollRequest{})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentActive, enrollment.Status)
	require.True(t, created)
	require.True(t, repo.upsertActCalled)
	require.Nil(t, repo.lastPaymentRef)
}

func TestEnrollActiveIsIdempotent(t *testing.T) {
	existing := &models.Enrollment{ID: "enr-1", UserID: "learner-1", CourseID: "course-1", Status: models.EnrollmentActive}
	repo := &fakeEnrollmentRepo{existing: existing}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: openCourse()}, &fakeUserReader{}, nil, nil, nil)

	enrollment, created, err := svc.Enroll(context.Background(), "learner-1", "course-1", models.EnrollRequest{})
	require.NoError(t, err)
	require.Equal(t, existing, enrollment)
	require.False(t, created)
	require.False(t, repo.upsertActCalled)
}

func TestEnrollInviteCourseRequiresToken(t *testing.T) {
	course := openCourse()
	course.AccessRule = models.AccessInvite
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	_, _, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{})
	require.ErrorIs(t, err, appErrors.ErrTokenRequired)
}

func TestEnrollInviteWithTokenMatchesHash(t *testing.T) {
	course := openCourse()
	course.AccessRule = models.AccessInvite
	repo := &fakeEnrollmentRepo{}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	enrollment, created, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{InviteToken: "secret-token"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentActive, enrollment.Status)
	require.True(t, created)
	require.True(t, repo.activateCalled)
	require.Equal(t, hashToken("secret-token"), repo.lastTokenHash)
}

func TestEnrollInviteSelfClaimWithoutToken(t *testing.T) {
	course := openCourse()
	course.AccessRule = models.AccessInvite
	repo := &fakeEnrollmentRepo{
		existing: &models.Enrollment{UserID: "learner-1", CourseID: course.ID, Status: models.EnrollmentInvited},
	}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	enrollment, _, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentActive, enrollment.Status)
	require.True(t, repo.activateCalled)
	require.Empty(t, repo.lastTokenHash)
}

func TestEnrollInviteSelfClaimIgnoresStaleToken(t *testing.T) {
	course := openCourse()
	course.AccessRule = models.AccessInvite
	repo := &fakeEnrollmentRepo{
		existing: &models.Enrollment{UserID: "learner-1", CourseID: course.ID, Status: models.EnrollmentInvited},
	}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	enrollment, created, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{InviteToken: "no-longer-valid"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentActive, enrollment.Status)
	require.True(t, created)
	require.True(t, repo.activateCalled)
	require.Empty(t, repo.lastTokenHash)
}

func TestEnrollInviteBadTokenRejected(t *testing.T) {
	course := openCourse()
	course.AccessRule = models.AccessInvite
	repo := &fakeEnrollmentRepo{activateErr: sql.ErrNoRows}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	_, _, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{InviteToken: "wrong"})
	require.ErrorIs(t, err, appErrors.ErrInvalidToken)
}

func TestEnrollPaidCourseRequiresPaymentRef(t *testing.T) {
	course := openCourse()
	course.AccessRule = models.AccessPaid
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	_, _, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{PaymentTxnID: "abc"})
	require.ErrorIs(t, err, appErrors.ErrPaymentRefRequired)
}

func TestEnrollPaidCourseStoresPaymentRef(t *testing.T) {
	course := openCourse()
	course.AccessRule = models.AccessPaid
	repo := &fakeEnrollmentRepo{}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	enrollment, created, err := svc.Enroll(context.Background(), "learner-1", course.ID, models.EnrollRequest{PaymentTxnID: "txn-12345"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentActive, enrollment.Status)
	require.True(t, created)
	require.NotNil(t, repo.lastPaymentRef)
	require.Equal(t, "txn-12345", *repo.lastPaymentRef)
}

func TestCreateInviteOnlyOwner(t *testing.T) {
	course := openCourse()
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	actor := Permissions{UserID: "someone-else", Role: models.RoleInstructor}
	_, err := svc.CreateInvite(context.Background(), course.ID, models.CreateInviteRequest{Email: "learner@example.com"}, actor)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCreateInviteStoresHashAndEnqueuesMail(t *testing.T) {
	course := openCourse()
	repo := &fakeEnrollmentRepo{}
	users := &fakeUserReader{
		byEmail: &models.User{ID: "learner-1", Email: "learner@example.com", FullName: "Lea Learner"},
		byID:    &models.User{ID: "instructor-1", FullName: "Ines Instructor"},
	}
	dispatcher := &fakeDispatcher{}
	svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, users, dispatcher, nil, nil)

	actor := Permissions{UserID: "instructor-1", Role: models.RoleInstructor}
	result, err := svc.CreateInvite(context.Background(), course.ID, models.CreateInviteRequest{Email: "learner@example.com"}, actor)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, hashToken(result.Token), repo.lastTokenHash)

	require.Len(t, dispatcher.jobs, 1)
	require.Equal(t, MailJobInvite, dispatcher.jobs[0].Type)
	payload, ok := dispatcher.jobs[0].Payload.(InviteMailPayload)
	require.True(t, ok)
	require.Equal(t, result.Token, payload.Token)
	require.Equal(t, "Ines Instructor", payload.InviterName)
}

func TestCreateInviteUnknownEmail(t *testing.T) {
	course := openCourse()
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)

	actor := Permissions{UserID: "instructor-1", Role: models.RoleInstructor}
	_, err := svc.CreateInvite(context.Background(), course.ID, models.CreateInviteRequest{Email: "ghost@example.com"}, actor)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCanViewContentMatrix(t *testing.T) {
	owner := Permissions{UserID: "instructor-1", Role: models.RoleInstructor}
	learner := Permissions{UserID: "learner-1", Role: models.RoleLearner}
	anon := Permissions{}

	t.Run("owner sees drafts", func(t *testing.T) {
		course := openCourse()
		course.IsPublished = false
		svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)
		ok, err := svc.CanViewContent(context.Background(), owner, course)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("anonymous sees open everyone courses", func(t *testing.T) {
		course := openCourse()
		svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)
		ok, err := svc.CanViewContent(context.Background(), anon, course)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("anonymous blocked from signed-in courses", func(t *testing.T) {
		course := openCourse()
		course.Visibility = models.VisibilitySignedIn
		svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)
		ok, err := svc.CanViewContent(context.Background(), anon, course)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("enrolled learner sees invite course", func(t *testing.T) {
		course := openCourse()
		course.AccessRule = models.AccessInvite
		repo := &fakeEnrollmentRepo{existing: &models.Enrollment{UserID: "learner-1", CourseID: course.ID, Status: models.EnrollmentActive}}
		svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)
		ok, err := svc.CanViewContent(context.Background(), learner, course)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("invited but unclaimed blocked", func(t *testing.T) {
		course := openCourse()
		course.AccessRule = models.AccessInvite
		repo := &fakeEnrollmentRepo{existing: &models.Enrollment{UserID: "learner-1", CourseID: course.ID, Status: models.EnrollmentInvited}}
		svc := NewEnrollmentService(repo, &fakeCourseReader{course: course}, &fakeUserReader{}, nil, nil, nil)
		ok, err := svc.CanViewContent(context.Background(), learner, course)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestEnrollCourseNotFound(t *testing.T) {
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeCourseReader{}, &fakeUserReader{}, nil, nil, nil)

	_, _, err := svc.Enroll(context.Background(), "learner-1", "missing", models.EnrollRequest{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
