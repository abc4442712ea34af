package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/openlearn/lms-api/internal/middleware"
	"github.com/openlearn/lms-api/internal/models"
	"github.com/openlearn/lms-api/internal/service"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
}

type stubEnrollmentRepo struct {
	existing *models.Enrollment
}

func (s *stubEnrollmentRepo) FindByUserAndCourse(_ context.Context, _, _ string) (*models.Enrollment, error) {
	if s.existing == nil {
		return nil, sql.ErrNoRows
	}
	return s.existing, nil
}

func (s *stubEnrollmentRepo) UpsertActive(_ context.Context, userID, courseID string, paymentTxnID *string) (*models.Enrollment, error) {
	return &models.Enrollment{ID: "enr-1", UserID: userID, CourseID: courseID, Status: models.EnrollmentActive, PaymentTxnID: paymentTxnID}, nil
}

func (s *stubEnrollmentRepo) UpsertInvited(_ context.Context, userID, courseID, _, invitedBy string) (*models.Enrollment, error) {
	return &models.Enrollment{UserID: userID, CourseID: courseID, Status: models.EnrollmentInvited, InvitedBy: &invitedBy}, nil
}

func (s *stubEnrollmentRepo) ActivateInvited(_ context.Context, userID, courseID, _ string) (*models.Enrollment, error) {
	return &models.Enrollment{UserID: userID, CourseID: courseID, Status: models.EnrollmentActive}, nil
}

func (s *stubEnrollmentRepo) UpdateStatus(_ context.Context, userID, courseID string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	return &models.Enrollment{UserID: userID, CourseID: courseID, Status: status}, nil
}

func (s *stubEnrollmentRepo) ListByUser(_ context.Context, _ string, _ []models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	return []models.EnrollmentDetail{}, nil
}

type stubCourseReader struct {
	course *models.Course
}

func (s *stubCourseReader) FindByID(_ context.Context, _ string) (*models.Course, error) {
	if s.course == nil {
		return nil, sql.ErrNoRows
	}
	return s.course, nil
}

type stubUserReader struct{}

func (s *stubUserReader) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (s *stubUserReader) FindByID(_ context.Context, _ string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func publishedOpenCourse() *models.Course {
	return &models.Course{
		ID:          "course-1",
		Title:       "Intro to Go",
		Visibility:  models.VisibilityEveryone,
		AccessRule:  models.AccessOpen,
		IsPublished: true,
		CreatedBy:   "instructor-1",
	}
}

func newEnrollmentHandler(repo *stubEnrollmentRepo, course *models.Course) *EnrollmentHandler {
	svc := service.NewEnrollmentService(repo, &stubCourseReader{course: course}, &stubUserReader{}, nil, nil, nil)
	return NewEnrollmentHandler(svc)
}

func TestEnrollHandlerRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(&stubEnrollmentRepo{}, publishedOpenCourse())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Enroll(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnrollHandlerOpenCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(&stubEnrollmentRepo{}, publishedOpenCourse())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner})

	handler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, string(models.EnrollmentActive), envelope.Data["status"])
}

func TestEnrollHandlerAlreadyActiveReturnsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubEnrollmentRepo{
		existing: &models.Enrollment{ID: "enr-1", UserID: "learner-1", CourseID: "course-1", Status: models.EnrollmentActive},
	}
	handler := newEnrollmentHandler(repo, publishedOpenCourse())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner})

	handler.Enroll(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnrollHandlerInviteWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	course := publishedOpenCourse()
	course.AccessRule = models.AccessInvite
	handler := newEnrollmentHandler(&stubEnrollmentRepo{}, course)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner})

	handler.Enroll(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "TOKEN_REQUIRED", envelope.Error["code"])
}

func TestEnrollHandlerPaidCourseWithRef(t *testing.T) {
	gin.SetMode(gin.TestMode)
	course := publishedOpenCourse()
	course.AccessRule = models.AccessPaid
	handler := newEnrollmentHandler(&stubEnrollmentRepo{}, course)

	body := strings.NewReader(`{"payment_txn_id":"txn-12345"}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/enroll", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner})

	handler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestInviteHandlerForbiddenForNonOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(&stubEnrollmentRepo{}, publishedOpenCourse())

	body := strings.NewReader(`{"email":"lea@example.com"}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/invites", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "other-user", Role: models.RoleInstructor})

	handler.Invite(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
