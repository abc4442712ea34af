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

type stubQuizRepo struct {
	quiz     *models.Quiz
	key      []models.AnswerKeyEntry
	rewards  *models.QuizReward
	attempts []models.QuizAttempt
}

func (s *stubQuizRepo) Create(_ context.Context, quiz *models.Quiz) error {
	quiz.ID = "quiz-1"
	return nil
}

func (s *stubQuizRepo) FindByID(_ context.Context, _ string) (*models.Quiz, error) {
	if s.quiz == nil {
		return nil, sql.ErrNoRows
	}
	return s.quiz, nil
}

func (s *stubQuizRepo) ListByCourse(_ context.Context, _ string) ([]models.Quiz, error) {
	return nil, nil
}

func (s *stubQuizRepo) UpdateTitle(_ context.Context, _, _ string) error { return nil }

func (s *stubQuizRepo) ListQuestions(_ context.Context, _ string) ([]models.QuizQuestion, error) {
	return nil, nil
}

func (s *stubQuizRepo) FindQuestionByID(_ context.Context, _ string) (*models.QuizQuestion, error) {
	return nil, sql.ErrNoRows
}

func (s *stubQuizRepo) ListOptionsByQuiz(_ context.Context, _ string) ([]models.QuizOption, error) {
	return nil, nil
}

func (s *stubQuizRepo) CreateQuestion(_ context.Context, question *models.QuizQuestion, _ []models.QuizOption) error {
	question.ID = "question-1"
	return nil
}

func (s *stubQuizRepo) UpdateQuestion(_ context.Context, _ *models.QuizQuestion, _ []models.QuizOption) error {
	return nil
}

func (s *stubQuizRepo) DeleteQuestion(_ context.Context, _ string) error { return nil }

func (s *stubQuizRepo) UpsertRewards(_ context.Context, _ *models.QuizReward) error { return nil }

func (s *stubQuizRepo) FindRewards(_ context.Context, _ string) (*models.QuizReward, error) {
	if s.rewards == nil {
		return nil, sql.ErrNoRows
	}
	return s.rewards, nil
}

func (s *stubQuizRepo) AnswerKey(_ context.Context, _ string) ([]models.AnswerKeyEntry, error) {
	return s.key, nil
}

func (s *stubQuizRepo) CreateAttempt(_ context.Context, attempt *models.QuizAttempt, reward models.QuizReward, _, _ string) error {
	attempt.ID = "attempt-1"
	attempt.AttemptNumber = len(s.attempts) + 1
	if attempt.Score >= models.PassingScore {
		attempt.Status = "PASS"
		attempt.PointsEarned = reward.PointsForAttempt(attempt.AttemptNumber)
	} else {
		attempt.Status = "FAIL"
	}
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *stubQuizRepo) ListAttempts(_ context.Context, _, _ string) ([]models.QuizAttempt, error) {
	return s.attempts, nil
}

type stubQuizLessonReader struct{}

func (s *stubQuizLessonReader) FindQuizLesson(_ context.Context, _ string) (*models.Lesson, error) {
	return nil, sql.ErrNoRows
}

func newQuizHandler(repo *stubQuizRepo, course *models.Course) *QuizHandler {
	svc := service.NewQuizService(repo, &stubCourseReader{course: course}, &stubQuizLessonReader{}, nil, nil, nil)
	return NewQuizHandler(svc)
}

func gradedQuizRepo() *stubQuizRepo {
	return &stubQuizRepo{
		quiz: &models.Quiz{ID: "quiz-1", CourseID: "course-1", Title: "Checkpoint", CreatedBy: "instructor-1"},
		key: []models.AnswerKeyEntry{
			{QuestionID: "q1", CorrectOptionID: "q1-a"},
			{QuestionID: "q2", CorrectOptionID: "q2-b"},
			{QuestionID: "q3", CorrectOptionID: "q3-c"},
			{QuestionID: "q4", CorrectOptionID: "q4-d"},
		},
		rewards: &models.QuizReward{QuizID: "quiz-1", Attempt1Points: 100, Attempt2Points: 75, Attempt3Points: 50, Attempt4PlusPoints: 25},
	}
}

func TestSubmitAttemptHandlerPassingScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newQuizHandler(gradedQuizRepo(), publishedOpenCourse())

	body := strings.NewReader(`{"answers":[
		{"question_id":"q1","option_id":"q1-a"},
		{"question_id":"q2","option_id":"q2-b"},
		{"question_id":"q3","option_id":"q3-c"},
		{"question_id":"q4","option_id":"q4-x"}
	]}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/quizzes/quiz-1/attempts", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "quiz-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner})

	handler.SubmitAttempt(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(75), envelope.Data["score"])
	assert.Equal(t, true, envelope.Data["passed"])

	attempt, ok := envelope.Data["attempt"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, float64(100), attempt["points_earned"])
}

func TestSubmitAttemptHandlerRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newQuizHandler(gradedQuizRepo(), publishedOpenCourse())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/quizzes/quiz-1/attempts", strings.NewReader(`{"answers":[]}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "quiz-1"}}

	handler.SubmitAttempt(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitAttemptHandlerUnknownQuiz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newQuizHandler(&stubQuizRepo{}, publishedOpenCourse())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/quizzes/missing/attempts", strings.NewReader(`{"answers":[]}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner})

	handler.SubmitAttempt(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddQuestionHandlerRejectsTwoCorrectOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newQuizHandler(gradedQuizRepo(), publishedOpenCourse())

	body := strings.NewReader(`{"question_text":"Pick one","options":[
		{"option_text":"A","is_correct":true},
		{"option_text":"B","is_correct":true}
	]}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/quizzes/quiz-1/questions", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "quiz-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "instructor-1", Role: models.RoleInstructor})

	handler.AddQuestion(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error["code"])
}

func TestSetRewardsHandlerForbiddenForNonOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newQuizHandler(gradedQuizRepo(), publishedOpenCourse())

	body := strings.NewReader(`{"attempt_1_points":100,"attempt_2_points":75,"attempt_3_points":50,"attempt_4_plus_points":25}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/quizzes/quiz-1/rewards", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "quiz-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "someone-else", Role: models.RoleInstructor})

	handler.SetRewards(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
