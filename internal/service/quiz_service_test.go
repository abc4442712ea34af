package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

type fakeQuizRepo struct {
	quiz           *models.Quiz
	key            []models.AnswerKeyEntry
	rewards        *models.QuizReward
	lastAttempt    *models.QuizAttempt
	lastReward     models.QuizReward
	lastLessonID   string
	lastCourseID   string
	createdQuizzes []*models.Quiz
}

func (f *fakeQuizRepo) Create(_ context.Context, quiz *models.Quiz) error {
	quiz.ID = "quiz-1"
	f.createdQuizzes = append(f.createdQuizzes, quiz)
	return nil
}

func (f *fakeQuizRepo) FindByID(_ context.Context, _ string) (*models.Quiz, error) {
	if f.quiz == nil {
		return nil, sql.ErrNoRows
	}
	return f.quiz, nil
}

func (f *fakeQuizRepo) ListByCourse(_ context.Context, _ string) ([]models.Quiz, error) {
	return nil, nil
}

func (f *fakeQuizRepo) UpdateTitle(_ context.Context, _, _ string) error { return nil }

func (f *fakeQuizRepo) ListQuestions(_ context.Context, _ string) ([]models.QuizQuestion, error) {
	return nil, nil
}

func (f *fakeQuizRepo) FindQuestionByID(_ context.Context, _ string) (*models.QuizQuestion, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeQuizRepo) ListOptionsByQuiz(_ context.Context, _ string) ([]models.QuizOption, error) {
	return nil, nil
}

func (f *fakeQuizRepo) CreateQuestion(_ context.Context, _ *models.QuizQuestion, _ []models.QuizOption) error {
	return nil
}

func (f *fakeQuizRepo) UpdateQuestion(_ context.Context, _ *models.QuizQuestion, _ []models.QuizOption) error {
	return nil
}

func (f *fakeQuizRepo) DeleteQuestion(_ context.Context, _ string) error { return nil }

func (f *fakeQuizRepo) UpsertRewards(_ context.Context, _ *models.QuizReward) error { return nil }

func (f *fakeQuizRepo) FindRewards(_ context.Context, _ string) (*models.QuizReward, error) {
	if f.rewards == nil {
		return nil, sql.ErrNoRows
	}
	return f.rewards, nil
}

func (f *fakeQuizRepo) AnswerKey(_ context.Context, _ string) ([]models.AnswerKeyEntry, error) {
	return f.key, nil
}

func (f *fakeQuizRepo) CreateAttempt(_ context.Context, attempt *models.QuizAttempt, reward models.QuizReward, quizLessonID, courseID string) error {
	attempt.ID = "attempt-1"
	attempt.AttemptNumber = 1
	attempt.Status = models.AttemptStatusGraded
	if attempt.Score >= models.PassingScore {
		attempt.PointsEarned = reward.PointsForAttempt(attempt.AttemptNumber)
	}
	f.lastAttempt = attempt
	f.lastReward = reward
	f.lastLessonID = quizLessonID
	f.lastCourseID = courseID
	return nil
}

func (f *fakeQuizRepo) ListAttempts(_ context.Context, _, _ string) ([]models.QuizAttempt, error) {
	if f.lastAttempt == nil {
		return nil, nil
	}
	return []models.QuizAttempt{*f.lastAttempt}, nil
}

type fakeQuizLessonReader struct {
	lesson *models.Lesson
}

func (f *fakeQuizLessonReader) FindQuizLesson(_ context.Context, _ string) (*models.Lesson, error) {
	if f.lesson == nil {
		return nil, sql.ErrNoRows
	}
	return f.lesson, nil
}

type fakeMetrics struct {
	passes int
	fails  int
}

func (f *fakeMetrics) RecordQuizAttempt(passed bool) {
	if passed {
		f.passes++
	} else {
		f.fails++
	}
}

func quizFixture() *models.Quiz {
	return &models.Quiz{ID: "quiz-1", CourseID: "course-1", Title: "Checkpoint", CreatedBy: "instructor-1"}
}

func answerKey() []models.AnswerKeyEntry {
	return []models.AnswerKeyEntry{
		{QuestionID: "q1", CorrectOptionID: "q1-a"},
		{QuestionID: "q2", CorrectOptionID: "q2-b"},
		{QuestionID: "q3", CorrectOptionID: "q3-c"},
		{QuestionID: "q4", CorrectOptionID: "q4-d"},
	}
}

func TestSubmitAttemptGradesAndPasses(t *testing.T) {
	repo := &fakeQuizRepo{
		quiz:    quizFixture(),
		key:     answerKey(),
		rewards: &models.QuizReward{QuizID: "quiz-1", Attempt1Points: 100},
	}
	lessons := &fakeQuizLessonReader{lesson: &models.Lesson{ID: "lesson-quiz", CourseID: "course-1", Type: models.LessonQuiz}}
	metrics := &fakeMetrics{}
	svc := NewQuizService(repo, &fakeCourseReader{course: openCourse()}, lessons, metrics, nil, nil)

	resp, err := svc.SubmitAttempt(context.Background(), "quiz-1", "learner-1", models.SubmitAttemptRequest{
		Answers: []models.AttemptAnswer{
			{QuestionID: "q1", OptionID: "q1-a"},
			{QuestionID: "q2", OptionID: "q2-b"},
			{QuestionID: "q3", OptionID: "q3-c"},
			{QuestionID: "q4", OptionID: "q4-x"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, resp.CorrectCount)
	require.Equal(t, 4, resp.TotalQuestions)
	require.Equal(t, 75, resp.Score)
	require.True(t, resp.Passed)
	require.Equal(t, 100, resp.Attempt.PointsEarned)
	require.Equal(t, "lesson-quiz", repo.lastLessonID)
	require.Equal(t, 1, metrics.passes)
}

func TestSubmitAttemptFailSkipsLessonCompletion(t *testing.T) {
	repo := &fakeQuizRepo{
		quiz:    quizFixture(),
		key:     answerKey(),
		rewards: &models.QuizReward{QuizID: "quiz-1", Attempt1Points: 100},
	}
	lessons := &fakeQuizLessonReader{lesson: &models.Lesson{ID: "lesson-quiz", CourseID: "course-1", Type: models.LessonQuiz}}
	metrics := &fakeMetrics{}
	svc := NewQuizService(repo, &fakeCourseReader{course: openCourse()}, lessons, metrics, nil, nil)

	resp, err := svc.SubmitAttempt(context.Background(), "quiz-1", "learner-1", models.SubmitAttemptRequest{
		Answers: []models.AttemptAnswer{
			{QuestionID: "q1", OptionID: "q1-a"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 25, resp.Score)
	require.False(t, resp.Passed)
	require.Zero(t, resp.Attempt.PointsEarned)
	require.Empty(t, repo.lastLessonID)
	require.Equal(t, 1, metrics.fails)
}

func TestSubmitAttemptNoQuestionsScoresZero(t *testing.T) {
	repo := &fakeQuizRepo{quiz: quizFixture()}
	svc := NewQuizService(repo, &fakeCourseReader{course: openCourse()}, &fakeQuizLessonReader{}, &fakeMetrics{}, nil, nil)

	resp, err := svc.SubmitAttempt(context.Background(), "quiz-1", "learner-1", models.SubmitAttemptRequest{
		Answers: []models.AttemptAnswer{},
	})
	require.NoError(t, err)
	require.Zero(t, resp.Score)
	require.False(t, resp.Passed)
	require.Zero(t, resp.TotalQuestions)
}

func TestSubmitAttemptMissingRewardsDefaultsToZeroPoints(t *testing.T) {
	repo := &fakeQuizRepo{quiz: quizFixture(), key: answerKey()}
	svc := NewQuizService(repo, &fakeCourseReader{course: openCourse()}, &fakeQuizLessonReader{}, &fakeMetrics{}, nil, nil)

	resp, err := svc.SubmitAttempt(context.Background(), "quiz-1", "learner-1", models.SubmitAttemptRequest{
		Answers: []models.AttemptAnswer{
			{QuestionID: "q1", OptionID: "q1-a"},
			{QuestionID: "q2", OptionID: "q2-b"},
			{QuestionID: "q3", OptionID: "q3-c"},
			{QuestionID: "q4", OptionID: "q4-d"},
		},
	})
	require.NoError(t, err)
	require.True(t, resp.Passed)
	require.Zero(t, resp.Attempt.PointsEarned)
	require.Zero(t, repo.lastReward.Attempt1Points)
}

func TestSubmitAttemptUnknownQuizRejected(t *testing.T) {
	svc := NewQuizService(&fakeQuizRepo{}, &fakeCourseReader{course: openCourse()}, &fakeQuizLessonReader{}, &fakeMetrics{}, nil, nil)

	_, err := svc.SubmitAttempt(context.Background(), "missing", "learner-1", models.SubmitAttemptRequest{Answers: []models.AttemptAnswer{}})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAddQuestionRequiresExactlyOneCorrectOption(t *testing.T) {
	repo := &fakeQuizRepo{quiz: quizFixture()}
	svc := NewQuizService(repo, &fakeCourseReader{course: openCourse()}, &fakeQuizLessonReader{}, &fakeMetrics{}, nil, nil)
	actor := Permissions{UserID: "instructor-1", Role: models.RoleInstructor}

	_, err := svc.AddQuestion(context.Background(), "quiz-1", models.CreateQuestionRequest{
		QuestionText: "Which keyword declares a constant?",
		Options: []models.QuestionOptionInput{
			{OptionText: "const", IsCorrect: true},
			{OptionText: "let", IsCorrect: true},
		},
	}, actor)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.AddQuestion(context.Background(), "quiz-1", models.CreateQuestionRequest{
		QuestionText: "Which keyword declares a constant?",
		Options: []models.QuestionOptionInput{
			{OptionText: "const", IsCorrect: true},
			{OptionText: "let"},
		},
	}, actor)
	require.NoError(t, err)
}

func TestQuizAuthoringOnlyOwner(t *testing.T) {
	repo := &fakeQuizRepo{quiz: quizFixture()}
	svc := NewQuizService(repo, &fakeCourseReader{course: openCourse()}, &fakeQuizLessonReader{}, &fakeMetrics{}, nil, nil)
	actor := Permissions{UserID: "other-instructor", Role: models.RoleInstructor}

	_, err := svc.Update(context.Background(), "quiz-1", models.UpdateQuizRequest{Title: "Renamed"}, actor)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRewardTierByAttemptNumber(t *testing.T) {
	reward := models.QuizReward{Attempt1Points: 100, Attempt2Points: 50, Attempt3Points: 25, Attempt4PlusPoints: 10}
	require.Equal(t, 100, reward.PointsForAttempt(1))
	require.Equal(t, 50, reward.PointsForAttempt(2))
	require.Equal(t, 25, reward.PointsForAttempt(3))
	require.Equal(t, 10, reward.PointsForAttempt(4))
	require.Equal(t, 10, reward.PointsForAttempt(9))
}
