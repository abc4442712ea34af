package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/lms-api/internal/models"
)

func TestQuizRepositoryCreateAttemptPassAwardsTierPoints(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1 AND user_id = $2")).
		WithArgs("quiz-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_attempts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_progress")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempt := &models.QuizAttempt{QuizID: "quiz-1", UserID: "user-1", Score: 80}
	reward := models.QuizReward{Attempt1Points: 100, Attempt2Points: 50, Attempt3Points: 25, Attempt4PlusPoints: 10}

	err := repo.CreateAttempt(context.Background(), attempt, reward, "lesson-quiz", "course-1")
	require.NoError(t, err)
	require.Equal(t, 2, attempt.AttemptNumber)
	require.Equal(t, 50, attempt.PointsEarned)
	require.Equal(t, models.AttemptStatusGraded, attempt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCreateAttemptFailNoPointsNoCompletion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM quiz_attempts")).
		WithArgs("quiz-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_attempts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempt := &models.QuizAttempt{QuizID: "quiz-1", UserID: "user-1", Score: 40}
	reward := models.QuizReward{Attempt1Points: 100}

	err := repo.CreateAttempt(context.Background(), attempt, reward, "lesson-quiz", "course-1")
	require.NoError(t, err)
	require.Equal(t, 1, attempt.AttemptNumber)
	require.Zero(t, attempt.PointsEarned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryUpdateQuestionReplacesOptions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE quiz_questions SET question_text")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM quiz_options WHERE question_id = $1")).
		WithArgs("q-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_options")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_options")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	question := &models.QuizQuestion{ID: "q-1", QuizID: "quiz-1", QuestionText: "updated?"}
	options := []models.QuizOption{
		{OptionText: "yes", IsCorrect: true},
		{OptionText: "no"},
	}

	err := repo.UpdateQuestion(context.Background(), question, options)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryUpsertRewards(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_rewards")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertRewards(context.Background(), &models.QuizReward{QuizID: "quiz-1", Attempt1Points: 100})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
