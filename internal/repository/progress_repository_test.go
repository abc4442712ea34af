package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestProgressRepositoryUpsertReturnsRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "lesson_id", "course_id", "completed", "completed_at", "time_spent_seconds", "updated_at"}).
		AddRow("lp-1", "user-1", "lesson-1", "course-1", true, now, 120, now)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO lesson_progress")).
		WillReturnRows(rows)

	progress, err := repo.Upsert(context.Background(), "user-1", "lesson-1", "course-1", true, 120)
	require.NoError(t, err)
	require.True(t, progress.Completed)
	require.EqualValues(t, 120, progress.TimeSpentSeconds)
	require.NotNil(t, progress.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryUpsertTakesIncomingCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	// A later completed=false write reverts the flag, but the original
	// completion timestamp survives.
	completedAt := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "lesson_id", "course_id", "completed", "completed_at", "time_spent_seconds", "updated_at"}).
		AddRow("lp-1", "user-1", "lesson-1", "course-1", false, completedAt, 180, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("completed = EXCLUDED.completed")).
		WithArgs(sqlmock.AnyArg(), "user-1", "lesson-1", "course-1", false, sqlmock.AnyArg(), int64(60)).
		WillReturnRows(rows)

	progress, err := repo.Upsert(context.Background(), "user-1", "lesson-1", "course-1", false, 60)
	require.NoError(t, err)
	require.False(t, progress.Completed)
	require.NotNil(t, progress.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryCourseCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	rows := sqlmock.NewRows([]string{"completed", "total"}).AddRow(3, 10)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	completed, total, err := repo.CourseCounts(context.Background(), "user-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, 3, completed)
	require.Equal(t, 10, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryLearnerStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	rows := sqlmock.NewRows([]string{"enrolled_courses", "completed_lessons", "total_points"}).AddRow(2, 14, 350)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	stats, err := repo.LearnerStats(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.EnrolledCourses)
	require.Equal(t, 14, stats.CompletedLessons)
	require.EqualValues(t, 350, stats.TotalPoints)
	require.NoError(t, mock.ExpectationsWereMet())
}
