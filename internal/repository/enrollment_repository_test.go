package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/lms-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "course_id", "status", "invite_token", "invited_by", "payment_txn_id", "enrolled_at", "created_at", "updated_at"})
}

func TestEnrollmentRepositoryUpsertActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnRows(enrollmentRows().
			AddRow("enr-1", "user-1", "course-1", models.EnrollmentActive, nil, nil, nil, now, now, now))

	enrollment, err := repo.UpsertActive(context.Background(), "user-1", "course-1", nil)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentActive, enrollment.Status)
	require.NotNil(t, enrollment.EnrolledAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryActivateInvited(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	token := "hashed-token"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("user-1", "course-1", models.EnrollmentInvited, token).
		WillReturnRows(enrollmentRows().
			AddRow("enr-1", "user-1", "course-1", models.EnrollmentInvited, &token, nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE enrollments SET status = $2, invite_token = NULL")).
		WillReturnRows(enrollmentRows().
			AddRow("enr-1", "user-1", "course-1", models.EnrollmentActive, nil, nil, nil, now, now, now))
	mock.ExpectCommit()

	enrollment, err := repo.ActivateInvited(context.Background(), "user-1", "course-1", token)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentActive, enrollment.Status)
	require.Nil(t, enrollment.InviteToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryActivateInvitedNoMatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("user-1", "course-1", models.EnrollmentInvited, "wrong-token").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.ActivateInvited(context.Background(), "user-1", "course-1", "wrong-token")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE enrollments")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateStatus(context.Background(), "user-1", "course-1", models.EnrollmentCompleted)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
