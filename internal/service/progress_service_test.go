package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

type fakeProgressRepo struct {
	upserted      *models.LessonProgress
	lastCompleted bool
	lastDelta     int64
	completed     int
	total         int
	stats         *models.LearnerStats
}

func (f *fakeProgressRepo) Upsert(_ context.Context, userID, lessonID, courseID string, completed bool, timeSpentDelta int64) (*models.LessonProgress, error) {
	f.lastCompleted = completed
	f.lastDelta = timeSpentDelta
	f.upserted = &models.LessonProgress{
		UserID:           userID,
		LessonID:         lessonID,
		CourseID:         courseID,
		Completed:        completed,
		TimeSpentSeconds: timeSpentDelta,
	}
	return f.upserted, nil
}

func (f *fakeProgressRepo) FindByUserAndLesson(_ context.Context, _, _ string) (*models.LessonProgress, error) {
	if f.upserted == nil {
		return nil, sql.ErrNoRows
	}
	return f.upserted, nil
}

func (f *fakeProgressRepo) ListByUserAndCourse(_ context.Context, _, _ string) ([]models.LessonProgress, error) {
	return nil, nil
}

func (f *fakeProgressRepo) CourseCounts(_ context.Context, _, _ string) (int, int, error) {
	return f.completed, f.total, nil
}

func (f *fakeProgressRepo) LearnerStats(_ context.Context, _ string) (*models.LearnerStats, error) {
	return f.stats, nil
}

type fakeLessonReader struct {
	lesson *models.Lesson
}

func (f *fakeLessonReader) FindByID(_ context.Context, _ string) (*models.Lesson, error) {
	if f.lesson == nil {
		return nil, sql.ErrNoRows
	}
	return f.lesson, nil
}

type fakeGate struct {
	allow bool
}

func (f *fakeGate) CanViewContent(_ context.Context, _ Permissions, _ *models.Course) (bool, error) {
	return f.allow, nil
}

func videoLesson() *models.Lesson {
	return &models.Lesson{ID: "lesson-1", CourseID: "course-1", Type: models.LessonVideo}
}

func TestTrackAccumulatesTime(t *testing.T) {
	repo := &fakeProgressRepo{}
	svc := NewProgressService(repo, &fakeLessonReader{lesson: videoLesson()}, &fakeCourseReader{course: openCourse()}, &fakeGate{allow: true}, nil, nil)
	actor := Permissions{UserID: "learner-1", Role: models.RoleLearner}

	progress, err := svc.Track(context.Background(), actor, "lesson-1", models.TrackProgressRequest{TimeSpentSeconds: 90})
	require.NoError(t, err)
	require.EqualValues(t, 90, repo.lastDelta)
	require.False(t, progress.Completed)
}

func TestTrackQuizLessonCompletionRejected(t *testing.T) {
	lesson := videoLesson()
	lesson.Type = models.LessonQuiz
	svc := NewProgressService(&fakeProgressRepo{}, &fakeLessonReader{lesson: lesson}, &fakeCourseReader{course: openCourse()}, &fakeGate{allow: true}, nil, nil)
	actor := Permissions{UserID: "learner-1", Role: models.RoleLearner}

	_, err := svc.Track(context.Background(), actor, "lesson-1", models.TrackProgressRequest{Completed: true})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTrackBlockedWithoutAccess(t *testing.T) {
	svc := NewProgressService(&fakeProgressRepo{}, &fakeLessonReader{lesson: videoLesson()}, &fakeCourseReader{course: openCourse()}, &fakeGate{allow: false}, nil, nil)
	actor := Permissions{UserID: "learner-1", Role: models.RoleLearner}

	_, err := svc.Track(context.Background(), actor, "lesson-1", models.TrackProgressRequest{Completed: true})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestLessonProgressEmptyRowWhenUntouched(t *testing.T) {
	svc := NewProgressService(&fakeProgressRepo{}, &fakeLessonReader{lesson: videoLesson()}, &fakeCourseReader{course: openCourse()}, &fakeGate{allow: true}, nil, nil)
	actor := Permissions{UserID: "learner-1", Role: models.RoleLearner}

	progress, err := svc.LessonProgress(context.Background(), actor, "lesson-1")
	require.NoError(t, err)
	require.False(t, progress.Completed)
	require.Zero(t, progress.TimeSpentSeconds)
	require.Equal(t, "lesson-1", progress.LessonID)
}

func TestCourseProgressPercentage(t *testing.T) {
	repo := &fakeProgressRepo{completed: 2, total: 3}
	svc := NewProgressService(repo, &fakeLessonReader{}, &fakeCourseReader{course: openCourse()}, &fakeGate{allow: true}, nil, nil)
	actor := Permissions{UserID: "learner-1", Role: models.RoleLearner}

	progress, err := svc.CourseProgress(context.Background(), actor, "course-1")
	require.NoError(t, err)
	require.Equal(t, 2, progress.CompletedLessons)
	require.Equal(t, 3, progress.TotalLessons)
	require.EqualValues(t, 67, progress.Percentage)
}

func TestCourseProgressPercentageRoundsDown(t *testing.T) {
	repo := &fakeProgressRepo{completed: 1, total: 3}
	svc := NewProgressService(repo, &fakeLessonReader{}, &fakeCourseReader{course: openCourse()}, &fakeGate{allow: true}, nil, nil)
	actor := Permissions{UserID: "learner-1", Role: models.RoleLearner}

	progress, err := svc.CourseProgress(context.Background(), actor, "course-1")
	require.NoError(t, err)
	require.EqualValues(t, 33, progress.Percentage)
}

func TestCourseProgressEmptyCourse(t *testing.T) {
	repo := &fakeProgressRepo{}
	svc := NewProgressService(repo, &fakeLessonReader{}, &fakeCourseReader{course: openCourse()}, &fakeGate{allow: true}, nil, nil)
	actor := Permissions{UserID: "learner-1", Role: models.RoleLearner}

	progress, err := svc.CourseProgress(context.Background(), actor, "course-1")
	require.NoError(t, err)
	require.Zero(t, progress.Percentage)
}

func TestStatsAppliesBadge(t *testing.T) {
	cases := []struct {
		points int64
		badge  string
	}{
		{0, "Novice"},
		{99, "Novice"},
		{100, "Intermediate"},
		{499, "Intermediate"},
		{500, "Advanced"},
		{999, "Advanced"},
		{1000, "Expert"},
	}
	for _, tc := range cases {
		repo := &fakeProgressRepo{stats: &models.LearnerStats{TotalPoints: tc.points}}
		svc := NewProgressService(repo, &fakeLessonReader{}, &fakeCourseReader{}, &fakeGate{allow: true}, nil, nil)

		stats, err := svc.Stats(context.Background(), Permissions{UserID: "learner-1"})
		require.NoError(t, err)
		require.Equal(t, tc.badge, stats.Badge, "points=%d", tc.points)
	}
}
