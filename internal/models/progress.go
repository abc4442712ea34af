package models

import "time"

// LessonProgress tracks a learner's state for one lesson. One row per
// (user, lesson); time spent accumulates, completion is write-once.
type LessonProgress struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"user_id"`
	LessonID         string     `db:"lesson_id" json:"lesson_id"`
	CourseID         string     `db:"course_id" json:"course_id"`
	Completed        bool       `db:"completed" json:"completed"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	TimeSpentSeconds int64      `db:"time_spent_seconds" json:"time_spent_seconds"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// TrackProgressRequest records lesson activity for the caller.
type TrackProgressRequest struct {
	Completed        bool  `json:"completed"`
	TimeSpentSeconds int64 `json:"time_spent_seconds" validate:"omitempty,min=0"`
}

// CourseProgress summarizes a learner's completion within a course.
type CourseProgress struct {
	CourseID         string  `json:"course_id"`
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	Percentage       float64 `json:"percentage"`
}

// LearnerStats aggregates a learner's lifetime activity.
type LearnerStats struct {
	EnrolledCourses  int    `db:"enrolled_courses" json:"enrolled_courses"`
	CompletedLessons int    `db:"completed_lessons" json:"completed_lessons"`
	TotalPoints      int64  `db:"total_points" json:"total_points"`
	Badge            string `json:"badge"`
}

// BadgeForPoints maps lifetime points to the server badge scale.
func BadgeForPoints(points int64) string {
	switch {
	case points < 100:
		return "Novice"
	case points < 500:
		return "Intermediate"
	case points < 1000:
		return "Advanced"
	default:
		return "Expert"
	}
}
