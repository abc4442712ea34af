package models

// CompletionFunnel counts learners by progress bucket for one course.
type CompletionFunnel struct {
	CourseID   string `json:"course_id"`
	YetToStart int    `db:"yet_to_start" json:"yet_to_start"`
	InProgress int    `db:"in_progress" json:"in_progress"`
	Completed  int    `db:"completed" json:"completed"`
	Enrolled   int    `db:"enrolled" json:"enrolled"`
}

// LearnerReportRow is one learner's standing within a course.
type LearnerReportRow struct {
	UserID           string  `db:"user_id" json:"user_id"`
	FullName         string  `db:"full_name" json:"full_name"`
	Email            string  `db:"email" json:"email"`
	CompletedLessons int     `db:"completed_lessons" json:"completed_lessons"`
	TotalLessons     int     `db:"total_lessons" json:"total_lessons"`
	Percentage       float64 `db:"percentage" json:"percentage"`
	HighScore        int     `db:"high_score" json:"high_score"`
	TotalPoints      int64   `db:"total_points" json:"total_points"`
}

// InstructorOverviewRow rolls one owned course up for the instructor dashboard.
type InstructorOverviewRow struct {
	CourseID       string  `db:"course_id" json:"course_id"`
	CourseTitle    string  `db:"course_title" json:"course_title"`
	IsPublished    bool    `db:"is_published" json:"is_published"`
	EnrolledCount  int     `db:"enrolled_count" json:"enrolled_count"`
	CompletedCount int     `db:"completed_count" json:"completed_count"`
	AvgRating      float64 `db:"avg_rating" json:"avg_rating"`
	ReviewCount    int     `db:"review_count" json:"review_count"`
	TotalViews     int64   `db:"total_views" json:"total_views"`
}
