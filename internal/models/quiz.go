package models

import "time"

// Quiz groups questions under a course.
type Quiz struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// QuizQuestion is a single question within a quiz.
type QuizQuestion struct {
	ID           string    `db:"id" json:"id"`
	QuizID       string    `db:"quiz_id" json:"quiz_id"`
	QuestionText string    `db:"question_text" json:"question_text"`
	OrderIndex   int       `db:"order_index" json:"order_index"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// QuizOption is an answer choice for a question. IsCorrect is never
// serialized to learners.
type QuizOption struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	OptionText string `db:"option_text" json:"option_text"`
	IsCorrect  bool   `db:"is_correct" json:"-"`
	OrderIndex int    `db:"order_index" json:"order_index"`
}

// QuizReward defines points awarded per passing attempt tier.
type QuizReward struct {
	QuizID             string `db:"quiz_id" json:"quiz_id"`
	Attempt1Points     int    `db:"attempt_1_points" json:"attempt_1_points"`
	Attempt2Points     int    `db:"attempt_2_points" json:"attempt_2_points"`
	Attempt3Points     int    `db:"attempt_3_points" json:"attempt_3_points"`
	Attempt4PlusPoints int    `db:"attempt_4_plus_points" json:"attempt_4_plus_points"`
}

// PointsForAttempt returns the reward tier for the given attempt ordinal.
func (r QuizReward) PointsForAttempt(attemptNumber int) int {
	switch attemptNumber {
	case 1:
		return r.Attempt1Points
	case 2:
		return r.Attempt2Points
	case 3:
		return r.Attempt3Points
	default:
		return r.Attempt4PlusPoints
	}
}

// QuizAttempt is an immutable graded submission record.
type QuizAttempt struct {
	ID            string    `db:"id" json:"id"`
	QuizID        string    `db:"quiz_id" json:"quiz_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Score         int       `db:"score" json:"score"`
	AttemptNumber int       `db:"attempt_number" json:"attempt_number"`
	PointsEarned  int       `db:"points_earned" json:"points_earned"`
	Status        string    `db:"status" json:"status"`
	CompletedAt   time.Time `db:"completed_at" json:"completed_at"`
}

// AttemptStatusGraded is the only attempt status; grading is synchronous.
const AttemptStatusGraded = "GRADED"

// PassingScore is the minimum score that counts as a pass.
const PassingScore = 70

// QuestionWithOptions pairs a question with its ordered options.
type QuestionWithOptions struct {
	QuizQuestion
	Options []QuizOption `json:"options"`
}

// QuizFull is the learner-facing quiz payload: questions and options
// without answers, plus the reward schedule.
type QuizFull struct {
	Quiz
	Questions []QuestionWithOptions `json:"questions"`
	Rewards   *QuizReward           `json:"rewards,omitempty"`
}

// CreateQuizRequest payload for creating a quiz.
type CreateQuizRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
	Title    string `json:"title" validate:"required,min=1,max=200"`
}

// UpdateQuizRequest payload for renaming a quiz.
type UpdateQuizRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
}

// QuestionOptionInput is one answer choice in an authoring payload.
type QuestionOptionInput struct {
	OptionText string `json:"option_text" validate:"required,min=1,max=500"`
	IsCorrect  bool   `json:"is_correct"`
}

// CreateQuestionRequest payload for adding a question with its options.
type CreateQuestionRequest struct {
	QuestionText string                `json:"question_text" validate:"required,min=1,max=2000"`
	OrderIndex   int                   `json:"order_index" validate:"omitempty,min=0"`
	Options      []QuestionOptionInput `json:"options" validate:"required,min=2,max=10,dive"`
}

// UpdateQuestionRequest payload for replacing a question's text and options.
type UpdateQuestionRequest struct {
	QuestionText string                `json:"question_text" validate:"required,min=1,max=2000"`
	Options      []QuestionOptionInput `json:"options" validate:"required,min=2,max=10,dive"`
}

// SetRewardsRequest payload replacing all four reward tiers at once.
type SetRewardsRequest struct {
	Attempt1Points     int `json:"attempt_1_points" validate:"min=0"`
	Attempt2Points     int `json:"attempt_2_points" validate:"min=0"`
	Attempt3Points     int `json:"attempt_3_points" validate:"min=0"`
	Attempt4PlusPoints int `json:"attempt_4_plus_points" validate:"min=0"`
}

// SubmitAttemptRequest carries the learner's chosen option per question.
type SubmitAttemptRequest struct {
	Answers []AttemptAnswer `json:"answers" validate:"omitempty,dive"`
}

// AttemptAnswer is one (question, selected option) pair.
type AttemptAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	OptionID   string `json:"option_id" validate:"required"`
}

// SubmitAttemptResponse summarizes the graded attempt.
type SubmitAttemptResponse struct {
	Attempt        QuizAttempt `json:"attempt"`
	CorrectCount   int         `json:"correct_count"`
	TotalQuestions int         `json:"total_questions"`
	Score          int         `json:"score"`
	Passed         bool        `json:"passed"`
}

// AnswerKeyEntry maps a question to its single correct option.
type AnswerKeyEntry struct {
	QuestionID      string `db:"question_id"`
	CorrectOptionID string `db:"correct_option_id"`
}
