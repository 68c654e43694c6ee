package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student is the authenticated identity returned by register/login.
type Student struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Quiz is read-only from the client's point of view.
type Quiz struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	TotalQuestions *int   `json:"total_questions,omitempty"`
	TotalPoints    *int   `json:"total_points,omitempty"`
}

// Attempt is one student's run through a quiz. It is open while TimeEnd is nil.
type Attempt struct {
	ID        string              `json:"id"`
	Student   Student             `json:"student"`
	Quiz      Quiz                `json:"quiz"`
	TimeStart time.Time           `json:"time_start"`
	TimeEnd   *time.Time          `json:"time_end"`
	Score     decimal.NullDecimal `json:"score"`
}

func (a Attempt) Open() bool {
	return a.TimeEnd == nil
}

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "mcq"
	QuestionTypeFreeText       QuestionType = "ftq"
)

type Choice struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// Question is the in-flight view of the attempt's current question.
// QuestionNumber is 1-indexed; TotalQuestions is constant across an attempt.
type Question struct {
	QuestionID     int64        `json:"question_id"`
	QuestionType   QuestionType `json:"question_type"`
	QuestionText   string       `json:"question_text"`
	Points         int          `json:"points"`
	Choices        []Choice     `json:"choices,omitempty"`
	QuestionNumber int          `json:"question_number"`
	TotalQuestions int          `json:"total_questions"`
	QuizID         int64        `json:"quiz_id,omitempty"`
}

// Answer is either a choice or a free-text response, never both.
type Answer struct {
	ChoiceID         *int64  `json:"choice_id,omitempty"`
	FreeTextResponse *string `json:"free_text_response,omitempty"`
}

func ChoiceAnswer(id int64) Answer {
	return Answer{ChoiceID: &id}
}

func FreeTextAnswer(s string) Answer {
	return Answer{FreeTextResponse: &s}
}

// Results is the scored summary of a closed attempt. It is never persisted locally.
type Results struct {
	ID                  string          `json:"id"`
	Student             Student         `json:"student"`
	Quiz                Quiz            `json:"quiz"`
	TimeStart           time.Time       `json:"time_start"`
	TimeEnd             *time.Time      `json:"time_end"`
	Score               decimal.Decimal `json:"score"`
	TotalQuestions      int             `json:"total_questions"`
	CorrectAnswers      int             `json:"correct_answers"`
	TotalPointsEarned   decimal.Decimal `json:"total_points_earned"`
	TotalPossiblePoints decimal.Decimal `json:"total_possible_points"`
	TimeTaken           *string         `json:"time_taken"`
	Answers             []AnswerResult  `json:"answers"`
}

type AnswerResult struct {
	QuestionText  string          `json:"question_text"`
	IsCorrect     bool            `json:"is_correct"`
	PointsEarned  decimal.Decimal `json:"points_earned"`
	CorrectAnswer *string         `json:"correct_answer"`
	StudentAnswer *string         `json:"student_answer"`
}

// ProgressMarker points at the attempt a student is believed to have in flight.
// It is a hint; the server is the source of truth.
type ProgressMarker struct {
	StudentID string `json:"studentId"`
	AttemptID string `json:"attemptId"`
}
