package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/telemetry"
)

type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginRequest struct {
	Email string `json:"email"`
}

type AuthResponse struct {
	Message string         `json:"message"`
	Student domain.Student `json:"student"`
}

// Register creates a new student. Both name and email are required.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Name, req.Email = strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		return nil, errors.InvalidArgument("Both email and name are required for registration")
	}

	var resp AuthResponse
	if err := c.Do(telemetry.WithOperation(ctx, "register"), http.MethodPost, "/students/", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Login authenticates an existing student by email.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return nil, errors.InvalidArgument("Email is required for login")
	}

	var resp AuthResponse
	if err := c.Do(telemetry.WithOperation(ctx, "login"), http.MethodPost, "/students/login/", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	if err := c.Do(telemetry.WithOperation(ctx, "list_quizzes"), http.MethodGet, "/quizzes/", nil, &quizzes); err != nil {
		return nil, err
	}

	return quizzes, nil
}

func (c *Client) GetQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error) {
	var q domain.Quiz
	path := fmt.Sprintf("/quizzes/%d/", quizID)
	if err := c.Do(telemetry.WithOperation(ctx, "get_quiz"), http.MethodGet, path, nil, &q); err != nil {
		return nil, err
	}

	return &q, nil
}

type CreateAttemptRequest struct {
	QuizID    int64 `json:"quiz_id"`
	StudentID int64 `json:"student_id"`
}

// CreateAttempt starts an attempt. The backend hands back the open attempt instead when one exists.
func (c *Client) CreateAttempt(ctx context.Context, req CreateAttemptRequest) (*domain.Attempt, error) {
	var a domain.Attempt
	if err := c.Do(telemetry.WithOperation(ctx, "create_attempt"), http.MethodPost, "/attempts/", req, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

// ListStudentAttempts returns every attempt of a student, open or closed, in server order.
func (c *Client) ListStudentAttempts(ctx context.Context, studentID int64) ([]domain.Attempt, error) {
	var attempts []domain.Attempt
	path := "/attempts/?student_id=" + strconv.FormatInt(studentID, 10)
	if err := c.Do(telemetry.WithOperation(ctx, "list_attempts"), http.MethodGet, path, nil, &attempts); err != nil {
		return nil, err
	}

	return attempts, nil
}

// CurrentQuestion is read-only; calling it twice without a submission returns the same question.
func (c *Client) CurrentQuestion(ctx context.Context, attemptID string) (*domain.Question, error) {
	var q domain.Question
	path := fmt.Sprintf("/attempts/%s/current_question/", url.PathEscape(attemptID))
	if err := c.Do(telemetry.WithOperation(ctx, "current_question"), http.MethodGet, path, nil, &q); err != nil {
		return nil, attemptClosed(err)
	}

	return &q, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, attemptID string, a domain.Answer) error {
	path := fmt.Sprintf("/attempts/%s/answer/", url.PathEscape(attemptID))
	if err := c.Do(telemetry.WithOperation(ctx, "submit_answer"), http.MethodPost, path, a, nil); err != nil {
		return attemptClosed(err)
	}

	return nil
}

func (c *Client) Results(ctx context.Context, attemptID string) (*domain.Results, error) {
	var r domain.Results
	path := fmt.Sprintf("/attempts/%s/results/", url.PathEscape(attemptID))
	if err := c.Do(telemetry.WithOperation(ctx, "results"), http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}

	return &r, nil
}
