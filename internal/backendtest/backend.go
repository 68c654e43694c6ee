// Package backendtest runs an in-memory quiz backend over httptest for tests.
// It reproduces the REST contract the client depends on, including the two ways the backend
// signals a finished attempt: 404 when a quiz has no questions, and 400 "Quiz already completed"
// once the last answer closed the attempt.
package backendtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizclient/internal/domain"
)

var setMode sync.Once

type Quiz struct {
	ID        int64
	Name      string
	Questions []Question
}

type Question struct {
	ID      int64
	Type    domain.QuestionType
	Text    string
	Points  int
	Choices []Choice
}

type Choice struct {
	ID      int64
	Content string
	Correct bool
}

type answer struct {
	question *Question
	choice   *Choice
	text     *string
	correct  bool
}

type attempt struct {
	domain.Attempt
	current int
	answers []answer
}

type failure struct {
	status int
	msg    string
}

type Backend struct {
	mu            sync.Mutex
	students      map[int64]domain.Student
	nextStudentID int64
	quizzes       []Quiz
	attempts      map[string]*attempt
	order         []string
	failures      map[string][]failure
	calls         map[string]int

	server *httptest.Server
}

// New starts a backend serving the given quizzes. It is closed when the test ends.
func New(t *testing.T, quizzes ...Quiz) *Backend {
	t.Helper()
	setMode.Do(func() { gin.SetMode(gin.TestMode) })

	b := &Backend{
		students:      make(map[int64]domain.Student),
		nextStudentID: 1,
		quizzes:       quizzes,
		attempts:      make(map[string]*attempt),
		failures:      make(map[string][]failure),
		calls:         make(map[string]int),
	}

	e := gin.New()
	e.POST("/api/students/", b.handle("register", b.register))
	e.POST("/api/students/login/", b.handle("login", b.login))
	e.GET("/api/quizzes/", b.handle("list_quizzes", b.listQuizzes))
	e.GET("/api/quizzes/:id/", b.handle("get_quiz", b.getQuiz))
	e.POST("/api/attempts/", b.handle("create_attempt", b.createAttempt))
	e.GET("/api/attempts/", b.handle("list_attempts", b.listAttempts))
	e.GET("/api/attempts/:id/current_question/", b.handle("current_question", b.currentQuestion))
	e.POST("/api/attempts/:id/answer/", b.handle("submit_answer", b.submitAnswer))
	e.GET("/api/attempts/:id/results/", b.handle("results", b.results))

	b.server = httptest.NewServer(e)
	t.Cleanup(b.server.Close)

	return b
}

// URL is the API base URL, including the /api prefix.
func (b *Backend) URL() string {
	return b.server.URL + "/api"
}

// Calls returns how many requests reached the named operation.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// FailNext makes the next request to op fail with status and {"error": msg}.
func (b *Backend) FailNext(op string, status int, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], failure{status: status, msg: msg})
}

func (b *Backend) AddStudent(name, email string) domain.Student {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addStudent(name, email)
}

// OpenAttempt creates an open attempt directly, as if started from another device.
func (b *Backend) OpenAttempt(studentID, quizID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, _ := b.newAttempt(b.students[studentID], quizID)
	return a.ID
}

// CloseAttempt finishes an attempt without answering the remaining questions.
func (b *Backend) CloseAttempt(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if a, ok := b.attempts[id]; ok {
		b.close(a)
	}
}

func (b *Backend) handle(op string, h func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.calls[op]++
		if fs := b.failures[op]; len(fs) > 0 {
			b.failures[op] = fs[1:]
			c.JSON(fs[0].status, gin.H{"error": fs[0].msg})
			return
		}

		h(c)
	}
}

func (b *Backend) addStudent(name, email string) domain.Student {
	s := domain.Student{ID: b.nextStudentID, Name: name, Email: email}
	b.students[s.ID] = s
	b.nextStudentID++
	return s
}

func (b *Backend) register(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both email and name are required for registration"})
		return
	}

	for _, s := range b.students {
		if s.Email == req.Email {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Student with this email already exists. Please login instead."})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Student registered successfully!", "student": b.addStudent(req.Name, req.Email)})
}

func (b *Backend) login(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required for login"})
		return
	}

	for _, s := range b.students {
		if s.Email == req.Email {
			c.JSON(http.StatusOK, gin.H{"message": "Login successful", "student": s})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "Student not found. Please register first."})
}

func (b *Backend) quizSummary(q *Quiz) domain.Quiz {
	total, points := len(q.Questions), 0
	for _, qq := range q.Questions {
		points += qq.Points
	}

	return domain.Quiz{ID: q.ID, Name: q.Name, TotalQuestions: &total, TotalPoints: &points}
}

func (b *Backend) findQuiz(id int64) *Quiz {
	for i := range b.quizzes {
		if b.quizzes[i].ID == id {
			return &b.quizzes[i]
		}
	}
	return nil
}

func (b *Backend) listQuizzes(c *gin.Context) {
	quizzes := make([]domain.Quiz, 0, len(b.quizzes))
	for i := range b.quizzes {
		quizzes = append(quizzes, domain.Quiz{ID: b.quizzes[i].ID, Name: b.quizzes[i].Name})
	}
	sort.SliceStable(quizzes, func(i, j int) bool { return quizzes[i].Name < quizzes[j].Name })

	c.JSON(http.StatusOK, quizzes)
}

func (b *Backend) getQuiz(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	q := b.findQuiz(id)
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	c.JSON(http.StatusOK, b.quizSummary(q))
}

func (b *Backend) newAttempt(s domain.Student, quizID int64) (*attempt, bool) {
	for _, id := range b.order {
		a := b.attempts[id]
		if a.Student.ID == s.ID && a.Quiz.ID == quizID && a.Open() {
			return a, false
		}
	}

	q := b.findQuiz(quizID)
	a := &attempt{
		Attempt: domain.Attempt{
			ID:        uuid.NewString(),
			Student:   s,
			Quiz:      domain.Quiz{ID: q.ID, Name: q.Name},
			TimeStart: time.Now().UTC(),
		},
	}
	b.attempts[a.ID] = a
	b.order = append(b.order, a.ID)

	return a, true
}

func (b *Backend) createAttempt(c *gin.Context) {
	var req struct {
		QuizID    int64 `json:"quiz_id"`
		StudentID int64 `json:"student_id"`
	}
	_ = c.ShouldBindJSON(&req)

	s, ok := b.students[req.StudentID]
	if !ok || b.findQuiz(req.QuizID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quiz or Student not found"})
		return
	}

	a, created := b.newAttempt(s, req.QuizID)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	c.JSON(status, a.Attempt)
}

func (b *Backend) listAttempts(c *gin.Context) {
	sid, _ := strconv.ParseInt(c.Query("student_id"), 10, 64)

	attempts := make([]domain.Attempt, 0)
	for _, id := range b.order {
		if a := b.attempts[id]; a.Student.ID == sid {
			attempts = append(attempts, a.Attempt)
		}
	}

	c.JSON(http.StatusOK, attempts)
}

func (b *Backend) lookup(c *gin.Context) (*attempt, *Quiz, bool) {
	a, ok := b.attempts[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return nil, nil, false
	}

	if !a.Open() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quiz already completed"})
		return nil, nil, false
	}

	q := b.findQuiz(a.Quiz.ID)
	if len(q.Questions) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No questions found for this quiz"})
		return nil, nil, false
	}

	return a, q, true
}

func (b *Backend) currentQuestion(c *gin.Context) {
	a, q, ok := b.lookup(c)
	if !ok {
		return
	}

	qq := q.Questions[a.current]
	resp := domain.Question{
		QuestionID:     qq.ID,
		QuestionType:   qq.Type,
		QuestionText:   qq.Text,
		Points:         qq.Points,
		QuestionNumber: a.current + 1,
		TotalQuestions: len(q.Questions),
		QuizID:         q.ID,
	}
	for _, ch := range qq.Choices {
		resp.Choices = append(resp.Choices, domain.Choice{ID: ch.ID, Content: ch.Content})
	}

	c.JSON(http.StatusOK, resp)
}

func (b *Backend) submitAnswer(c *gin.Context) {
	a, q, ok := b.lookup(c)
	if !ok {
		return
	}

	var req domain.Answer
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	qq := &q.Questions[a.current]
	ans := answer{question: qq}

	switch qq.Type {
	case domain.QuestionTypeMultipleChoice:
		if req.ChoiceID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid choice"})
			return
		}
		for i := range qq.Choices {
			if qq.Choices[i].ID == *req.ChoiceID {
				ans.choice = &qq.Choices[i]
			}
		}
		if ans.choice == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid choice"})
			return
		}
		ans.correct = ans.choice.Correct
	case domain.QuestionTypeFreeText:
		ans.text = req.FreeTextResponse
		ans.correct = req.FreeTextResponse != nil && strings.TrimSpace(*req.FreeTextResponse) != ""
	}

	a.answers = append(a.answers, ans)

	if a.current < len(q.Questions)-1 {
		a.current++
		c.JSON(http.StatusOK, gin.H{"message": "Answer submitted successfully", "next_question_available": true})
		return
	}

	b.close(a)
	c.JSON(http.StatusOK, gin.H{"message": "Quiz completed!", "next_question_available": false})
}

func (b *Backend) close(a *attempt) {
	end := time.Now().UTC()
	a.TimeEnd = &end

	earned, possible := b.points(a)
	if possible.IsPositive() {
		a.Score = decimal.NewNullDecimal(earned.Div(possible).Mul(decimal.NewFromInt(100)))
	} else {
		a.Score = decimal.NewNullDecimal(decimal.Zero)
	}
}

func (b *Backend) points(a *attempt) (earned, possible decimal.Decimal) {
	for _, ans := range a.answers {
		if ans.correct {
			earned = earned.Add(decimal.NewFromInt(int64(ans.question.Points)))
		}
	}

	if q := b.findQuiz(a.Quiz.ID); q != nil {
		for _, qq := range q.Questions {
			possible = possible.Add(decimal.NewFromInt(int64(qq.Points)))
		}
	}

	return earned, possible
}

func (b *Backend) results(c *gin.Context) {
	a, ok := b.attempts[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	if a.Open() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quiz not yet completed"})
		return
	}

	earned, possible := b.points(a)
	taken := fmt.Sprintf("%.0f", a.TimeEnd.Sub(a.TimeStart).Seconds())

	r := domain.Results{
		ID:                  a.ID,
		Student:             a.Student,
		Quiz:                a.Quiz,
		TimeStart:           a.TimeStart,
		TimeEnd:             a.TimeEnd,
		Score:               a.Score.Decimal,
		TotalQuestions:      len(b.findQuiz(a.Quiz.ID).Questions),
		TotalPointsEarned:   earned,
		TotalPossiblePoints: possible,
		TimeTaken:           &taken,
		Answers:             make([]domain.AnswerResult, 0, len(a.answers)),
	}

	for _, ans := range a.answers {
		ar := domain.AnswerResult{
			QuestionText: ans.question.Text,
			IsCorrect:    ans.correct,
		}
		if ans.correct {
			r.CorrectAnswers++
			ar.PointsEarned = decimal.NewFromInt(int64(ans.question.Points))
		}

		switch ans.question.Type {
		case domain.QuestionTypeMultipleChoice:
			for _, ch := range ans.question.Choices {
				if ch.Correct {
					s := ch.Content
					ar.CorrectAnswer = &s
					break
				}
			}
			if ans.choice != nil {
				s := ans.choice.Content
				ar.StudentAnswer = &s
			}
		case domain.QuestionTypeFreeText:
			ar.StudentAnswer = ans.text
		}

		r.Answers = append(r.Answers, ar)
	}

	c.JSON(http.StatusOK, r)
}
