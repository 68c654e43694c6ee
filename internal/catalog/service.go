package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/event"
	"github.com/victornm/quizclient/internal/gateway"
)

type Backend interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	ListStudentAttempts(ctx context.Context, studentID int64) ([]domain.Attempt, error)
	CreateAttempt(ctx context.Context, req gateway.CreateAttemptRequest) (*domain.Attempt, error)
}

type Config struct {
	Backend  Backend
	EventBus *event.Bus
}

// State is what the dashboard renders. Available never holds a quiz that is in InProgress.
type State struct {
	InProgress []domain.Quiz
	Available  []domain.Quiz
	Loading    bool
	Err        string
}

// Service lists the quizzes of a student, split into in-progress and available.
type Service struct {
	backend Backend

	mu         sync.RWMutex
	inProgress []domain.Quiz
	available  []domain.Quiz
	attemptIDs map[int64]string
	loading    bool
	err        string
}

func NewService(c Config) *Service {
	s := &Service{
		backend:    c.Backend,
		attemptIDs: make(map[int64]string),
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameSessionLoggedOut, func(context.Context, event.Event) error {
			s.Reset()
			return nil
		})
	}

	return s
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return State{
		InProgress: append([]domain.Quiz(nil), s.inProgress...),
		Available:  append([]domain.Quiz(nil), s.available...),
		Loading:    s.loading,
		Err:        s.err,
	}
}

// FetchInProgressQuizzes loads the student's open attempts and remembers which attempt
// belongs to which quiz.
func (s *Service) FetchInProgressQuizzes(ctx context.Context, studentID int64) error {
	s.begin()

	attempts, err := s.backend.ListStudentAttempts(ctx, studentID)
	if err != nil {
		return s.fail(fmt.Sprintf("Could not load in-progress quizzes: %s", message(err)), err)
	}

	s.mu.Lock()
	s.applyAttempts(attempts)
	s.loading = false
	s.mu.Unlock()

	return nil
}

// FetchAvailableQuizzes loads every quiz and drops those currently in progress.
// It filters against the last FetchInProgressQuizzes result.
func (s *Service) FetchAvailableQuizzes(ctx context.Context, _ int64) error {
	quizzes, err := s.backend.ListQuizzes(ctx)
	if err != nil {
		return s.fail(fmt.Sprintf("Could not load available quizzes: %s", message(err)), err)
	}

	s.mu.Lock()
	s.applyQuizzes(quizzes)
	s.mu.Unlock()

	return nil
}

// Refresh fetches both lists concurrently and applies them together, so the filter always
// runs against the in-progress set of the same refresh.
func (s *Service) Refresh(ctx context.Context, studentID int64) error {
	s.begin()

	var (
		attempts []domain.Attempt
		quizzes  []domain.Quiz
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		attempts, err = s.backend.ListStudentAttempts(ctx, studentID)
		return err
	})
	eg.Go(func() (err error) {
		quizzes, err = s.backend.ListQuizzes(ctx)
		return err
	})

	if err := eg.Wait(); err != nil {
		return s.fail(fmt.Sprintf("Could not load quizzes: %s", message(err)), err)
	}

	s.mu.Lock()
	s.applyAttempts(attempts)
	s.applyQuizzes(quizzes)
	s.loading = false
	s.mu.Unlock()

	return nil
}

// StartQuiz creates an attempt and refreshes both lists so the quiz moves from available
// to in progress. It returns the attempt id.
func (s *Service) StartQuiz(ctx context.Context, quizID, studentID int64) (string, error) {
	s.begin()

	a, err := s.backend.CreateAttempt(ctx, gateway.CreateAttemptRequest{
		QuizID:    quizID,
		StudentID: studentID,
	})
	if err != nil {
		return "", s.fail(fmt.Sprintf("Failed to start quiz: %s", message(err)), err)
	}

	if err := s.FetchInProgressQuizzes(ctx, studentID); err != nil {
		return "", err
	}

	if err := s.FetchAvailableQuizzes(ctx, studentID); err != nil {
		return "", err
	}

	return a.ID, nil
}

// ResumeQuiz looks up the cached attempt of an in-progress quiz. It never asks the backend.
func (s *Service) ResumeQuiz(quizID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.attemptIDs[quizID]
	if !ok {
		s.err = "Attempt not found for this quiz"
		return "", errors.New(errors.CodeNotFound, errors.WithMessagef("%s", s.err))
	}

	return id, nil
}

func (s *Service) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ""
}

func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inProgress = nil
	s.available = nil
	s.attemptIDs = make(map[int64]string)
	s.loading = false
	s.err = ""
}

func (s *Service) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.err = ""
}

func (s *Service) fail(msg string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.err = msg
	return fmt.Errorf("catalog: %s: %w", msg, err)
}

// applyAttempts must be called with mu held.
func (s *Service) applyAttempts(attempts []domain.Attempt) {
	s.inProgress = s.inProgress[:0]
	s.attemptIDs = make(map[int64]string)

	for _, a := range attempts {
		if !a.Open() {
			continue
		}
		if _, seen := s.attemptIDs[a.Quiz.ID]; seen {
			continue
		}

		s.attemptIDs[a.Quiz.ID] = a.ID
		s.inProgress = append(s.inProgress, a.Quiz)
	}

	s.applyQuizzes(s.available)
}

// applyQuizzes must be called with mu held.
func (s *Service) applyQuizzes(quizzes []domain.Quiz) {
	available := make([]domain.Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		if _, ok := s.attemptIDs[q.ID]; !ok {
			available = append(available, q)
		}
	}
	s.available = available
}

func message(err error) string {
	if e := errors.Convert(err); e.Code != errors.CodeInternal || e.Status != 0 {
		return e.Message
	}
	return err.Error()
}
