// Package attempt drives a single attempt from its first question to completion.
//
// The backend has no "attempt complete" event: the controller learns an attempt finished when
// fetching or answering a question reports it closed. On completion the progress marker is
// cleared and attempt.completed is published, exactly once per controller.
package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/event"
	"github.com/victornm/quizclient/internal/progress"
)

var ErrStale = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("Response superseded by a newer request"))

type Backend interface {
	CurrentQuestion(ctx context.Context, attemptID string) (*domain.Question, error)
	SubmitAnswer(ctx context.Context, attemptID string, a domain.Answer) error
	GetQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error)
}

type Config struct {
	Backend   Backend
	Progress  *progress.Store
	EventBus  *event.Bus
	StudentID string
	AttemptID string
	// Quiz is optional. It is shown alongside the questions and reported in attempt.started.
	Quiz *domain.Quiz
}

type Controller struct {
	backend   Backend
	progress  *progress.Store
	eb        *event.Bus
	studentID string
	attemptID string

	mu     sync.Mutex
	state  State
	seq    uint64
	closed bool
}

func New(c Config) *Controller {
	return &Controller{
		backend:   c.Backend,
		progress:  c.Progress,
		eb:        c.EventBus,
		studentID: c.StudentID,
		attemptID: c.AttemptID,
		state:     State{Quiz: c.Quiz},
	}
}

// Resume reconciles the student's progress marker with the backend after a restart.
// It returns a controller presenting the current question, with the quiz taken from that
// question. It returns nil when there is nothing to resume: no marker, a marker of another
// student, or an attempt that already finished, whose marker is then cleared.
func Resume(ctx context.Context, c Config) (*Controller, error) {
	m, err := c.Progress.For(ctx, c.StudentID)
	if err != nil || m == nil {
		return nil, err
	}

	q, err := c.Backend.CurrentQuestion(ctx, m.AttemptID)
	if errors.IsAttemptClosed(err) {
		slog.InfoContext(ctx, "attempt: progress marker points at a finished attempt",
			"attempt_id", m.AttemptID,
		)
		return nil, c.Progress.Clear(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("attempt: resume %s: %w", m.AttemptID, err)
	}

	if q.QuizID == 0 {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("Quiz ID not found in current question"))
	}

	quiz, err := c.Backend.GetQuiz(ctx, q.QuizID)
	if err != nil {
		return nil, fmt.Errorf("attempt: resume %s: get quiz %d: %w", m.AttemptID, q.QuizID, err)
	}

	c.AttemptID = m.AttemptID
	c.Quiz = quiz
	ctrl := New(c)
	ctrl.state = State{Phase: PhasePresenting, Question: q, Quiz: quiz}

	return ctrl, nil
}

func (c *Controller) AttemptID() string {
	return c.attemptID
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start records the attempt as in flight, announces it and loads its first question.
func (c *Controller) Start(ctx context.Context) (State, error) {
	return c.begin(ctx, true)
}

// Continue is Start for an attempt that was already announced: it saves the progress marker
// and loads the current question without publishing attempt.started.
func (c *Controller) Continue(ctx context.Context) (State, error) {
	return c.begin(ctx, false)
}

func (c *Controller) begin(ctx context.Context, announce bool) (State, error) {
	if err := c.progress.Save(ctx, domain.ProgressMarker{
		StudentID: c.studentID,
		AttemptID: c.attemptID,
	}); err != nil {
		slog.ErrorContext(ctx, "attempt: save progress marker failed", "attempt_id", c.attemptID, "error", err)

		c.mu.Lock()
		c.state.Err = fmt.Sprintf("%s: %s", Describe(ErrNotSaved), Describe(err))
		st := c.state
		c.mu.Unlock()
		return st, fmt.Errorf("attempt %s: %w: %w", c.attemptID, ErrNotSaved, err)
	}

	if announce && c.eb != nil {
		e := domain.EventAttemptStarted{
			StudentID: c.studentID,
			AttemptID: c.attemptID,
		}
		if q := c.State().Quiz; q != nil {
			e.QuizID = q.ID
		}
		c.eb.Publish(ctx, e)
	}

	return c.Advance(ctx)
}

// Advance fetches the current question. It is read-only on the backend, so calling it twice
// presents the same question. A closed attempt completes the controller; any other failure
// keeps the previous state and records the error.
func (c *Controller) Advance(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.State(), ErrClosed
	}

	switch c.state.Phase {
	case PhaseCompleted:
		st := c.state
		c.mu.Unlock()
		return st, nil
	case PhaseSubmitting:
		st := c.state
		c.mu.Unlock()
		return st, ErrSubmitting
	}

	prev := c.state
	prev.Err = ""
	seq := c.load(State{Phase: PhaseLoading, Quiz: prev.Quiz})
	c.mu.Unlock()

	q, err := c.backend.CurrentQuestion(ctx, c.attemptID)
	return c.settle(ctx, seq, present(q, prev), prev, err)
}

// Submit answers the question in view and moves to the next one. The answer is validated
// first and never sent when invalid. Submitting and fetching the next question are two
// requests; either of them reporting the attempt closed completes the controller.
func (c *Controller) Submit(ctx context.Context, a domain.Answer) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.State(), ErrClosed
	}

	switch c.state.Phase {
	case PhasePresenting:
	case PhaseSubmitting:
		st := c.state
		c.mu.Unlock()
		return st, ErrSubmitting
	default:
		st := c.state
		c.mu.Unlock()
		return st, ErrNoQuestion
	}

	if err := Validate(c.state.Question, a); err != nil {
		c.state.Err = Describe(err)
		st := c.state
		c.mu.Unlock()
		return st, err
	}

	prev := c.state
	prev.Err = ""
	seq := c.load(State{Phase: PhaseSubmitting, Question: prev.Question, Quiz: prev.Quiz})
	c.mu.Unlock()

	if err := c.backend.SubmitAnswer(ctx, c.attemptID, a); err != nil {
		return c.settle(ctx, seq, prev, prev, err)
	}

	// The answer is recorded, so the question in view is no longer current. If the next one
	// cannot be loaded the controller falls back to Idle and the student retries with Advance.
	idle := State{Phase: PhaseIdle, Quiz: prev.Quiz}
	q, err := c.backend.CurrentQuestion(ctx, c.attemptID)
	return c.settle(ctx, seq, present(q, idle), idle, err)
}

// Close detaches the controller from its view. Responses that arrive afterwards are ignored,
// except that a closed attempt still clears its progress marker.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.seq++
}

// load must be called with mu held.
func (c *Controller) load(s State) uint64 {
	c.seq++
	c.state = s
	return c.seq
}

func present(q *domain.Question, fallback State) State {
	if q == nil {
		return fallback
	}

	return State{Phase: PhasePresenting, Question: q, Quiz: fallback.Quiz}
}

// settle applies the outcome of the request started as seq: next on success, completion when
// the attempt is closed, fallback with the error otherwise.
func (c *Controller) settle(ctx context.Context, seq uint64, next, fallback State, err error) (State, error) {
	closed := errors.IsAttemptClosed(err)

	c.mu.Lock()
	if seq != c.seq {
		detached := c.closed
		c.mu.Unlock()

		if closed {
			if err := c.clearMarker(ctx); err != nil {
				slog.ErrorContext(ctx, "attempt: clear progress marker failed", "attempt_id", c.attemptID, "error", err)
			}
		}
		if detached {
			return c.State(), ErrClosed
		}
		return c.State(), ErrStale
	}

	if closed {
		c.state = State{Phase: PhaseCompleted, Quiz: c.state.Quiz}
		st := c.state
		c.mu.Unlock()
		return st, c.onCompleted(ctx)
	}

	if err != nil {
		fallback.Err = Describe(err)
		c.state = fallback
		st := c.state
		c.mu.Unlock()
		return st, fmt.Errorf("attempt %s: %w", c.attemptID, err)
	}

	c.state = next
	st := c.state
	c.mu.Unlock()
	return st, nil
}

// onCompleted runs the completion side effects. settle only reaches it on the transition into
// Completed, and a completed controller never issues another request, so it runs once.
func (c *Controller) onCompleted(ctx context.Context) error {
	slog.InfoContext(ctx, "attempt: completed", "attempt_id", c.attemptID, "student_id", c.studentID)

	err := c.clearMarker(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "attempt: clear progress marker failed", "attempt_id", c.attemptID, "error", err)
	}

	if c.eb != nil {
		c.eb.Publish(ctx, domain.EventAttemptCompleted{
			StudentID: c.studentID,
			AttemptID: c.attemptID,
		})
	}

	return err
}

// clearMarker removes the progress marker if it still points at this attempt.
func (c *Controller) clearMarker(ctx context.Context) error {
	m, err := c.progress.Get(ctx)
	if err != nil {
		return err
	}

	if m == nil || m.AttemptID != c.attemptID {
		return nil
	}

	return c.progress.Clear(ctx)
}
