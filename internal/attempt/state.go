package attempt

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
)

// Phase is the tag of the controller's state.
//
//	Idle -> Loading -> Presenting -> Submitting -> Loading ... -> Completed
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhasePresenting
	PhaseSubmitting
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhasePresenting:
		return "presenting"
	case PhaseSubmitting:
		return "submitting"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is what the presentation layer renders.
// Question is set exactly when Phase is Presenting or Submitting.
// Err is a display string for the last recoverable failure.
type State struct {
	Phase    Phase
	Question *domain.Question
	Quiz     *domain.Quiz
	Err      string
}

var (
	// ErrSubmitting is returned when an answer is submitted while another is in flight.
	ErrSubmitting = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("An answer is already being submitted"))
	// ErrNoQuestion is returned when an answer is submitted with no question in view.
	ErrNoQuestion = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("No question available"))
	// ErrClosed is returned for responses that arrived after Close.
	ErrClosed = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("Attempt view closed"))
	// ErrNotSaved is returned by Start and Continue when the progress marker cannot be saved.
	// No request has been made at that point.
	ErrNotSaved = errors.New(errors.CodeInternal, errors.WithMessagef("Could not save quiz progress"))
)

// Validate checks an answer against the question it answers, before any request is sent.
// Multiple-choice needs exactly a listed choice; free-text needs exactly a non-blank response.
func Validate(q *domain.Question, a domain.Answer) error {
	if q == nil {
		return ErrNoQuestion
	}

	if (a.ChoiceID == nil) == (a.FreeTextResponse == nil) {
		return errors.InvalidArgument("Provide exactly one of a choice or a free-text response")
	}

	switch q.QuestionType {
	case domain.QuestionTypeMultipleChoice:
		if a.ChoiceID == nil {
			return errors.InvalidArgument("Please select an answer")
		}
		for _, c := range q.Choices {
			if c.ID == *a.ChoiceID {
				return nil
			}
		}
		return errors.InvalidArgument("Choice %d is not one of the listed choices", *a.ChoiceID)
	case domain.QuestionTypeFreeText:
		if a.FreeTextResponse == nil || strings.TrimSpace(*a.FreeTextResponse) == "" {
			return errors.InvalidArgument("Please enter an answer")
		}
		return nil
	default:
		return errors.InvalidArgument("Unsupported question type %q", q.QuestionType)
	}
}

// Describe turns a failure into the string shown to the student.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	if errors.IsTransport(err) {
		return "Network error. Please check your connection."
	}

	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Message
	}

	return err.Error()
}
