package attempt_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/quizclient/internal/attempt"
	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
)

func TestValidate(t *testing.T) {
	mcq := &domain.Question{
		QuestionType: domain.QuestionTypeMultipleChoice,
		Choices:      []domain.Choice{{ID: 1, Content: "Gecko"}, {ID: 2, Content: "Chameleon"}},
	}
	ftq := &domain.Question{QuestionType: domain.QuestionTypeFreeText}

	both := domain.ChoiceAnswer(1)
	both.FreeTextResponse = domain.FreeTextAnswer("Gecko").FreeTextResponse

	tests := map[string]struct {
		question *domain.Question
		answer   domain.Answer
		wantErr  string
	}{
		"listed choice": {
			question: mcq,
			answer:   domain.ChoiceAnswer(2),
		},
		"unlisted choice": {
			question: mcq,
			answer:   domain.ChoiceAnswer(3),
			wantErr:  "Choice 3 is not one of the listed choices",
		},
		"text for a multiple-choice question": {
			question: mcq,
			answer:   domain.FreeTextAnswer("Gecko"),
			wantErr:  "Please select an answer",
		},
		"free text": {
			question: ftq,
			answer:   domain.FreeTextAnswer("Gila monster"),
		},
		"blank free text": {
			question: ftq,
			answer:   domain.FreeTextAnswer("  \t"),
			wantErr:  "Please enter an answer",
		},
		"choice for a free-text question": {
			question: ftq,
			answer:   domain.ChoiceAnswer(1),
			wantErr:  "Please enter an answer",
		},
		"both fields": {
			question: mcq,
			answer:   both,
			wantErr:  "Provide exactly one of a choice or a free-text response",
		},
		"no fields": {
			question: ftq,
			wantErr:  "Provide exactly one of a choice or a free-text response",
		},
		"unknown question type": {
			question: &domain.Question{QuestionType: "essay"},
			answer:   domain.FreeTextAnswer("words"),
			wantErr:  `Unsupported question type "essay"`,
		},
		"no question": {
			answer:  domain.FreeTextAnswer("words"),
			wantErr: "No question available",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := attempt.Validate(tt.question, tt.answer)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, errors.Convert(err).Message)
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"nil": {},
		"transport failure": {
			err:  fmt.Errorf("attempt a1: %w", errors.New(errors.CodeUnavailable, errors.WithMessagef("Network error"))),
			want: "Network error. Please check your connection.",
		},
		"server message": {
			err:  errors.New(errors.CodeInternal, errors.WithMessagef("database is down"), errors.WithStatus(http.StatusInternalServerError)),
			want: "database is down",
		},
		"plain error": {
			err:  stderrors.New("disk full"),
			want: "disk full",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, attempt.Describe(tt.err))
		})
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "presenting", attempt.PhasePresenting.String())
	assert.Equal(t, "phase(9)", attempt.Phase(9).String())
}
