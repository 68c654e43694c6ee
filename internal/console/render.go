// Package console renders client state as plain text and runs the interactive answer loop.
package console

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/victornm/quizclient/internal/attempt"
	"github.com/victornm/quizclient/internal/catalog"
	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/session"
)

func RenderAttempt(w io.Writer, st attempt.State) {
	if st.Quiz != nil {
		fmt.Fprintf(w, "== %s ==\n", st.Quiz.Name)
	}

	switch st.Phase {
	case attempt.PhaseIdle:
		if st.Err == "" {
			fmt.Fprintln(w, "No question loaded.")
		}
	case attempt.PhaseLoading:
		fmt.Fprintln(w, "Loading question...")
	case attempt.PhasePresenting, attempt.PhaseSubmitting:
		renderQuestion(w, st.Question)
		if st.Phase == attempt.PhaseSubmitting {
			fmt.Fprintln(w, "Submitting...")
		}
	case attempt.PhaseCompleted:
		fmt.Fprintln(w, "Quiz completed!")
	}

	if st.Err != "" {
		fmt.Fprintf(w, "! %s\n", st.Err)
	}
}

func renderQuestion(w io.Writer, q *domain.Question) {
	fmt.Fprintf(w, "Question %d of %d (%s)\n", q.QuestionNumber, q.TotalQuestions, plural(q.Points, "point"))
	fmt.Fprintln(w, q.QuestionText)

	switch q.QuestionType {
	case domain.QuestionTypeMultipleChoice:
		for i, c := range q.Choices {
			fmt.Fprintf(w, "  %d) %s\n", i+1, c.Content)
		}
		fmt.Fprintf(w, "Choose 1-%d: ", len(q.Choices))
	default:
		fmt.Fprint(w, "Your answer: ")
	}
}

func RenderCatalog(w io.Writer, st catalog.State) {
	if st.Err != "" {
		fmt.Fprintf(w, "! %s\n", st.Err)
	}

	if len(st.InProgress) > 0 {
		fmt.Fprintln(w, "In progress:")
		for _, q := range st.InProgress {
			renderQuiz(w, q)
		}
	}

	fmt.Fprintln(w, "Available:")
	if len(st.Available) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, q := range st.Available {
		renderQuiz(w, q)
	}
}

func renderQuiz(w io.Writer, q domain.Quiz) {
	line := fmt.Sprintf("  [%d] %s", q.ID, q.Name)
	if q.TotalQuestions != nil {
		line += fmt.Sprintf(" (%s)", plural(*q.TotalQuestions, "question"))
	}
	fmt.Fprintln(w, line)

	if q.Description != "" {
		fmt.Fprintf(w, "      %s\n", q.Description)
	}
}

func RenderSession(w io.Writer, st session.State) {
	if !st.IsAuthenticated {
		fmt.Fprintln(w, "Not logged in.")
		return
	}

	fmt.Fprintf(w, "Logged in as %s <%s> (student %d)\n", st.Student.Name, st.Student.Email, st.Student.ID)
}

func RenderResults(w io.Writer, r *domain.Results) {
	fmt.Fprintf(w, "== Results: %s ==\n", r.Quiz.Name)
	fmt.Fprintf(w, "Final score: %s%%\n", r.Score.StringFixed(2))
	fmt.Fprintf(w, "Correct:     %d/%d\n", r.CorrectAnswers, r.TotalQuestions)
	fmt.Fprintf(w, "Points:      %s/%s\n", r.TotalPointsEarned.String(), r.TotalPossiblePoints.String())
	if r.TimeTaken != nil {
		fmt.Fprintf(w, "Time taken:  %s\n", FormatTimeTaken(*r.TimeTaken))
	}

	for i, a := range r.Answers {
		mark := "wrong"
		if a.IsCorrect {
			mark = "correct"
		}

		fmt.Fprintf(w, "\n%d. %s [%s, %s]\n", i+1, a.QuestionText, mark, plural(int(a.PointsEarned.IntPart()), "point"))
		fmt.Fprintf(w, "   Your answer:    %s\n", orNone(a.StudentAnswer))
		if !a.IsCorrect && a.CorrectAnswer != nil {
			fmt.Fprintf(w, "   Correct answer: %s\n", *a.CorrectAnswer)
		}
	}
}

// FormatTimeTaken turns the backend's seconds string into "Xm Ys". Unparseable input is
// returned unchanged.
func FormatTimeTaken(s string) string {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || secs < 0 {
		return s
	}

	m := math.Floor(secs / 60)
	return fmt.Sprintf("%.0fm %.0fs", m, math.Floor(secs-m*60))
}

// Authorize refuses attempt pages of a student other than the logged-in one.
func Authorize(st session.State, studentID int64) error {
	if !st.IsAuthenticated {
		return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("Please log in first"))
	}

	if studentID != 0 && st.Student.ID != studentID {
		return errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("Student %d cannot open pages of student %d", st.Student.ID, studentID))
	}

	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return "(no answer)"
	}
	return *s
}
