package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/victornm/quizclient/internal/attempt"
	"github.com/victornm/quizclient/internal/domain"
)

// QuitCommand leaves the loop with the attempt still in progress.
const QuitCommand = ":q"

// Play renders the controller's state and feeds it answers read line by line from in, until
// the attempt completes, the student quits or in is exhausted. The controller is closed on
// return; an unfinished attempt keeps its progress marker and can be resumed.
func Play(ctx context.Context, in io.Reader, out io.Writer, c *attempt.Controller) attempt.State {
	defer c.Close()

	sc := bufio.NewScanner(in)
	st := c.State()

	for {
		RenderAttempt(out, st)
		if st.Phase == attempt.PhaseCompleted {
			return st
		}

		if st.Phase != attempt.PhasePresenting {
			fmt.Fprintf(out, "Press enter to retry, %s to quit: ", QuitCommand)
		}

		if !sc.Scan() {
			fmt.Fprintln(out)
			break
		}

		line := strings.TrimSpace(sc.Text())
		if line == QuitCommand {
			break
		}

		var err error
		if st.Phase == attempt.PhasePresenting {
			st, err = c.Submit(ctx, parseAnswer(st.Question, line))
		} else {
			st, err = c.Advance(ctx)
		}
		if err != nil {
			slog.DebugContext(ctx, "console: attempt step failed", "attempt_id", c.AttemptID(), "error", err)
		}
	}

	fmt.Fprintln(out, "Progress saved. Run \"quiz resume\" to continue.")
	return c.State()
}

// parseAnswer maps a typed line to an answer. A choice is picked by its 1-based position;
// anything else for a multiple-choice question is sent to validation as text, which rejects it.
func parseAnswer(q *domain.Question, line string) domain.Answer {
	if q.QuestionType == domain.QuestionTypeMultipleChoice {
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(q.Choices) {
			return domain.ChoiceAnswer(q.Choices[n-1].ID)
		}
	}

	return domain.FreeTextAnswer(line)
}
