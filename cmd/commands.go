package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/victornm/quizclient/internal/attempt"
	"github.com/victornm/quizclient/internal/console"
	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/gateway"
)

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		if len(args) != 2 {
			return errors.InvalidArgument("usage: register <name> <email>")
		}
		return c.register(ctx, args[0], args[1])
	case "login":
		if len(args) != 1 {
			return errors.InvalidArgument("usage: login <email>")
		}
		return c.login(ctx, args[0])
	case "logout":
		return c.app.Session().Logout(ctx)
	case "whoami":
		console.RenderSession(c.out, c.app.Session().State())
		return nil
	case "quizzes":
		return c.quizzes(ctx)
	case "start":
		if len(args) != 1 {
			return errors.InvalidArgument("usage: start <quizID>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return c.start(ctx, id)
	case "resume":
		var id int64
		if len(args) > 0 {
			var err error
			if id, err = parseID(args[0]); err != nil {
				return err
			}
		}
		return c.resume(ctx, id)
	case "results":
		if len(args) != 1 {
			return errors.InvalidArgument("usage: results <attemptID>")
		}
		return c.results(ctx, args[0])
	case "serve":
		return c.serve(ctx)
	default:
		return errors.InvalidArgument("unknown command %q", cmd)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidArgument("invalid quiz id %q", s)
	}
	return id, nil
}

func (c *cli) register(ctx context.Context, name, email string) error {
	return c.authenticate(ctx, func() (*gateway.AuthResponse, error) {
		return c.app.Gateway().Register(ctx, gateway.RegisterRequest{Name: name, Email: email})
	})
}

func (c *cli) login(ctx context.Context, email string) error {
	return c.authenticate(ctx, func() (*gateway.AuthResponse, error) {
		return c.app.Gateway().Login(ctx, gateway.LoginRequest{Email: email})
	})
}

func (c *cli) authenticate(ctx context.Context, call func() (*gateway.AuthResponse, error)) error {
	s := c.app.Session()
	s.ClearError()
	s.SetLoading(true)
	defer s.SetLoading(false)

	resp, err := call()
	if err != nil {
		s.SetError(attempt.Describe(err))
		return err
	}

	if err := s.Login(ctx, resp.Student); err != nil {
		return err
	}

	fmt.Fprintln(c.out, resp.Message)
	console.RenderSession(c.out, s.State())
	return nil
}

// studentOrFail returns the logged-in student after checking the --student guard.
func (c *cli) studentOrFail() (*domain.Student, error) {
	st := c.app.Session().State()
	if err := console.Authorize(st, c.student); err != nil {
		return nil, err
	}
	return st.Student, nil
}

func (c *cli) quizzes(ctx context.Context) error {
	s, err := c.studentOrFail()
	if err != nil {
		return err
	}

	err = c.app.Catalog().Refresh(ctx, s.ID)
	console.RenderCatalog(c.out, c.app.Catalog().State())
	return err
}

func (c *cli) start(ctx context.Context, quizID int64) error {
	s, err := c.studentOrFail()
	if err != nil {
		return err
	}

	cat := c.app.Catalog()
	attemptID, err := cat.StartQuiz(ctx, quizID, s.ID)
	if err != nil {
		return err
	}

	ctrl := attempt.New(c.app.AttemptConfig(attemptID, findQuiz(cat.State().InProgress, quizID)))
	return c.play(ctx, ctrl, ctrl.Start)
}

// resume continues the attempt of quizID, or the attempt recorded in the progress marker
// when quizID is 0.
func (c *cli) resume(ctx context.Context, quizID int64) error {
	s, err := c.studentOrFail()
	if err != nil {
		return err
	}

	if quizID == 0 {
		ctrl, err := attempt.Resume(ctx, c.app.AttemptConfig("", nil))
		if err != nil {
			return errors.New(errors.Convert(err).Code,
				errors.WithMessagef("Could not load in-progress quiz: %s", attempt.Describe(err)),
				errors.WithCause(err))
		}
		if ctrl == nil {
			fmt.Fprintln(c.out, "Nothing to resume.")
			return c.quizzes(ctx)
		}
		return c.play(ctx, ctrl, nil)
	}

	cat := c.app.Catalog()
	if err := cat.FetchInProgressQuizzes(ctx, s.ID); err != nil {
		return err
	}

	attemptID, err := cat.ResumeQuiz(quizID)
	if err != nil {
		return err
	}

	ctrl := attempt.New(c.app.AttemptConfig(attemptID, findQuiz(cat.State().InProgress, quizID)))
	return c.play(ctx, ctrl, ctrl.Continue)
}

func findQuiz(quizzes []domain.Quiz, id int64) *domain.Quiz {
	for i := range quizzes {
		if quizzes[i].ID == id {
			return &quizzes[i]
		}
	}
	return nil
}

// play runs begin, when given, then the answer loop, and shows the results once the attempt
// completes.
func (c *cli) play(ctx context.Context, ctrl *attempt.Controller, begin func(context.Context) (attempt.State, error)) error {
	if begin != nil {
		// Request failures are part of the state and shown by the loop.
		if _, err := begin(ctx); stderrors.Is(err, attempt.ErrNotSaved) {
			ctrl.Close()
			return err
		}
	}

	st := console.Play(ctx, c.in, c.out, ctrl)
	if st.Phase != attempt.PhaseCompleted {
		return nil
	}

	fmt.Fprintln(c.out)
	return c.results(ctx, ctrl.AttemptID())
}

func (c *cli) results(ctx context.Context, attemptID string) error {
	if _, err := c.studentOrFail(); err != nil {
		return err
	}

	r, err := c.app.Gateway().Results(ctx, attemptID)
	if err != nil {
		return err
	}

	if c.student != 0 && r.Student.ID != 0 && r.Student.ID != c.student {
		return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("Attempt %s belongs to another student", attemptID))
	}

	console.RenderResults(c.out, r)
	return nil
}

func (c *cli) serve(ctx context.Context) error {
	if !c.app.OpsEnabled() {
		return errors.InvalidArgument("Set Ops.HTTPPort or Ops.GRPCPort to serve")
	}

	errc := make(chan error, 1)
	go func() { errc <- c.app.ServeOps(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}
