package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/victornm/quizclient/internal/app"
	"github.com/victornm/quizclient/internal/attempt"
	"github.com/victornm/quizclient/internal/config"
	"github.com/victornm/quizclient/internal/telemetry"
)

const usage = `Usage: quiz [flags] <command> [args]

Commands:
  register <name> <email>   create a student account and log in
  login <email>             log in as an existing student
  logout                    forget the logged-in student
  whoami                    show the logged-in student
  quizzes                   list in-progress and available quizzes
  start <quizID>            start a quiz and answer its questions
  resume [quizID]           continue an unfinished attempt
  results <attemptID>       show the results of a finished attempt
  serve                     run the ops endpoints until interrupted

Flags:
`

func main() {
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type cli struct {
	app *app.App
	in  io.Reader
	out io.Writer

	// student is the --student guard, 0 when not given.
	student int64
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	fs := pflag.NewFlagSet("quiz", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprint(errOut, usage)
		fs.PrintDefaults()
	}

	configPath := fs.StringP("config", "c", os.Getenv("CONFIG_PATH"), "config file, defaults to $CONFIG_PATH")
	student := fs.Int64("student", 0, "refuse to open attempts that do not belong to this student")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	c, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "Load config failed: %v\n", err)
		return 1
	}

	logger, err := telemetry.NewLogger(errOut, c.Log.Level, c.Log.Format)
	if err != nil {
		fmt.Fprintf(errOut, "Init logger failed: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	a, err := app.Init(ctx, c)
	if err != nil {
		fmt.Fprintf(errOut, "Init app failed: %v\n", err)
		return 1
	}
	defer a.Close()

	cl := &cli{app: a, in: in, out: out, student: *student}
	if err := cl.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		slog.DebugContext(ctx, "cli: command failed", "command", fs.Arg(0), "error", err)
		fmt.Fprintf(errOut, "Error: %s\n", attempt.Describe(err))
		return 1
	}

	return 0
}

func loadConfig(path string) (app.Config, error) {
	c := app.DefaultConfig()

	if err := config.Load(path, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
