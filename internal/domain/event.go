package domain

const (
	EventNameAttemptStarted   = "attempt.started"
	EventNameAttemptCompleted = "attempt.completed"
	EventNameSessionLoggedOut = "session.logged_out"
)

type EventAttemptStarted struct {
	StudentID string
	AttemptID string
	QuizID    int64
}

func (EventAttemptStarted) Name() string { return EventNameAttemptStarted }

type EventAttemptCompleted struct {
	StudentID string
	AttemptID string
}

func (EventAttemptCompleted) Name() string { return EventNameAttemptCompleted }

type EventSessionLoggedOut struct {
	Student Student
}

func (EventSessionLoggedOut) Name() string { return EventNameSessionLoggedOut }
