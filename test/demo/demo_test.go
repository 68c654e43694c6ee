//go:build integration_test

package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizclient/internal/attempt"
	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/event"
	"github.com/victornm/quizclient/internal/gateway"
	"github.com/victornm/quizclient/internal/notify"
	"github.com/victornm/quizclient/internal/progress"
	"github.com/victornm/quizclient/internal/storage"
)

const (
	redisAddr = "localhost:6379"
	prefix    = "quizclient-demo"
)

// TestAttempt takes every quiz of a live backend from start to results, answering each question
// with its first choice or a fixed text.
func TestAttempt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var (
		gw  = gateway.New(gateway.Config{BaseURL: os.Getenv("API_BASEURL"), Timeout: 10 * time.Second})
		eb  = event.NewBus()
		rc  = makeRedis(t)
		wg  = new(sync.WaitGroup)
		pub = notify.New(notify.Config{EventBus: eb, Redis: rc, Prefix: prefix})
	)

	auth, err := gw.Register(ctx, gateway.RegisterRequest{
		Name:  "Demo",
		Email: fmt.Sprintf("demo-%s@example.com", uuid.NewString()),
	})
	require.NoError(t, err)
	studentID := strconv.FormatInt(auth.Student.ID, 10)

	quizzes, err := gw.ListQuizzes(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, quizzes)

	subscribe(t, rc, wg, pub.Channel(studentID), len(quizzes))

	ps := progress.NewStore(storage.NewMemory())
	for _, q := range quizzes {
		a, err := gw.CreateAttempt(ctx, gateway.CreateAttemptRequest{QuizID: q.ID, StudentID: auth.Student.ID})
		require.NoError(t, err)

		c := attempt.New(attempt.Config{
			Backend:   gw,
			Progress:  ps,
			EventBus:  eb,
			StudentID: studentID,
			AttemptID: a.ID,
			Quiz:      &q,
		})

		st, err := c.Start(ctx)
		require.NoError(t, err)

		for st.Phase == attempt.PhasePresenting {
			t.Logf("%s: question %d of %d", q.Name, st.Question.QuestionNumber, st.Question.TotalQuestions)
			st, err = c.Submit(ctx, answer(st.Question))
			require.NoError(t, err)
		}
		require.Equal(t, attempt.PhaseCompleted, st.Phase)

		m, err := ps.Get(ctx)
		require.NoError(t, err)
		require.Nil(t, m)

		r, err := gw.Results(ctx, a.ID)
		require.NoError(t, err)
		t.Logf("%s: score %s, %d/%d correct", q.Name, r.Score.StringFixed(2), r.CorrectAnswers, r.TotalQuestions)
	}

	eb.Stop()
	wg.Wait()
}

func answer(q *domain.Question) domain.Answer {
	if q.QuestionType == domain.QuestionTypeMultipleChoice && len(q.Choices) > 0 {
		return domain.ChoiceAnswer(q.Choices[0].ID)
	}
	return domain.FreeTextAnswer("demo answer")
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{redisAddr},
	})

	require.NoError(t, r.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// subscribe waits for one attempt.completed notification per quiz.
func subscribe(t *testing.T, r redis.UniversalClient, wg *sync.WaitGroup, channel string, want int) {
	ctx := context.Background()
	sub := r.Subscribe(ctx, channel)
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sub.Close()

		timeout := time.After(60 * time.Second)
		for got := 0; got < want; {
			select {
			case msg := <-sub.Channel():
				var n notify.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					t.Errorf("decode notification: %v", err)
					return
				}
				t.Logf("notification %s: %v", n.Event, n.Data)
				if n.Event == domain.EventNameAttemptCompleted {
					got++
				}
			case <-timeout:
				t.Errorf("got %d of %d completions", got, want)
				return
			}
		}
	}()
}
