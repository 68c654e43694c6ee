// Package notify forwards attempt events to Redis pub/sub, one channel per student.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/event"
)

const maxConcurrent = 100

type Config struct {
	EventBus *event.Bus
	Redis    Redis
	Prefix   string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	AttemptStarted struct {
		AttemptID string `json:"attempt_id"`
		QuizID    int64  `json:"quiz_id,omitempty"`
	}

	AttemptCompleted struct {
		AttemptID string `json:"attempt_id"`
	}
)

type Publisher struct {
	redis  Redis
	prefix string
}

// New creates a publisher and subscribes it to the attempt events on the bus.
func New(c Config) *Publisher {
	p := &Publisher{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	c.EventBus.Subscribe(domain.EventNameAttemptStarted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventAttemptStarted)
		return p.Publish(ctx, e.Name(), AttemptStarted{AttemptID: ev.AttemptID, QuizID: ev.QuizID}, ev.StudentID)
	})

	c.EventBus.Subscribe(domain.EventNameAttemptCompleted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventAttemptCompleted)
		return p.Publish(ctx, e.Name(), AttemptCompleted{AttemptID: ev.AttemptID}, ev.StudentID)
	})

	return p
}

// Publish sends one notification to the channel of every listed student.
func (p *Publisher) Publish(ctx context.Context, name string, data any, students ...string) error {
	b, err := json.Marshal(Notification{
		Event: name,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %v", name, err)
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, s := range students {
		eg.Go(func() error {
			return p.redis.Publish(ctx, p.Channel(s), b).Err()
		})
	}

	return eg.Wait()
}

func (p *Publisher) Channel(studentID string) string {
	return fmt.Sprintf("%s:student:%s", p.prefix, studentID)
}
