package queue

import (
	"context"
	"encoding/json"
	"time"

	"planted-staging/internal/model"

	"github.com/google/uuid"
)

// Publisher emits staging events. Publishing is best effort: moderation
// never fails because the audit trail is unavailable.
type Publisher interface {
	Publish(ctx context.Context, event model.StagingEvent) error
}

type Producer struct {
	client listClient
	queue  string
}

func NewProducer(redisClient *RedisClient, queueName string) *Producer {
	return newProducer(redisClient.Client(), queueName)
}

func newProducer(client listClient, queueName string) *Producer {
	return &Producer{client: client, queue: queueName}
}

func (p *Producer) Publish(ctx context.Context, event model.StagingEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.client.LPush(ctx, p.queue, data).Err()
}
