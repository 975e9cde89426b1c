package queue

import (
	"context"
	"time"

	"planted-staging/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Consumer struct {
	client      listClient
	queue       string
	dlqSuffix   string
	pollTimeout time.Duration
	log         zerolog.Logger
}

type MessageHandler func(ctx context.Context, data []byte) error

func NewConsumer(redisClient *RedisClient, queueName, dlqSuffix string) *Consumer {
	return newConsumer(redisClient.Client(), queueName, dlqSuffix)
}

func newConsumer(client listClient, queueName, dlqSuffix string) *Consumer {
	return &Consumer{
		client:      client,
		queue:       queueName,
		dlqSuffix:   dlqSuffix,
		pollTimeout: 5 * time.Second,
		log:         logger.Component("consumer"),
	}
}

// Consume blocks until ctx is cancelled. Messages the handler rejects are
// pushed onto the dead-letter list.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			result, err := c.client.BRPop(ctx, c.pollTimeout, c.queue).Result()
			if err != nil {
				if err == redis.Nil {
					continue // Timeout, continue polling
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Error().Err(err).Str("queue", c.queue).Msg("Failed to consume message")
				continue
			}

			if len(result) < 2 {
				continue
			}

			message := result[1]
			if err := handler(ctx, []byte(message)); err != nil {
				c.log.Error().Err(err).Str("queue", c.queue).Msg("Failed to process message")
				dlqName := c.queue + c.dlqSuffix
				if dlqErr := c.client.LPush(ctx, dlqName, message).Err(); dlqErr != nil {
					c.log.Error().Err(dlqErr).Str("dlq", dlqName).Msg("Failed to move message to DLQ")
				}
			}
		}
	}
}
