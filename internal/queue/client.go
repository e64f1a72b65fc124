package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/tableside/internal/config"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// RedisOpt converts the redis settings into asynq's connection option.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueOTPEmail schedules delivery of a registration code. The task expires
// with the code, so a backlog never delivers a code that can no longer be used.
func (c *Client) EnqueueOTPEmail(ctx context.Context, payload OTPEmailPayload, validFor time.Duration) error {
	return c.enqueue(ctx, TypeOTPEmail, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Deadline(time.Now().Add(validFor)),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// NewSessionPurgeTask builds the periodic task registered with the scheduler.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TypeSessionPurge, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
