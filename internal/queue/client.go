package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docchat/internal/config"
)

type Client struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewClient enqueues extraction tasks. extractTimeout is the per-document
// budget; the task timeout leaves room for the job bookkeeping around it.
func NewClient(cfg config.RedisConfig, extractTimeout time.Duration) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		timeout: extractTimeout + time.Minute,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueExtract(ctx context.Context, payload ExtractPayload) error {
	return c.enqueue(ctx, TypeExtractPDF, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(c.timeout),
		asynq.TaskID(payload.JobID),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
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
