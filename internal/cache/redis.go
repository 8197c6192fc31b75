package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docchat/internal/document"
)

// ErrMiss is returned when a key does not exist.
var ErrMiss = errors.New("cache miss")

const (
	contentPrefix = "docchat:content:"
	jobPrefix     = "docchat:job:"
)

type Cache struct {
	client     *redis.Client
	contentTTL time.Duration
	jobTTL     time.Duration
}

func NewCache(client *redis.Client, contentTTL, jobTTL time.Duration) *Cache {
	return &Cache{client: client, contentTTL: contentTTL, jobTTL: jobTTL}
}

func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetContent implements document.ContentCache.
func (c *Cache) GetContent(ctx context.Context, hash string) (*document.Content, bool, error) {
	var content document.Content
	err := c.Get(ctx, contentPrefix+hash, &content)
	if errors.Is(err, ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if content.Images == nil {
		content.Images = [][]byte{}
	}
	return &content, true, nil
}

// SetContent implements document.ContentCache.
func (c *Cache) SetContent(ctx context.Context, hash string, content *document.Content) error {
	return c.Set(ctx, contentPrefix+hash, content, c.contentTTL)
}

// Job states.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobReady      = "ready"
	JobFailed     = "failed"
)

// Job is the state of an asynchronous extraction.
type Job struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Content   *document.Content `json:"content,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"errorKind,omitempty"`
	Attempts  int               `json:"attempts,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (c *Cache) SaveJob(ctx context.Context, job *Job) error {
	if job.ID == "" {
		return errors.New("job id required")
	}
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	return c.Set(ctx, jobPrefix+job.ID, job, c.jobTTL)
}

// GetJob returns ErrMiss for unknown or expired jobs.
func (c *Cache) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.Get(ctx, jobPrefix+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
