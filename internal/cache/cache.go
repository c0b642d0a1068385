package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/plate-console/internal/storage"
	"github.com/princekumarofficial/plate-console/internal/types"
)

// CachedStorage wraps storage with a Redis cache of recent history pages
type CachedStorage struct {
	storage storage.Storage
	redis   *redis.Client
	ttl     time.Duration
}

var _ storage.Storage = (*CachedStorage)(nil)

// NewCachedStorage creates a new cache-fronted storage
func NewCachedStorage(storage storage.Storage, redisClient *redis.Client, ttl time.Duration) *CachedStorage {
	return &CachedStorage{
		storage: storage,
		redis:   redisClient,
		ttl:     ttl,
	}
}

// Cache key patterns
const (
	HistoryKey        = "history:recent:%d" // history:recent:limit
	HistoryKeyPattern = "history:recent:*"
)

// RecordSubmission writes through and drops cached pages
func (c *CachedStorage) RecordSubmission(ctx context.Context, submission *types.Submission) error {
	if err := c.storage.RecordSubmission(ctx, submission); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// ListSubmissions returns a cached page or fetches from storage
func (c *CachedStorage) ListSubmissions(ctx context.Context, limit int) ([]types.Submission, error) {
	key := fmt.Sprintf(HistoryKey, limit)

	// Try cache first
	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var submissions []types.Submission
		if err := json.Unmarshal([]byte(cached), &submissions); err == nil {
			return submissions, nil
		}
	}

	// Cache miss - fetch from storage
	submissions, err := c.storage.ListSubmissions(ctx, limit)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(submissions)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("Failed to cache history", slog.String("error", err.Error()))
	}

	return submissions, nil
}

func (c *CachedStorage) DeleteSubmissionsBefore(ctx context.Context, before time.Time) (int64, error) {
	n, err := c.storage.DeleteSubmissionsBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidate(ctx)
	}
	return n, nil
}

func (c *CachedStorage) invalidate(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, HistoryKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		c.redis.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("Failed to invalidate history cache", slog.String("error", err.Error()))
	}
}
