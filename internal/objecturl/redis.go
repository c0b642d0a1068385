package objecturl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Key pattern for blobs: objecturl:<id>
const BlobKey = "objecturl:%s"

// RedisStore keeps blobs in redis hashes that expire after ttl.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

func (s *RedisStore) Put(ctx context.Context, id string, blob *Blob) error {
	key := fmt.Sprintf(BlobKey, id)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"content_type", blob.ContentType,
			"created_at", blob.CreatedAt.Format(time.RFC3339Nano),
			"body", blob.Body,
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Blob, error) {
	key := fmt.Sprintf(BlobKey, id)

	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		// Treat an unreadable timestamp as fresh
		createdAt = time.Now().UTC()
	}
	return &Blob{
		ContentType: fields["content_type"],
		Body:        []byte(fields["body"]),
		CreatedAt:   createdAt,
	}, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, fmt.Sprintf(BlobKey, id)).Err()
}

// Sweep is a no-op: redis expires keys on its own.
func (s *RedisStore) Sweep(context.Context, time.Duration) (int, error) {
	return 0, nil
}
