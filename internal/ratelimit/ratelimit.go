package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Remaining int64
	Limit     int64
}

// TokenBucket represents a token bucket rate limiter
type TokenBucket struct {
	redis    *redis.Client
	capacity int64         // Maximum number of tokens
	refill   int64         // Number of tokens to refill per window
	window   time.Duration // Time window for refilling
	now      func() time.Time
}

// NewTokenBucket creates a new token bucket rate limiter refilling per minute
func NewTokenBucket(redisClient *redis.Client, capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		redis:    redisClient,
		capacity: capacity,
		refill:   refillRate,
		window:   time.Minute,
		now:      time.Now,
	}
}

// takeScript refills the bucket for the elapsed time, takes one token if
// there is one and returns {allowed, tokens}.
const takeScript = `
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local time_passed = now - last_refill
	local tokens_to_add = math.floor((time_passed / window) * refill_rate)

	if tokens_to_add > 0 then
		tokens = math.min(capacity, tokens + tokens_to_add)
		last_refill = now
	end

	local allowed = 0
	if tokens > 0 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('EXPIRE', key, window * 2)
	return {allowed, tokens}
`

func key(subject, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", subject, action)
}

// Allow consumes a token for subject's action if one is available
func (tb *TokenBucket) Allow(ctx context.Context, subject, action string) (Decision, error) {
	result, err := tb.redis.Eval(ctx, takeScript, []string{key(subject, action)},
		tb.capacity, tb.refill, int64(tb.window.Seconds()), tb.now().Unix()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, fmt.Errorf("unexpected result type from rate limit script")
	}
	allowed, ok1 := values[0].(int64)
	tokens, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return Decision{}, fmt.Errorf("unexpected result type from rate limit script")
	}

	return Decision{Allowed: allowed == 1, Remaining: tokens, Limit: tb.capacity}, nil
}
