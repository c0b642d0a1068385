package cache

import (
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/plate-console/internal/utils/response"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	RedisConnected bool     `json:"redis_connected"`
	ObjectURLKeys  int      `json:"object_url_keys"`
	HistoryKeys    []string `json:"history_keys"`
	KeyCount       int      `json:"total_keys"`
}

// GetCacheStats returns cache statistics
// @Summary Redis cache statistics
// @Tags ops
// @Produce json
// @Success 200 {object} response.Response "Cache stats retrieved"
// @Router /cache/stats [get]
func GetCacheStats(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats := CacheStats{
			RedisConnected: true,
		}

		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			stats.RedisConnected = false
			response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
			return
		}

		if keys, err := redisClient.Keys(ctx, "objecturl:*").Result(); err == nil {
			stats.ObjectURLKeys = len(keys)
		}

		if keys, err := redisClient.Keys(ctx, HistoryKeyPattern).Result(); err == nil {
			stats.HistoryKeys = keys
			if len(stats.HistoryKeys) > 10 {
				stats.HistoryKeys = stats.HistoryKeys[:10]
			}
		}

		if size, err := redisClient.DBSize(ctx).Result(); err == nil {
			stats.KeyCount = int(size)
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
	}
}
