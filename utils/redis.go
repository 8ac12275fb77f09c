package utils

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	RedisClient *redis.Client
	redisCtx    = context.Background()
)

// InitRedis connects the shared redis client used for token storage and the
// availability cache.
func InitRedis() error {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	return RedisClient.Ping(redisCtx).Err()
}

// ======================
// Token helpers (password reset)
// ======================

func SetToken(key, value string, ttl time.Duration) error {
	return RedisClient.Set(redisCtx, key, value, ttl).Err()
}

func GetToken(key string) (string, error) {
	return RedisClient.Get(redisCtx, key).Result()
}

func DeleteToken(key string) error {
	return RedisClient.Del(redisCtx, key).Err()
}

// ======================
// Availability cache
// ======================
//
// Station availability snapshots are cached read-through for the UI badge
// endpoints only. Admission decisions always recount from the booking table,
// so a stale entry can never cause a double booking; it is still invalidated
// on every booking status change for the station.

const availabilityTTL = 30 * time.Second

func availabilityKey(stationID uint) string {
	return fmt.Sprintf("availability:station:%d", stationID)
}

// CacheAvailability stores the serialized snapshot list for a station.
func CacheAvailability(ctx context.Context, stationID uint, payload []byte) error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Set(ctx, availabilityKey(stationID), payload, availabilityTTL).Err()
}

// GetCachedAvailability returns the cached snapshot payload, redis.Nil when absent.
func GetCachedAvailability(ctx context.Context, stationID uint) ([]byte, error) {
	if RedisClient == nil {
		return nil, redis.Nil
	}
	return RedisClient.Get(ctx, availabilityKey(stationID)).Bytes()
}

// InvalidateAvailability drops the cached snapshots for a station. Called on
// every booking status change so freed slots become visible immediately.
func InvalidateAvailability(ctx context.Context, stationID uint) {
	if RedisClient == nil {
		return
	}
	_ = RedisClient.Del(ctx, availabilityKey(stationID)).Err()
}
