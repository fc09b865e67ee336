// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list holding settlement records for any
// downstream consumer (stats, notifications).
var DefaultQueueName = "footbot_settlements"

// DefaultLeaderboardTTL matches the client's leaderboard polling cadence;
// a shorter TTL would just hammer Postgres for identical pages.
const DefaultLeaderboardTTL = 30 * time.Second

// SettlementRecord is the event pushed onto the queue when a room settles.
type SettlementRecord struct {
	RoomID    uuid.UUID   `json:"room_id"`
	ScoreA    int         `json:"score_a"`
	ScoreB    int         `json:"score_b"`
	NoContest bool        `json:"no_contest"`
	Players   []uuid.UUID `json:"players"`
	SettledAt int64       `json:"settled_at"`
}

// Cache wraps the Redis client. A nil *Cache is valid and turns every
// operation into a no-op, so the service runs without Redis.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect initializes a Cache from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() (*Cache, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Cache{rdb: rdb, ttl: DefaultLeaderboardTTL}, nil
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func leaderboardKey(page, perPage int) string {
	return fmt.Sprintf("leaderboard:%d:%d", page, perPage)
}

// GetLeaderboardPage returns a cached serialized leaderboard page, or
// ok=false on miss (or when Redis is absent).
func (c *Cache) GetLeaderboardPage(ctx context.Context, page, perPage int) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, leaderboardKey(page, perPage)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetLeaderboardPage stores a serialized leaderboard page with the cache TTL.
func (c *Cache) SetLeaderboardPage(ctx context.Context, page, perPage int, data []byte) {
	if c == nil {
		return
	}
	c.rdb.Set(ctx, leaderboardKey(page, perPage), data, c.ttl)
}

// InvalidateLeaderboard drops every cached leaderboard page. Called after a
// settlement moves scores.
func (c *Cache) InvalidateLeaderboard(ctx context.Context) {
	if c == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, "leaderboard:*", 0).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
}

// PublishSettlement serializes the record and pushes it onto the queue.
func (c *Cache) PublishSettlement(ctx context.Context, record SettlementRecord) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SettlementRecord: %w", err)
	}

	queueName := getEnv("SETTLEMENT_QUEUE_NAME", DefaultQueueName)
	if err := c.rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
