// cmd/stats is an asynchronous consumer that pops settlement records from
// the Redis queue and rolls them up into per-day counters, also in Redis.
// It runs beside the API server so stats never touch the request path.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ub-detected/football-bot/internal/cache"
)

// StatsService pops settlement records and maintains daily counters under
// footbot_stats:<YYYY-MM-DD> hashes.
type StatsService struct {
	redisClient *redis.Client
	queueName   string
	retention   time.Duration
	logger      *logrus.Logger

	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewStatsService constructs a StatsService instance from environment variables or defaults.
func NewStatsService(logger *logrus.Logger) *StatsService {
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	retentionDays := getEnvInt("STATS_RETENTION_DAYS", 90)

	ctx, cancel := context.WithCancel(context.Background())
	return &StatsService{
		redisClient: rdb,
		queueName:   getEnv("SETTLEMENT_QUEUE_NAME", cache.DefaultQueueName),
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		logger:      logger,
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run consumes the queue until the context is cancelled.
func (ss *StatsService) Run() {
	ss.logger.Info("football-bot stats consumer started")
	for {
		select {
		case <-ss.ctx.Done():
			ss.logger.Info("stats consumer shutting down")
			return
		default:
			// BLPop with a short timeout so cancellation is handled.
			res, err := ss.redisClient.BLPop(ss.ctx, 3*time.Second, ss.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ss.ctx.Err() == nil {
					ss.logger.WithError(err).Error("BLPop failed")
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			var rec cache.SettlementRecord
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				ss.logger.WithError(err).Warn("invalid settlement record")
				continue
			}
			if err := ss.apply(rec); err != nil {
				ss.logger.WithError(err).WithField("room", rec.RoomID).Error("failed to apply settlement")
			}
		}
	}
}

// apply rolls one settlement into the day's counters.
func (ss *StatsService) apply(rec cache.SettlementRecord) error {
	day := time.UnixMilli(rec.SettledAt).UTC().Format("2006-01-02")
	key := fmt.Sprintf("footbot_stats:%s", day)

	pipe := ss.redisClient.Pipeline()
	pipe.HIncrBy(ss.ctx, key, "games", 1)
	pipe.HIncrBy(ss.ctx, key, "players", int64(len(rec.Players)))
	pipe.HIncrBy(ss.ctx, key, "goals", int64(rec.ScoreA+rec.ScoreB))
	if rec.NoContest {
		pipe.HIncrBy(ss.ctx, key, "no_contest", 1)
	} else if rec.ScoreA == rec.ScoreB {
		pipe.HIncrBy(ss.ctx, key, "draws", 1)
	}
	pipe.Expire(ss.ctx, key, ss.retention)
	_, err := pipe.Exec(ss.ctx)
	return err
}

// Stop gracefully stops the consumer.
func (ss *StatsService) Stop() {
	ss.cancelFn()
}

func main() {
	logger := logrus.New()
	ss := NewStatsService(logger)
	go ss.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ss.Stop()
	logger.Info("stats consumer shutdown complete")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
