// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/ub-detected/football-bot/internal/auth"
	"github.com/ub-detected/football-bot/internal/cache"
	"github.com/ub-detected/football-bot/internal/database"
	"github.com/ub-detected/football-bot/internal/handlers"
	"github.com/ub-detected/football-bot/internal/models"
	"github.com/ub-detected/football-bot/internal/room"
)

// settlementSink bridges room settlements into Redis: the settlement record
// lands on the queue for downstream consumers and the cached leaderboard
// pages are dropped since scores just moved.
type settlementSink struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

func (s *settlementSink) RoomSettled(ctx context.Context, rm *models.GameRoom, entries []*models.GameHistory) {
	rec := cache.SettlementRecord{
		RoomID:    rm.ID,
		NoContest: entries[0].Result == models.ResultNoContest,
		Players:   rm.PlayerIDs(),
		SettledAt: time.Now().UnixMilli(),
	}
	if rm.ScoreA != nil {
		rec.ScoreA = *rm.ScoreA
	}
	if rm.ScoreB != nil {
		rec.ScoreB = *rm.ScoreB
	}
	if err := s.cache.PublishSettlement(ctx, rec); err != nil {
		s.logger.WithError(err).Error("failed to publish settlement record")
	}
	s.cache.InvalidateLeaderboard(ctx)
}

func main() {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	if err := auth.Init(); err != nil {
		logger.WithError(err).Fatal("failed to initialize session keys")
	}

	ctx := context.Background()

	// Postgres when configured, in-memory otherwise (dev mode).
	var store room.Store
	if os.Getenv("DATABASE_URL") != "" || os.Getenv("PG_HOST") != "" {
		pg, err := database.Connect(ctx)
		if err != nil {
			logger.WithError(err).Fatal("database connection failed")
		}
		defer pg.Close()
		store = pg
	} else {
		logger.Warn("no database configured, using in-memory store")
		store = room.NewMemoryStore()
	}

	svc := room.NewService(store, logger)

	var c *cache.Cache
	if os.Getenv("REDIS_ADDR") != "" {
		var err error
		if c, err = cache.Connect(); err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
		svc.SetEventSink(&settlementSink{cache: c, logger: logger})
	}

	// Opt-in submission timeout, e.g. SCORE_SUBMISSION_TIMEOUT=30m.
	if raw := os.Getenv("SCORE_SUBMISSION_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			logger.WithError(err).Fatal("invalid SCORE_SUBMISSION_TIMEOUT")
		}
		sweeper, err := room.NewSweeper(svc, timeout, time.Minute, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to build sweeper")
		}
		sweeper.Start()
		defer sweeper.Stop()
		logger.WithField("timeout", timeout).Info("score submission sweeper enabled")
	}

	server := handlers.NewServer(svc, c, logger)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	httpServer := &http.Server{Addr: addr, Handler: server.Routes()}

	go func() {
		logger.Infof("Running on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server exited")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("server stopped")
}
