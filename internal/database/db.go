// Package database implements room.Store on Postgres via pgx.
package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Postgres holds the connection pool. It satisfies room.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect builds a pool from DATABASE_URL, or from the individual
// POSTGRES_USER / POSTGRES_PASSWORD / PG_HOST / PG_PORT / PG_DATABASE
// variables when DATABASE_URL is unset, then pings and applies the schema.
func Connect(ctx context.Context) (*Postgres, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("PG_HOST"),
			os.Getenv("PG_PORT"),
			os.Getenv("PG_DATABASE"),
		)
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	pg := &Postgres{pool: pool}
	if err := pg.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logrus.Info("connected to Postgres")
	return pg, nil
}

// NewWithPool wraps an existing pool (tests, custom bootstrap).
func NewWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL,
	photo_url TEXT NOT NULL DEFAULT '',
	score INT NOT NULL DEFAULT 0,
	games_played INT NOT NULL DEFAULT 0,
	games_won INT NOT NULL DEFAULT 0,
	score_mismatch_count INT NOT NULL DEFAULT 0,
	theme_preference TEXT NOT NULL DEFAULT 'light',
	telegram_id TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_rooms (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	creator_id UUID NOT NULL REFERENCES users(id),
	max_players INT NOT NULL,
	location TEXT NOT NULL,
	time_range TEXT NOT NULL,
	status TEXT NOT NULL,
	captain_a_id UUID REFERENCES users(id),
	captain_b_id UUID REFERENCES users(id),
	score_a INT,
	score_b INT,
	captain_a_submitted BOOLEAN NOT NULL DEFAULT FALSE,
	captain_b_submitted BOOLEAN NOT NULL DEFAULT FALSE,
	captain_a_proposal TEXT NOT NULL DEFAULT '',
	captain_b_proposal TEXT NOT NULL DEFAULT '',
	score_mismatch BOOLEAN NOT NULL DEFAULT FALSE,
	score_submission_attempts INT NOT NULL DEFAULT 0,
	start_time TIMESTAMPTZ,
	end_time TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	version BIGINT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS room_players (
	room_id UUID NOT NULL REFERENCES game_rooms(id) ON DELETE CASCADE,
	user_id UUID NOT NULL REFERENCES users(id),
	seat INT NOT NULL,
	team TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS active_rooms (
	user_id UUID PRIMARY KEY REFERENCES users(id),
	room_id UUID NOT NULL REFERENCES game_rooms(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS game_history (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id),
	room_snapshot JSONB NOT NULL,
	was_winner BOOLEAN NOT NULL,
	team TEXT NOT NULL,
	score_a INT NOT NULL,
	score_b INT NOT NULL,
	was_captain BOOLEAN NOT NULL,
	result TEXT NOT NULL,
	points_earned INT NOT NULL,
	played_at TIMESTAMPTZ NOT NULL,
	game_start_time TIMESTAMPTZ,
	game_end_time TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_game_history_user ON game_history (user_id, played_at DESC);

CREATE TABLE IF NOT EXISTS complaints (
	id UUID PRIMARY KEY,
	reporter_id UUID NOT NULL REFERENCES users(id),
	reported_user_id UUID NOT NULL REFERENCES users(id),
	room_id UUID NOT NULL,
	reason TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
