package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ub-detected/football-bot/internal/models"
)

// appendHistoryTx stores one row per player for a settled game, inside the
// settlement transaction. The room is serialized as a JSONB snapshot so later
// edits to users cannot rewrite the record.
func appendHistoryTx(ctx context.Context, tx pgx.Tx, entries []*models.GameHistory) error {
	q := `INSERT INTO game_history (id, user_id, room_snapshot, was_winner, team,
	                                score_a, score_b, was_captain, result, points_earned,
	                                played_at, game_start_time, game_end_time)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		snapshot, err := json.Marshal(e.GameRoom)
		if err != nil {
			return fmt.Errorf("failed to marshal room snapshot: %w", err)
		}
		_, err = tx.Exec(ctx, q,
			e.ID, e.User.ID, snapshot, e.WasWinner, e.Team,
			e.ScoreA, e.ScoreB, e.WasCaptain, e.Result, e.PointsEarned,
			e.PlayedAt, e.GameStartTime, e.GameEndTime,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history row: %w", err)
		}
	}
	return nil
}

// HistoryForUser returns one page of the user's games, newest first, plus the
// total row count.
func (p *Postgres) HistoryForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*models.GameHistory, int, error) {
	var total int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM game_history WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	q := `SELECT id, room_snapshot, was_winner, team, score_a, score_b, was_captain,
	             result, points_earned, played_at, game_start_time, game_end_time
	      FROM game_history
	      WHERE user_id = $1
	      ORDER BY played_at DESC
	      OFFSET $2 LIMIT $3`
	rows, err := p.pool.Query(ctx, q, userID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	user, err := p.UserByID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	var out []*models.GameHistory
	for rows.Next() {
		var h models.GameHistory
		var snapshot []byte
		err := rows.Scan(
			&h.ID, &snapshot, &h.WasWinner, &h.Team, &h.ScoreA, &h.ScoreB, &h.WasCaptain,
			&h.Result, &h.PointsEarned, &h.PlayedAt, &h.GameStartTime, &h.GameEndTime,
		)
		if err != nil {
			return nil, 0, err
		}
		var snap models.GameRoom
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal room snapshot: %w", err)
		}
		h.GameRoom = &snap
		h.User = user
		out = append(out, &h)
	}
	return out, total, rows.Err()
}
