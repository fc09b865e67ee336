package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ub-detected/football-bot/internal/models"
	"github.com/ub-detected/football-bot/internal/room"
)

const userColumns = `id, username, photo_url, score, games_played, games_won,
       score_mismatch_count, theme_preference, COALESCE(telegram_id, ''), created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.PhotoURL, &u.Score, &u.GamesPlayed, &u.GamesWon,
		&u.ScoreMismatchCount, &u.ThemePreference, &u.TelegramID, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	q := `INSERT INTO users (id, username, photo_url, score, games_played, games_won,
	                         score_mismatch_count, theme_preference, telegram_id)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`

	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Username, user.PhotoURL, user.Score, user.GamesPlayed,
			user.GamesWon, user.ScoreMismatchCount, user.ThemePreference, user.TelegramID,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (p *Postgres) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(p.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &room.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (p *Postgres) UserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(p.pool.QueryRow(ctx, q, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &room.NotFoundError{Resource: "user", ID: uuid.Nil}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by telegram id: %w", err)
	}
	return u, nil
}

const updateUserQ = `
UPDATE users
SET username=$2, photo_url=$3, score=$4, games_played=$5, games_won=$6,
    score_mismatch_count=$7, theme_preference=$8
WHERE id=$1`

func (p *Postgres) SaveUser(ctx context.Context, user *models.User) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return saveUserTx(ctx, tx, user)
	})
}

func saveUserTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	tag, err := tx.Exec(ctx, updateUserQ,
		user.ID, user.Username, user.PhotoURL, user.Score, user.GamesPlayed,
		user.GamesWon, user.ScoreMismatchCount, user.ThemePreference,
	)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &room.NotFoundError{Resource: "user", ID: user.ID}
	}
	return nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Leaderboard returns one page of users ordered by score, ties broken by
// username, plus the total user count for pagination.
func (p *Postgres) Leaderboard(ctx context.Context, page, perPage int) ([]*models.User, int, error) {
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	q := `SELECT ` + userColumns + `
	      FROM users
	      ORDER BY score DESC, username
	      OFFSET $1 LIMIT $2`
	rows, err := p.pool.Query(ctx, q, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (p *Postgres) ActiveRoom(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error) {
	var roomID uuid.UUID
	err := p.pool.QueryRow(ctx, `SELECT room_id FROM active_rooms WHERE user_id = $1`, userID).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to query active room: %w", err)
	}
	return roomID, true, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
