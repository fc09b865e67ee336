package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ub-detected/football-bot/internal/models"
)

func (p *Postgres) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	q := `INSERT INTO complaints (id, reporter_id, reported_user_id, room_id, reason, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6)`

	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			c.ID, c.Reporter.ID, c.ReportedUser.ID, c.GameRoom.ID, c.Reason, c.CreatedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert complaint: %w", err)
	}
	return nil
}
