package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ub-detected/football-bot/internal/models"
)

// ActivateRoom writes the room row and binds every player to it in the
// active_rooms index, in one transaction.
func (p *Postgres) ActivateRoom(ctx context.Context, r *models.GameRoom) error {
	q := `INSERT INTO active_rooms (user_id, room_id) VALUES ($1, $2)
	      ON CONFLICT (user_id) DO UPDATE SET room_id = EXCLUDED.room_id`
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := saveRoomTx(ctx, tx, r); err != nil {
			return err
		}
		for _, uid := range r.PlayerIDs() {
			if _, err := tx.Exec(ctx, q, uid, r.ID); err != nil {
				return fmt.Errorf("failed to set active room for %s: %w", uid, err)
			}
		}
		return nil
	})
}

// SettleRoom commits a settlement in one transaction: the updated users,
// their history rows, the release of the active_rooms bindings and the
// completed room row. The single transaction is what keeps a crashed or
// retried settlement from applying score deltas twice.
func (p *Postgres) SettleRoom(ctx context.Context, r *models.GameRoom, users []*models.User, entries []*models.GameHistory) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := saveRoomTx(ctx, tx, r); err != nil {
			return err
		}
		for _, u := range users {
			if err := saveUserTx(ctx, tx, u); err != nil {
				return err
			}
		}
		if err := appendHistoryTx(ctx, tx, entries); err != nil {
			return err
		}
		ids := uuidStrings(r.PlayerIDs())
		if _, err := tx.Exec(ctx, `DELETE FROM active_rooms WHERE user_id = ANY($1::uuid[])`, ids); err != nil {
			return fmt.Errorf("failed to clear active rooms: %w", err)
		}
		return nil
	})
}
