package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ub-detected/football-bot/internal/models"
	"github.com/ub-detected/football-bot/internal/room"
)

const roomColumns = `id, name, creator_id, max_players, location, time_range, status,
       captain_a_id, captain_b_id, score_a, score_b,
       captain_a_submitted, captain_b_submitted, captain_a_proposal, captain_b_proposal,
       score_mismatch, score_submission_attempts, start_time, end_time, created_at, version`

// roomRow is the flat shape of a game_rooms record before the player lists
// and user references are attached.
type roomRow struct {
	room      models.GameRoom
	creatorID uuid.UUID
	captainA  uuid.NullUUID
	captainB  uuid.NullUUID
}

func scanRoomRow(row pgx.Row) (*roomRow, error) {
	var rr roomRow
	r := &rr.room
	err := row.Scan(
		&r.ID, &r.Name, &rr.creatorID, &r.MaxPlayers, &r.Location, &r.TimeRange, &r.Status,
		&rr.captainA, &rr.captainB, &r.ScoreA, &r.ScoreB,
		&r.CaptainASubmitted, &r.CaptainBSubmitted, &r.CaptainAProposal, &r.CaptainBProposal,
		&r.ScoreMismatch, &r.ScoreSubmissionAttempts, &r.StartTime, &r.EndTime, &r.CreatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	return &rr, nil
}

func (p *Postgres) CreateRoom(ctx context.Context, r *models.GameRoom) error {
	r.Version = 1
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO game_rooms (id, name, creator_id, max_players, location, time_range,
		                              status, created_at, version)
		      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := tx.Exec(ctx, q,
			r.ID, r.Name, r.Creator.ID, r.MaxPlayers, r.Location, r.TimeRange,
			r.Status, r.CreatedAt, r.Version,
		)
		if err != nil {
			return err
		}
		return writePlayersTx(ctx, tx, r)
	})
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (p *Postgres) RoomByID(ctx context.Context, id uuid.UUID) (*models.GameRoom, error) {
	q := `SELECT ` + roomColumns + ` FROM game_rooms WHERE id = $1`
	rr, err := scanRoomRow(p.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &room.NotFoundError{Resource: "room", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query room: %w", err)
	}
	if err := p.attachUsers(ctx, []*roomRow{rr}); err != nil {
		return nil, err
	}
	return &rr.room, nil
}

func (p *Postgres) ListRooms(ctx context.Context, filter room.RoomFilter) ([]*models.GameRoom, error) {
	q := `SELECT ` + roomColumns + ` FROM game_rooms`
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeCompleted {
		conds = append(conds, fmt.Sprintf("status <> %s", arg(string(models.StatusCompleted))))
	}
	if filter.Name != "" {
		conds = append(conds, fmt.Sprintf("name ILIKE %s", arg("%"+filter.Name+"%")))
	}
	if filter.Location != "" {
		conds = append(conds, fmt.Sprintf("location ILIKE %s", arg("%"+filter.Location+"%")))
	}
	if len(filter.TimeRanges) > 0 {
		var ors string
		for i, tr := range filter.TimeRanges {
			if i > 0 {
				ors += " OR "
			}
			ors += fmt.Sprintf("time_range ILIKE %s", arg("%"+tr+"%"))
		}
		conds = append(conds, "("+ors+")")
	}

	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY created_at"

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rrs []*roomRow
	for rows.Next() {
		rr, err := scanRoomRow(rows)
		if err != nil {
			return nil, err
		}
		rrs = append(rrs, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := p.attachUsers(ctx, rrs); err != nil {
		return nil, err
	}

	var out []*models.GameRoom
	for _, rr := range rrs {
		if !filter.IncludeFull && rr.room.IsFull() {
			continue
		}
		out = append(out, &rr.room)
	}
	return out, nil
}

const updateRoomQ = `
UPDATE game_rooms
SET name=$2, creator_id=$3, max_players=$4, location=$5, time_range=$6, status=$7,
    captain_a_id=$8, captain_b_id=$9, score_a=$10, score_b=$11,
    captain_a_submitted=$12, captain_b_submitted=$13,
    captain_a_proposal=$14, captain_b_proposal=$15,
    score_mismatch=$16, score_submission_attempts=$17,
    start_time=$18, end_time=$19, version=$20
WHERE id=$1`

func (p *Postgres) SaveRoom(ctx context.Context, r *models.GameRoom) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return saveRoomTx(ctx, tx, r)
	})
}

// saveRoomTx is the version-checked room write, usable inside a larger
// transaction. Locks the row, bumps the version and rewrites the membership.
func saveRoomTx(ctx context.Context, tx pgx.Tx, r *models.GameRoom) error {
	var stored int64
	err := tx.QueryRow(ctx, `SELECT version FROM game_rooms WHERE id = $1 FOR UPDATE`, r.ID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return &room.NotFoundError{Resource: "room", ID: r.ID}
	}
	if err != nil {
		return fmt.Errorf("failed to lock room row: %w", err)
	}
	if stored != r.Version {
		return room.ErrVersionConflict
	}

	r.Version++
	var captainA, captainB uuid.NullUUID
	if r.CaptainA != nil {
		captainA = uuid.NullUUID{UUID: r.CaptainA.ID, Valid: true}
	}
	if r.CaptainB != nil {
		captainB = uuid.NullUUID{UUID: r.CaptainB.ID, Valid: true}
	}
	_, err = tx.Exec(ctx, updateRoomQ,
		r.ID, r.Name, r.Creator.ID, r.MaxPlayers, r.Location, r.TimeRange, r.Status,
		captainA, captainB, r.ScoreA, r.ScoreB,
		r.CaptainASubmitted, r.CaptainBSubmitted,
		r.CaptainAProposal, r.CaptainBProposal,
		r.ScoreMismatch, r.ScoreSubmissionAttempts,
		r.StartTime, r.EndTime, r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM room_players WHERE room_id = $1`, r.ID); err != nil {
		return fmt.Errorf("failed to clear room players: %w", err)
	}
	return writePlayersTx(ctx, tx, r)
}

func (p *Postgres) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	// active_rooms and room_players cascade
	_, err := p.pool.Exec(ctx, `DELETE FROM game_rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (p *Postgres) StaleSubmissions(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	q := `SELECT id FROM game_rooms WHERE status = $1 AND end_time IS NOT NULL AND end_time < $2`
	rows, err := p.pool.Query(ctx, q, string(models.StatusScoreSubmission), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale submissions: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// writePlayersTx records the membership rows for a room. Seat order preserves
// join order; team is "A", "B" or "" before teams are formed.
func writePlayersTx(ctx context.Context, tx pgx.Tx, r *models.GameRoom) error {
	teams := make(map[uuid.UUID]string, len(r.TeamA)+len(r.TeamB))
	for _, u := range r.TeamA {
		teams[u.ID] = "A"
	}
	for _, u := range r.TeamB {
		teams[u.ID] = "B"
	}

	q := `INSERT INTO room_players (room_id, user_id, seat, team) VALUES ($1, $2, $3, $4)`
	for seat, u := range r.Players {
		if _, err := tx.Exec(ctx, q, r.ID, u.ID, seat, teams[u.ID]); err != nil {
			return fmt.Errorf("failed to insert room player: %w", err)
		}
	}
	return nil
}

// attachUsers loads every user referenced by the given rooms in one query
// and wires up Players, TeamA/TeamB, Creator and the captains.
func (p *Postgres) attachUsers(ctx context.Context, rrs []*roomRow) error {
	if len(rrs) == 0 {
		return nil
	}

	roomIDs := make([]string, len(rrs))
	byID := make(map[uuid.UUID]*roomRow, len(rrs))
	for i, rr := range rrs {
		roomIDs[i] = rr.room.ID.String()
		byID[rr.room.ID] = rr
	}

	q := `SELECT rp.room_id, rp.team, ` + prefixedUserColumns("u") + `
	      FROM room_players rp
	      JOIN users u ON u.id = rp.user_id
	      WHERE rp.room_id = ANY($1::uuid[])
	      ORDER BY rp.room_id, rp.seat`
	rows, err := p.pool.Query(ctx, q, roomIDs)
	if err != nil {
		return fmt.Errorf("failed to query room players: %w", err)
	}
	defer rows.Close()

	users := make(map[uuid.UUID]*models.User)
	for rows.Next() {
		var roomID uuid.UUID
		var team string
		var u models.User
		err := rows.Scan(
			&roomID, &team,
			&u.ID, &u.Username, &u.PhotoURL, &u.Score, &u.GamesPlayed, &u.GamesWon,
			&u.ScoreMismatchCount, &u.ThemePreference, &u.TelegramID, &u.CreatedAt,
		)
		if err != nil {
			return err
		}
		users[u.ID] = &u

		rr := byID[roomID]
		rr.room.Players = append(rr.room.Players, &u)
		switch team {
		case "A":
			rr.room.TeamA = append(rr.room.TeamA, &u)
		case "B":
			rr.room.TeamB = append(rr.room.TeamB, &u)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	resolve := func(id uuid.UUID) (*models.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := p.UserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		users[id] = u
		return u, nil
	}

	for _, rr := range rrs {
		creator, err := resolve(rr.creatorID)
		if err != nil {
			return err
		}
		rr.room.Creator = creator
		if rr.captainA.Valid {
			if rr.room.CaptainA, err = resolve(rr.captainA.UUID); err != nil {
				return err
			}
		}
		if rr.captainB.Valid {
			if rr.room.CaptainB, err = resolve(rr.captainB.UUID); err != nil {
				return err
			}
		}
	}
	return nil
}

func prefixedUserColumns(alias string) string {
	return alias + `.id, ` + alias + `.username, ` + alias + `.photo_url, ` + alias + `.score,
	       ` + alias + `.games_played, ` + alias + `.games_won, ` + alias + `.score_mismatch_count,
	       ` + alias + `.theme_preference, COALESCE(` + alias + `.telegram_id, ''), ` + alias + `.created_at`
}
