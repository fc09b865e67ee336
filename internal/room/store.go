package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ub-detected/football-bot/internal/models"
)

// ErrVersionConflict is returned by SaveRoom when the room row changed
// underneath the caller. The service retries under the room lock, so in
// practice this only fires on store misuse.
var ErrVersionConflict = errors.New("room version conflict")

// RoomFilter narrows ListRooms. Zero value lists every joinable room.
type RoomFilter struct {
	Name     string
	Location string
	// TimeRanges matches any of the given substrings (the client sends a
	// comma-separated list of intervals).
	TimeRanges []string
	// IncludeCompleted and IncludeFull widen the listing beyond the
	// default "open rooms only" view.
	IncludeCompleted bool
	IncludeFull      bool
}

// Store is the persistence contract for the room core: rooms, users, the
// active-room index, history and complaints. database.Postgres implements
// it on pgx; MemoryStore backs tests and dev mode.
type Store interface {
	CreateRoom(ctx context.Context, room *models.GameRoom) error
	RoomByID(ctx context.Context, id uuid.UUID) (*models.GameRoom, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]*models.GameRoom, error)
	SaveRoom(ctx context.Context, room *models.GameRoom) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error

	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	Leaderboard(ctx context.Context, page, perPage int) ([]*models.User, int, error)

	// ActiveRoom is the user-id → room-id index behind the one-active-room
	// invariant. Entries exist only while a room is in a non-waiting,
	// non-completed state. The index is only ever written together with the
	// room row, atomically, by ActivateRoom and SettleRoom.
	ActiveRoom(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error)

	// ActivateRoom saves the room and binds every player to it in the
	// active-room index, as one atomic unit.
	ActivateRoom(ctx context.Context, room *models.GameRoom) error

	// SettleRoom commits a settlement atomically: the updated users, their
	// history rows, the release of every player's active-room binding and
	// the completed room row all land together or not at all. A partial
	// settlement must never be observable, or a resubmission could apply
	// the score deltas twice.
	SettleRoom(ctx context.Context, room *models.GameRoom, users []*models.User, entries []*models.GameHistory) error

	HistoryForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*models.GameHistory, int, error)

	CreateComplaint(ctx context.Context, c *models.Complaint) error

	// StaleSubmissions returns rooms sitting in score_submission whose
	// play ended before the cutoff. Used by the timeout sweeper.
	StaleSubmissions(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}
