package room

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ub-detected/football-bot/internal/models"
)

func seedStoreRoom(t *testing.T, store *MemoryStore, players ...*models.User) *models.GameRoom {
	t.Helper()
	rm := &models.GameRoom{
		ID:         uuid.New(),
		Name:       "game",
		Creator:    players[0],
		MaxPlayers: len(players),
		Location:   "Арбат",
		TimeRange:  "18:00-20:00",
		Status:     models.StatusWaiting,
		Players:    players,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateRoom(context.Background(), rm))
	return rm
}

func TestActivateRoomBindsAllPlayers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	alice := seedUser(t, store, "alice", 0)
	bob := seedUser(t, store, "bob", 0)
	rm := seedStoreRoom(t, store, alice, bob)

	require.NoError(t, store.ActivateRoom(ctx, rm))
	assert.Equal(t, int64(2), rm.Version)

	for _, u := range []*models.User{alice, bob} {
		active, ok, err := store.ActiveRoom(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rm.ID, active)
	}
}

func TestActivateRoomStaleVersionBindsNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	alice := seedUser(t, store, "alice", 0)
	bob := seedUser(t, store, "bob", 0)
	rm := seedStoreRoom(t, store, alice, bob)

	stale := rm.Clone()
	require.NoError(t, store.SaveRoom(ctx, rm))

	err := store.ActivateRoom(ctx, stale)
	require.ErrorIs(t, err, ErrVersionConflict)

	for _, u := range []*models.User{alice, bob} {
		_, ok, err := store.ActiveRoom(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

// A settlement retried against a room row that already moved on must apply
// nothing: no score deltas, no history rows, no active-room release.
func TestSettleRoomStaleVersionAppliesNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	alice := seedUser(t, store, "alice", 100)
	bob := seedUser(t, store, "bob", 100)
	rm := seedStoreRoom(t, store, alice, bob)
	require.NoError(t, store.ActivateRoom(ctx, rm))

	stale := rm.Clone()
	require.NoError(t, store.SaveRoom(ctx, rm))

	credited := alice.Clone()
	credited.Score += 50
	credited.GamesPlayed++
	credited.GamesWon++
	entries := []*models.GameHistory{{
		ID:       uuid.New(),
		User:     credited.Clone(),
		GameRoom: stale.Clone(),
		PlayedAt: time.Now().UTC(),
	}}

	err := store.SettleRoom(ctx, stale, []*models.User{credited}, entries)
	require.ErrorIs(t, err, ErrVersionConflict)

	got, err := store.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, 0, got.GamesPlayed)
	assert.Equal(t, 0, got.GamesWon)

	history, total, err := store.HistoryForUser(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, history)

	active, ok, err := store.ActiveRoom(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rm.ID, active)

	cur, err := store.RoomByID(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, rm.Version, cur.Version)
}

func TestSettleRoomCommitsEverythingTogether(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	alice := seedUser(t, store, "alice", 100)
	bob := seedUser(t, store, "bob", 100)
	rm := seedStoreRoom(t, store, alice, bob)
	require.NoError(t, store.ActivateRoom(ctx, rm))

	rm.Status = models.StatusCompleted
	winner := alice.Clone()
	winner.Score += 50
	winner.GamesPlayed++
	winner.GamesWon++
	entries := []*models.GameHistory{{
		ID:        uuid.New(),
		User:      winner.Clone(),
		GameRoom:  rm.Clone(),
		WasWinner: true,
		PlayedAt:  time.Now().UTC(),
	}}

	require.NoError(t, store.SettleRoom(ctx, rm, []*models.User{winner}, entries))

	got, err := store.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, got.Score)
	assert.Equal(t, 1, got.GamesPlayed)

	_, total, err := store.HistoryForUser(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	for _, u := range []*models.User{alice, bob} {
		_, ok, err := store.ActiveRoom(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	cur, err := store.RoomByID(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, cur.Status)
}
