package room

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ub-detected/football-bot/internal/models"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(store, logger), store
}

func seedUser(t *testing.T, store *MemoryStore, name string, score int) *models.User {
	t.Helper()
	u := &models.User{
		ID:        uuid.New(),
		Username:  name,
		Score:     score,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

// fullTwoPlayerRoom creates a 2-player room with both seats taken.
func fullTwoPlayerRoom(t *testing.T, svc *Service, store *MemoryStore) (uuid.UUID, *models.User, *models.User) {
	t.Helper()
	ctx := context.Background()
	creator := seedUser(t, store, "alice", 0)
	joiner := seedUser(t, store, "bob", 0)

	rm, err := svc.CreateRoom(ctx, creator.ID, "evening game", 2, "Сокольники", "18:00-20:00")
	require.NoError(t, err)

	res, err := svc.Join(ctx, rm.ID, joiner.ID)
	require.NoError(t, err)
	require.True(t, res.RoomIsFull)
	return rm.ID, creator, joiner
}

func TestCreateRoomValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, store, "alice", 0)

	var validationErr *ValidationError

	_, err := svc.CreateRoom(ctx, creator.ID, "  ", 4, "Арбат", "18:00-20:00")
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.CreateRoom(ctx, creator.ID, "game", 3, "Арбат", "18:00-20:00")
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.CreateRoom(ctx, creator.ID, "game", 34, "Арбат", "18:00-20:00")
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.CreateRoom(ctx, creator.ID, "game", 0, "Арбат", "18:00-20:00")
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateRoomCreatorAlreadyJoined(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, store, "alice", 0)

	rm, err := svc.CreateRoom(ctx, creator.ID, "game", 4, "Арбат", "18:00-20:00")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, rm.Status)
	assert.True(t, rm.HasPlayer(creator.ID))
	assert.Len(t, rm.Players, 1)
}

func TestJoinFullRoomRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, _, _ := fullTwoPlayerRoom(t, svc, store)
	third := seedUser(t, store, "carol", 0)

	_, err := svc.Join(ctx, roomID, third.ID)
	var fullErr *RoomFullError
	require.ErrorAs(t, err, &fullErr)
	assert.Equal(t, roomID, fullErr.RoomID)
}

func TestJoinIdempotentForMembers(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, _, joiner := fullTwoPlayerRoom(t, svc, store)

	res, err := svc.Join(ctx, roomID, joiner.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyJoined)
	assert.Len(t, res.Room.Players, 2)
}

func TestJoinAfterTeamsFormedRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, store, "alice", 0)
	joiner := seedUser(t, store, "bob", 0)
	outsider := seedUser(t, store, "carol", 0)

	rm, err := svc.CreateRoom(ctx, creator.ID, "game", 2, "Арбат", "18:00-20:00")
	require.NoError(t, err)
	_, err = svc.Join(ctx, rm.ID, joiner.ID)
	require.NoError(t, err)
	_, err = svc.StartTeamSelection(ctx, rm.ID, creator.ID)
	require.NoError(t, err)

	_, err = svc.Join(ctx, rm.ID, outsider.ID)
	var stateErr *StateConflictError
	require.ErrorAs(t, err, &stateErr)
}

func TestOneActiveRoomPerUser(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, _, joiner := fullTwoPlayerRoom(t, svc, store)

	_, err := svc.StartTeamSelection(ctx, roomID, roomCreator(t, store, roomID).ID)
	require.NoError(t, err)

	other := seedUser(t, store, "dave", 0)
	rm2, err := svc.CreateRoom(ctx, other.ID, "second game", 2, "Арбат", "20:00-22:00")
	require.NoError(t, err)

	_, err = svc.Join(ctx, rm2.ID, joiner.ID)
	var memberErr *MembershipConflictError
	require.ErrorAs(t, err, &memberErr)
	assert.Equal(t, roomID, memberErr.ActiveRoomID)
	assert.Equal(t, joiner.ID, memberErr.UserID)
}

func roomCreator(t *testing.T, store *MemoryStore, roomID uuid.UUID) *models.User {
	t.Helper()
	rm, err := store.RoomByID(context.Background(), roomID)
	require.NoError(t, err)
	return rm.Creator
}

func TestStartTeamSelectionRequiresCreatorAndFullRoom(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, store, "alice", 0)
	joiner := seedUser(t, store, "bob", 0)

	rm, err := svc.CreateRoom(ctx, creator.ID, "game", 2, "Арбат", "18:00-20:00")
	require.NoError(t, err)

	// not full yet
	_, err = svc.StartTeamSelection(ctx, rm.ID, creator.ID)
	var stateErr *StateConflictError
	require.ErrorAs(t, err, &stateErr)

	_, err = svc.Join(ctx, rm.ID, joiner.ID)
	require.NoError(t, err)

	// not the creator
	_, err = svc.StartTeamSelection(ctx, rm.ID, joiner.ID)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	got, err := svc.StartTeamSelection(ctx, rm.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTeamSelection, got.Status)
	require.NotNil(t, got.CaptainA)
	require.NotNil(t, got.CaptainB)

	// every player is now bound to this room
	for _, p := range got.Players {
		id, ok, err := store.ActiveRoom(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rm.ID, id)
	}
}

func TestLeaveCreatorHandover(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, store, "alice", 0)
	joiner := seedUser(t, store, "bob", 0)

	rm, err := svc.CreateRoom(ctx, creator.ID, "game", 4, "Арбат", "18:00-20:00")
	require.NoError(t, err)
	_, err = svc.Join(ctx, rm.ID, joiner.ID)
	require.NoError(t, err)

	deleted, err := svc.Leave(ctx, rm.ID, creator.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := svc.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, joiner.ID, got.Creator.ID)
	assert.Len(t, got.Players, 1)

	// last player out deletes the room
	deleted, err = svc.Leave(ctx, rm.ID, joiner.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.GetRoom(ctx, rm.ID)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestLeaveAfterTeamsFormedRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, _ := fullTwoPlayerRoom(t, svc, store)
	_, err := svc.StartTeamSelection(ctx, roomID, creator.ID)
	require.NoError(t, err)

	_, err = svc.Leave(ctx, roomID, creator.ID)
	var stateErr *StateConflictError
	require.ErrorAs(t, err, &stateErr)
}

func TestDeleteRoomCreatorOnly(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, joiner := fullTwoPlayerRoom(t, svc, store)

	err := svc.DeleteRoom(ctx, roomID, joiner.ID)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, svc.DeleteRoom(ctx, roomID, creator.ID))
	_, err = svc.GetRoom(ctx, roomID)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

// startedTwoPlayerRoom drives a full 2-player room into score_submission with
// captain A (the creator) having ended the game.
func startedTwoPlayerRoom(t *testing.T, svc *Service, store *MemoryStore) (uuid.UUID, *models.User, *models.User) {
	t.Helper()
	ctx := context.Background()
	roomID, creator, joiner := fullTwoPlayerRoom(t, svc, store)

	_, err := svc.StartTeamSelection(ctx, roomID, creator.ID)
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, roomID, creator.ID)
	require.NoError(t, err)
	rm, err := svc.EndGame(ctx, roomID, creator.ID)
	require.NoError(t, err)

	require.Equal(t, models.StatusScoreSubmission, rm.Status)
	require.True(t, rm.CaptainASubmitted)
	require.False(t, rm.CaptainBSubmitted)
	require.NotNil(t, rm.EndTime)
	return roomID, creator, joiner
}

func TestScoreMismatchThenAgreement(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, joiner := startedTwoPlayerRoom(t, svc, store)

	// captain A signaled end-game but still submits their own score
	res, err := svc.SubmitScore(ctx, roomID, creator.ID, "2:3")
	require.NoError(t, err)
	assert.False(t, res.Mismatch)
	assert.False(t, res.Settled)

	// captain B disagrees: attempt burns, both captains reset
	res, err = svc.SubmitScore(ctx, roomID, joiner.ID, "2:4")
	require.NoError(t, err)
	assert.True(t, res.Mismatch)
	assert.False(t, res.Settled)
	assert.Equal(t, 1, res.Room.ScoreSubmissionAttempts)
	assert.True(t, res.Room.ScoreMismatch)
	assert.False(t, res.Room.CaptainASubmitted)
	assert.False(t, res.Room.CaptainBSubmitted)

	for _, id := range []uuid.UUID{creator.ID, joiner.ID} {
		u, err := store.UserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, u.ScoreMismatchCount)
	}

	// second attempt agrees
	_, err = svc.SubmitScore(ctx, roomID, creator.ID, "2:4")
	require.NoError(t, err)
	res, err = svc.SubmitScore(ctx, roomID, joiner.ID, "2:4")
	require.NoError(t, err)
	assert.True(t, res.Settled)
	assert.Equal(t, models.StatusCompleted, res.Room.Status)
	require.NotNil(t, res.Room.ScoreA)
	require.NotNil(t, res.Room.ScoreB)
	assert.Equal(t, 2, *res.Room.ScoreA)
	assert.Equal(t, 4, *res.Room.ScoreB)

	// team B (the joiner) won
	winner, err := store.UserByID(ctx, joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, winner.GamesPlayed)
	assert.Equal(t, 1, winner.GamesWon)
	assert.Greater(t, winner.Score, 0)

	loser, err := store.UserByID(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loser.GamesPlayed)
	assert.Equal(t, 0, loser.GamesWon)
	assert.Equal(t, 0, loser.Score) // deduction floored at zero

	// active-room bindings released
	for _, id := range []uuid.UUID{creator.ID, joiner.ID} {
		_, ok, err := store.ActiveRoom(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// one history row per player
	history, total, err := store.HistoryForUser(ctx, joiner.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, history, 1)
	assert.Equal(t, models.ResultWin, history[0].Result)
	assert.True(t, history[0].WasCaptain)
}

// Both captains submit the same score at the same moment. The room lock must
// resolve the pair exactly once: one settlement, one stats bump, one history
// row per player, no matter how the goroutines interleave.
func TestConcurrentSubmitSettlesOnce(t *testing.T) {
	for i := 0; i < 25; i++ {
		svc, store := newTestService(t)
		ctx := context.Background()
		roomID, creator, joiner := startedTwoPlayerRoom(t, svc, store)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, id := range []uuid.UUID{creator.ID, joiner.ID} {
			wg.Add(1)
			go func(j int, userID uuid.UUID) {
				defer wg.Done()
				_, errs[j] = svc.SubmitScore(ctx, roomID, userID, "2:4")
			}(j, id)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		rm, err := store.RoomByID(ctx, roomID)
		require.NoError(t, err)
		require.Equal(t, models.StatusCompleted, rm.Status)

		for _, id := range []uuid.UUID{creator.ID, joiner.ID} {
			u, err := store.UserByID(ctx, id)
			require.NoError(t, err)
			require.Equal(t, 1, u.GamesPlayed)

			_, total, err := store.HistoryForUser(ctx, id, 1, 10)
			require.NoError(t, err)
			require.Equal(t, 1, total)
		}
		winner, err := store.UserByID(ctx, joiner.ID)
		require.NoError(t, err)
		require.Equal(t, 1, winner.GamesWon)

		// the settled room accepts no further submissions
		_, err = svc.SubmitScore(ctx, roomID, creator.ID, "2:4")
		var stateErr *StateConflictError
		require.ErrorAs(t, err, &stateErr)
	}
}

func TestSecondMismatchForcesNoContest(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, joiner := startedTwoPlayerRoom(t, svc, store)

	_, err := svc.SubmitScore(ctx, roomID, creator.ID, "1:0")
	require.NoError(t, err)
	res, err := svc.SubmitScore(ctx, roomID, joiner.ID, "0:1")
	require.NoError(t, err)
	require.True(t, res.Mismatch)
	require.False(t, res.Settled)

	_, err = svc.SubmitScore(ctx, roomID, creator.ID, "1:0")
	require.NoError(t, err)
	res, err = svc.SubmitScore(ctx, roomID, joiner.ID, "2:0")
	require.NoError(t, err)
	assert.True(t, res.Mismatch)
	assert.True(t, res.Settled)
	assert.Equal(t, models.StatusCompleted, res.Room.Status)
	assert.Equal(t, MaxScoreAttempts, res.Room.ScoreSubmissionAttempts)
	require.NotNil(t, res.Room.ScoreA)
	assert.Equal(t, 0, *res.Room.ScoreA)
	assert.Equal(t, 0, *res.Room.ScoreB)

	// both teams lose: games played move, games won do not
	for _, id := range []uuid.UUID{creator.ID, joiner.ID} {
		u, err := store.UserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, u.GamesPlayed)
		assert.Equal(t, 0, u.GamesWon)
		assert.Equal(t, 2, u.ScoreMismatchCount)

		history, _, err := store.HistoryForUser(ctx, id, 1, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.ResultNoContest, history[0].Result)
		assert.False(t, history[0].WasWinner)
	}
}

func TestSubmitScoreNonCaptainRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, store, "alice", 0)
	others := []*models.User{
		seedUser(t, store, "bob", 0),
		seedUser(t, store, "carol", 0),
		seedUser(t, store, "dave", 0),
	}

	rm, err := svc.CreateRoom(ctx, creator.ID, "game", 4, "Арбат", "18:00-20:00")
	require.NoError(t, err)
	for _, u := range others {
		_, err = svc.Join(ctx, rm.ID, u.ID)
		require.NoError(t, err)
	}
	_, err = svc.StartTeamSelection(ctx, rm.ID, creator.ID)
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, rm.ID, creator.ID)
	require.NoError(t, err)
	_, err = svc.EndGame(ctx, rm.ID, creator.ID)
	require.NoError(t, err)

	// carol and dave are rank-and-file players, not captains
	_, err = svc.SubmitScore(ctx, rm.ID, others[1].ID, "1:1")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestSubmitScoreTwiceSameAttemptRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, _ := startedTwoPlayerRoom(t, svc, store)

	_, err := svc.SubmitScore(ctx, roomID, creator.ID, "2:1")
	require.NoError(t, err)

	_, err = svc.SubmitScore(ctx, roomID, creator.ID, "3:1")
	var submittedErr *AlreadySubmittedError
	require.ErrorAs(t, err, &submittedErr)
	assert.Equal(t, creator.ID, submittedErr.CaptainID)
}

func TestSubmitScoreWrongStateRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, _ := fullTwoPlayerRoom(t, svc, store)
	_, err := svc.StartTeamSelection(ctx, roomID, creator.ID)
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, roomID, creator.ID)
	require.NoError(t, err)

	_, err = svc.SubmitScore(ctx, roomID, creator.ID, "2:1")
	var stateErr *StateConflictError
	require.ErrorAs(t, err, &stateErr)
}

func TestForceSettleStaleSubmission(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, joiner := startedTwoPlayerRoom(t, svc, store)

	ids, err := store.StaleSubmissions(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Contains(t, ids, roomID)

	require.NoError(t, svc.ForceSettle(ctx, roomID, "timeout"))

	rm, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rm.Status)

	for _, id := range []uuid.UUID{creator.ID, joiner.ID} {
		u, err := store.UserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, u.GamesPlayed)
		assert.Equal(t, 0, u.GamesWon)
	}

	// settling twice is a state conflict, not a double penalty
	err = svc.ForceSettle(ctx, roomID, "timeout")
	var stateErr *StateConflictError
	require.ErrorAs(t, err, &stateErr)
}

type recordingSink struct {
	rooms []uuid.UUID
}

func (r *recordingSink) RoomSettled(ctx context.Context, rm *models.GameRoom, entries []*models.GameHistory) {
	r.rooms = append(r.rooms, rm.ID)
}

func TestSettlementNotifiesSink(t *testing.T) {
	svc, store := newTestService(t)
	sink := &recordingSink{}
	svc.SetEventSink(sink)
	ctx := context.Background()
	roomID, creator, joiner := startedTwoPlayerRoom(t, svc, store)

	_, err := svc.SubmitScore(ctx, roomID, creator.ID, "3:3")
	require.NoError(t, err)
	_, err = svc.SubmitScore(ctx, roomID, joiner.ID, "3:3")
	require.NoError(t, err)

	require.Len(t, sink.rooms, 1)
	assert.Equal(t, roomID, sink.rooms[0])
}

func TestReportPlayer(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, joiner := fullTwoPlayerRoom(t, svc, store)

	err := svc.ReportPlayer(ctx, roomID, creator.ID, joiner.ID, "unsportsmanlike conduct")
	require.NoError(t, err)

	complaints := store.Complaints()
	require.Len(t, complaints, 1)
	assert.Equal(t, creator.ID, complaints[0].Reporter.ID)
	assert.Equal(t, joiner.ID, complaints[0].ReportedUser.ID)

	// reason required
	err = svc.ReportPlayer(ctx, roomID, creator.ID, joiner.ID, "  ")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	// outsiders cannot report
	outsider := seedUser(t, store, "mallory", 0)
	err = svc.ReportPlayer(ctx, roomID, outsider.ID, joiner.ID, "spam")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestListRoomsFilters(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice", 0)
	bob := seedUser(t, store, "bob", 0)

	_, err := svc.CreateRoom(ctx, alice.ID, "Morning match", 4, "Арбат", "08:00-10:00")
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, bob.ID, "Evening match", 4, "Сокольники", "18:00-20:00")
	require.NoError(t, err)

	rooms, err := svc.ListRooms(ctx, RoomFilter{})
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rooms, err = svc.ListRooms(ctx, RoomFilter{Name: "morning"})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Morning match", rooms[0].Name)

	rooms, err = svc.ListRooms(ctx, RoomFilter{Location: "сокольники"})
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	rooms, err = svc.ListRooms(ctx, RoomFilter{TimeRanges: []string{"08:00", "12:00"}})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Morning match", rooms[0].Name)
}

func TestListRoomsHidesFullRooms(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, _, _ = fullTwoPlayerRoom(t, svc, store)

	rooms, err := svc.ListRooms(ctx, RoomFilter{})
	require.NoError(t, err)
	assert.Empty(t, rooms)

	rooms, err = svc.ListRooms(ctx, RoomFilter{IncludeFull: true})
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestActiveRoomsFor(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	roomID, creator, _ := fullTwoPlayerRoom(t, svc, store)

	rooms, err := svc.ActiveRoomsFor(ctx, creator.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].ID)

	stranger := seedUser(t, store, "eve", 0)
	rooms, err = svc.ActiveRoomsFor(ctx, stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}
