package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ub-detected/football-bot/internal/models"
)

// EventSink receives settlement notifications, typically to push a record
// onto the Redis settlement queue. Implementations must not block.
type EventSink interface {
	RoomSettled(ctx context.Context, room *models.GameRoom, entries []*models.GameHistory)
}

// Service drives the game-room lifecycle: membership, team assignment, the
// two-captain score-confirmation protocol and settlement. Every mutation of
// a room runs under that room's lock so concurrent captain submissions
// resolve exactly once per attempt.
type Service struct {
	store  Store
	logger *log.Logger
	sink   EventSink

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService wires a Service over the given store.
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New()
	}
	return &Service{
		store:  store,
		logger: logger,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetEventSink attaches an optional settlement listener.
func (s *Service) SetEventSink(sink EventSink) { s.sink = sink }

// Store exposes the underlying store to the API layer for plain reads.
func (s *Service) Store() Store { return s.store }

// lockRoom serializes mutations per room id. Lock entries are never
// reclaimed; rooms are few and short-lived relative to process lifetime.
func (s *Service) lockRoom(id uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateRoom validates the configuration and creates a waiting room with
// the creator already joined.
func (s *Service) CreateRoom(ctx context.Context, creatorID uuid.UUID, name string, maxPlayers int, location, timeRange string) (*models.GameRoom, error) {
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)
	timeRange = strings.TrimSpace(timeRange)
	if name == "" || location == "" || timeRange == "" {
		return nil, &ValidationError{Msg: "name, location and timeRange are required"}
	}
	if maxPlayers < models.MinRoomPlayers || maxPlayers > models.MaxRoomPlayers {
		return nil, &ValidationError{Msg: fmt.Sprintf("maxPlayers must be between %d and %d", models.MinRoomPlayers, models.MaxRoomPlayers)}
	}
	if maxPlayers%2 != 0 {
		return nil, &ValidationError{Msg: "maxPlayers must be even so teams split equally"}
	}

	creator, err := s.store.UserByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	room := &models.GameRoom{
		ID:         uuid.New(),
		Name:       name,
		Creator:    creator,
		MaxPlayers: maxPlayers,
		Location:   location,
		TimeRange:  timeRange,
		Status:     models.StatusWaiting,
		Players:    []*models.User{creator},
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"room": room.ID, "creator": creatorID}).Info("room created")
	return room, nil
}

// GetRoom returns the current snapshot of a room.
func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*models.GameRoom, error) {
	return s.store.RoomByID(ctx, id)
}

// ListRooms returns joinable rooms matching the filter.
func (s *Service) ListRooms(ctx context.Context, filter RoomFilter) ([]*models.GameRoom, error) {
	return s.store.ListRooms(ctx, filter)
}

// JoinResult reports the state of the room after a join.
type JoinResult struct {
	Room *models.GameRoom
	// RoomIsFull signals the caller should prompt the creator to start.
	RoomIsFull bool
	// AlreadyJoined is set when the user was a member before the call;
	// joining is idempotent for members.
	AlreadyJoined bool
}

// Join adds the user to a waiting room, enforcing capacity and the
// one-active-room invariant.
func (s *Service) Join(ctx context.Context, roomID, userID uuid.UUID) (*JoinResult, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.HasPlayer(userID) {
		return &JoinResult{Room: room, RoomIsFull: room.IsFull(), AlreadyJoined: true}, nil
	}
	if room.Status != models.StatusWaiting {
		return nil, &StateConflictError{Msg: "room is no longer accepting players", Status: room.Status}
	}
	if room.IsFull() {
		return nil, &RoomFullError{RoomID: roomID}
	}
	if activeID, ok, err := s.store.ActiveRoom(ctx, userID); err != nil {
		return nil, err
	} else if ok && activeID != roomID {
		return nil, &MembershipConflictError{UserID: userID, ActiveRoomID: activeID}
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	room.Players = append(room.Players, user)
	if err := s.store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"room": roomID, "user": userID, "players": len(room.Players)}).Info("player joined")
	return &JoinResult{Room: room, RoomIsFull: room.IsFull()}, nil
}

// Leave removes the user from a waiting room. If the creator leaves,
// creatorship passes to the earliest-joined remaining player; an emptied
// room is deleted.
func (s *Service) Leave(ctx context.Context, roomID, userID uuid.UUID) (deleted bool, err error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.Status != models.StatusWaiting {
		return false, &StateConflictError{Msg: "cannot leave once teams are formed", Status: room.Status}
	}
	if !room.HasPlayer(userID) {
		return false, &AuthorizationError{Msg: "you are not a member of this room"}
	}

	remaining := room.Players[:0:0]
	for _, p := range room.Players {
		if p.ID != userID {
			remaining = append(remaining, p)
		}
	}
	room.Players = remaining

	if len(room.Players) == 0 {
		if err := s.store.DeleteRoom(ctx, roomID); err != nil {
			return false, err
		}
		s.logger.WithField("room", roomID).Info("room deleted, last player left")
		return true, nil
	}
	if room.IsCreator(userID) {
		room.Creator = room.Players[0]
		s.logger.WithFields(log.Fields{"room": roomID, "creator": room.Creator.ID}).Info("creator left, room handed over")
	}
	if err := s.store.SaveRoom(ctx, room); err != nil {
		return false, err
	}
	return false, nil
}

// DeleteRoom removes a waiting room. Creator only.
func (s *Service) DeleteRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsCreator(userID) {
		return &AuthorizationError{Msg: "only the room creator can delete the room"}
	}
	if room.Status != models.StatusWaiting {
		return &StateConflictError{Msg: "cannot delete a room once the game has started", Status: room.Status}
	}
	return s.store.DeleteRoom(ctx, roomID)
}

// ReportPlayer files a complaint against another member of the room.
func (s *Service) ReportPlayer(ctx context.Context, roomID, reporterID, reportedID uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return &ValidationError{Msg: "a reason is required"}
	}
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasPlayer(reporterID) {
		return &AuthorizationError{Msg: "you are not a member of this room"}
	}
	if !room.HasPlayer(reportedID) {
		return &NotFoundError{Resource: "player", ID: reportedID}
	}
	reporter, err := s.store.UserByID(ctx, reporterID)
	if err != nil {
		return err
	}
	reported, err := s.store.UserByID(ctx, reportedID)
	if err != nil {
		return err
	}
	c := &models.Complaint{
		ID:           uuid.New(),
		Reporter:     reporter,
		ReportedUser: reported,
		GameRoom:     room,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateComplaint(ctx, c); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{"room": roomID, "reporter": reporterID, "reported": reportedID}).Info("player reported")
	return nil
}

// ActiveRoomsFor lists the rooms the user currently belongs to that have
// not completed, waiting rooms included.
func (s *Service) ActiveRoomsFor(ctx context.Context, userID uuid.UUID) ([]*models.GameRoom, error) {
	rooms, err := s.store.ListRooms(ctx, RoomFilter{IncludeFull: true})
	if err != nil {
		return nil, err
	}
	var out []*models.GameRoom
	for _, r := range rooms {
		if r.HasPlayer(userID) {
			out = append(out, r)
		}
	}
	return out, nil
}
