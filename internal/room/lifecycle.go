package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ub-detected/football-bot/internal/models"
)

// StartTeamSelection moves a full waiting room into team_selection,
// partitioning players into two teams and electing captains. Creator only.
// Fails if any player is already active in another room, since from this
// point on the room counts against the one-active-room invariant.
func (s *Service) StartTeamSelection(ctx context.Context, roomID, userID uuid.UUID) (*models.GameRoom, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsCreator(userID) {
		return nil, &AuthorizationError{Msg: "only the room creator can start team selection"}
	}
	if room.Status != models.StatusWaiting {
		return nil, &StateConflictError{Msg: "team selection already started", Status: room.Status}
	}
	if !room.IsFull() {
		return nil, &StateConflictError{Msg: "room must be full before team selection", Status: room.Status}
	}
	for _, p := range room.Players {
		if activeID, ok, err := s.store.ActiveRoom(ctx, p.ID); err != nil {
			return nil, err
		} else if ok && activeID != roomID {
			return nil, &MembershipConflictError{UserID: p.ID, ActiveRoomID: activeID}
		}
	}

	assignTeams(room)
	room.Status = models.StatusTeamSelection

	if err := s.store.ActivateRoom(ctx, room); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{
		"room":     roomID,
		"captainA": room.CaptainA.ID,
		"captainB": room.CaptainB.ID,
	}).Info("teams assigned")
	return room, nil
}

// StartGame moves a room from team_selection into play. Creator only.
func (s *Service) StartGame(ctx context.Context, roomID, userID uuid.UUID) (*models.GameRoom, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsCreator(userID) {
		return nil, &AuthorizationError{Msg: "only the room creator can start the game"}
	}
	if room.Status != models.StatusTeamSelection {
		return nil, &StateConflictError{Msg: "room must be in team selection to start", Status: room.Status}
	}

	now := time.Now().UTC()
	room.Status = models.StatusInProgress
	room.StartTime = &now

	if err := s.store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	s.logger.WithField("room", roomID).Info("game started")
	return room, nil
}

// EndGame ends play and opens the score-submission window. Captain only.
// The calling captain is marked as having signaled completion; their score
// proposal still has to come through SubmitScore.
func (s *Service) EndGame(ctx context.Context, roomID, userID uuid.UUID) (*models.GameRoom, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	team := room.CaptainTeam(userID)
	if team == "" {
		return nil, &AuthorizationError{Msg: "only team captains can end the game"}
	}
	if room.Status != models.StatusInProgress {
		return nil, &StateConflictError{Msg: "game is not in progress", Status: room.Status}
	}

	now := time.Now().UTC()
	room.Status = models.StatusScoreSubmission
	room.EndTime = &now
	if team == "A" {
		room.CaptainASubmitted = true
	} else {
		room.CaptainBSubmitted = true
	}

	if err := s.store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"room": roomID, "captain": userID}).Info("game ended, awaiting scores")
	return room, nil
}
