package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle state of a game room.
type RoomStatus string

const (
	StatusWaiting         RoomStatus = "waiting"
	StatusTeamSelection   RoomStatus = "team_selection"
	StatusInProgress      RoomStatus = "in_progress"
	StatusScoreSubmission RoomStatus = "score_submission"
	StatusCompleted       RoomStatus = "completed"
)

// Active reports whether the status counts against the one-active-room
// invariant. Waiting rooms can be abandoned freely; completed rooms are done.
func (s RoomStatus) Active() bool {
	return s != StatusWaiting && s != StatusCompleted
}

// Room capacity bounds. Teams are split evenly, so MaxPlayers must be even.
const (
	MinRoomPlayers = 2
	MaxRoomPlayers = 32
)

// GameRoom coordinates one pickup game from formation to settlement.
//
// Players keeps join order; TeamA/TeamB are populated when the room leaves
// waiting and partition Players exactly. The captain*Proposal fields hold
// each captain's pending score string for the current submission attempt
// and are never exposed to clients.
type GameRoom struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Creator    *User      `json:"creator"`
	MaxPlayers int        `json:"maxPlayers"`
	Location   string     `json:"location"`
	TimeRange  string     `json:"timeRange"`
	Status     RoomStatus `json:"status"`

	Players []*User `json:"players"`
	TeamA   []*User `json:"teamA"`
	TeamB   []*User `json:"teamB"`

	CaptainA *User `json:"captainA"`
	CaptainB *User `json:"captainB"`

	ScoreA *int `json:"scoreA"`
	ScoreB *int `json:"scoreB"`

	CaptainASubmitted bool   `json:"captainASubmitted"`
	CaptainBSubmitted bool   `json:"captainBSubmitted"`
	CaptainAProposal  string `json:"-"`
	CaptainBProposal  string `json:"-"`

	ScoreMismatch           bool `json:"scoreMismatch"`
	ScoreSubmissionAttempts int  `json:"scoreSubmissionAttempts"`

	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	CreatedAt time.Time  `json:"createdAt"`

	// Version is bumped by the store on every save; stale writes are
	// rejected so concurrent mutations cannot clobber each other.
	Version int64 `json:"-"`
}

// IsFull reports whether the room has reached capacity.
func (r *GameRoom) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// HasPlayer reports whether the given user has joined the room.
func (r *GameRoom) HasPlayer(userID uuid.UUID) bool {
	for _, p := range r.Players {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// IsCreator reports whether the given user created (or inherited) the room.
func (r *GameRoom) IsCreator(userID uuid.UUID) bool {
	return r.Creator != nil && r.Creator.ID == userID
}

// CaptainTeam returns "A" or "B" if the user captains that team, else "".
func (r *GameRoom) CaptainTeam(userID uuid.UUID) string {
	if r.CaptainA != nil && r.CaptainA.ID == userID {
		return "A"
	}
	if r.CaptainB != nil && r.CaptainB.ID == userID {
		return "B"
	}
	return ""
}

// PlayerIDs returns the ids of all joined players in join order.
func (r *GameRoom) PlayerIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// Clone deep-copies the room so callers can mutate a snapshot without
// affecting the stored record.
func (r *GameRoom) Clone() *GameRoom {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Creator = r.Creator.Clone()
	cp.CaptainA = r.CaptainA.Clone()
	cp.CaptainB = r.CaptainB.Clone()
	cp.Players = cloneUsers(r.Players)
	cp.TeamA = cloneUsers(r.TeamA)
	cp.TeamB = cloneUsers(r.TeamB)
	if r.ScoreA != nil {
		v := *r.ScoreA
		cp.ScoreA = &v
	}
	if r.ScoreB != nil {
		v := *r.ScoreB
		cp.ScoreB = &v
	}
	if r.StartTime != nil {
		t := *r.StartTime
		cp.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		cp.EndTime = &t
	}
	return &cp
}

func cloneUsers(users []*User) []*User {
	if users == nil {
		return nil
	}
	out := make([]*User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}
