package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Game outcome labels stored on history rows.
const (
	ResultWin       = "win"
	ResultLoss      = "loss"
	ResultDraw      = "draw"
	ResultNoContest = "no_contest"
)

// GameHistory is one player's immutable record of a settled game.
type GameHistory struct {
	ID       uuid.UUID `json:"id"`
	User     *User     `json:"user"`
	GameRoom *GameRoom `json:"gameRoom"`

	WasWinner  bool   `json:"wasWinner"`
	Team       string `json:"team"`
	ScoreA     int    `json:"scoreA"`
	ScoreB     int    `json:"scoreB"`
	WasCaptain bool   `json:"wasCaptain"`

	Result       string `json:"result"`
	PointsEarned int    `json:"pointsEarned"`

	PlayedAt      time.Time  `json:"playedAt"`
	GameStartTime *time.Time `json:"gameStartTime"`
	GameEndTime   *time.Time `json:"gameEndTime"`
}

// MarshalJSON adds the derived gameDuration field the client renders.
func (h *GameHistory) MarshalJSON() ([]byte, error) {
	type alias GameHistory
	return json.Marshal(struct {
		*alias
		GameDuration string `json:"gameDuration,omitempty"`
	}{
		alias:        (*alias)(h),
		GameDuration: h.Duration(),
	})
}

// Duration renders the elapsed play time in whole minutes, or "" when the
// start/end timestamps are missing.
func (h *GameHistory) Duration() string {
	if h.GameStartTime == nil || h.GameEndTime == nil {
		return ""
	}
	mins := int(h.GameEndTime.Sub(*h.GameStartTime).Minutes())
	return fmt.Sprintf("%d min", mins)
}
