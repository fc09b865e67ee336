package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a player identified by their Telegram account. Score is the
// cumulative trophy count shown on the leaderboard.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	PhotoURL string    `json:"photoUrl"`

	Score       int `json:"score"`
	GamesPlayed int `json:"gamesPlayed"`
	GamesWon    int `json:"gamesWon"`

	// ScoreMismatchCount tracks how many times this user, as captain, was
	// party to a score disagreement. It drives the escalating penalty
	// coefficient applied when a game settles as no-contest.
	ScoreMismatchCount int `json:"scoreMismatchCount"`

	ThemePreference string `json:"themePreference"`

	TelegramID string    `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

// Clone returns a copy safe to hand across store boundaries.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
