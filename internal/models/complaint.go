package models

import (
	"time"

	"github.com/google/uuid"
)

// Complaint is an append-only report filed by one room member against
// another. Moderation happens outside this service.
type Complaint struct {
	ID           uuid.UUID `json:"id"`
	Reporter     *User     `json:"reporter"`
	ReportedUser *User     `json:"reportedUser"`
	GameRoom     *GameRoom `json:"gameRoom"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
}
