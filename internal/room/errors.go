package room

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ub-detected/football-bot/internal/models"
)

// NotFoundError reports an unknown room or user id.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError reports malformed input: bad room config, bad score
// string, bad theme value. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthorizationError reports a non-creator or non-captain attempting a
// privileged action.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// StateConflictError reports an operation that is illegal in the room's
// current lifecycle state, e.g. leaving a game in progress.
type StateConflictError struct {
	Msg    string
	Status models.RoomStatus
}

func (e *StateConflictError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s (room status %s)", e.Msg, e.Status)
	}
	return e.Msg
}

// RoomFullError reports a join attempt against a room at capacity.
type RoomFullError struct {
	RoomID uuid.UUID
}

func (e *RoomFullError) Error() string {
	return fmt.Sprintf("room %s is full", e.RoomID)
}

// MembershipConflictError reports a user who is already in another active
// room. ActiveRoomID lets the caller redirect instead of failing blindly.
type MembershipConflictError struct {
	UserID       uuid.UUID
	ActiveRoomID uuid.UUID
}

func (e *MembershipConflictError) Error() string {
	return fmt.Sprintf("user %s is already in active room %s", e.UserID, e.ActiveRoomID)
}

// AlreadySubmittedError reports a captain re-submitting a score within the
// same attempt.
type AlreadySubmittedError struct {
	CaptainID uuid.UUID
}

func (e *AlreadySubmittedError) Error() string {
	return fmt.Sprintf("captain %s already submitted a score this attempt", e.CaptainID)
}
