package room

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ub-detected/football-bot/internal/models"
	"github.com/ub-detected/football-bot/internal/rating"
)

// MaxScoreAttempts caps mismatch retries. The second mismatch force-settles
// the room as no-contest rather than leaving it stuck.
const MaxScoreAttempts = 2

// MaxTeamScore bounds a single team's reported goals.
const MaxTeamScore = 99

var scorePattern = regexp.MustCompile(`^\d{1,2}:\d{1,2}$`)

// ParseScore validates and splits an "A:B" score string.
func ParseScore(s string) (scoreA, scoreB int, err error) {
	s = strings.TrimSpace(s)
	if !scorePattern.MatchString(s) {
		return 0, 0, &ValidationError{Msg: `score must look like "3:2"`}
	}
	parts := strings.SplitN(s, ":", 2)
	scoreA, _ = strconv.Atoi(parts[0])
	scoreB, _ = strconv.Atoi(parts[1])
	if scoreA > MaxTeamScore || scoreB > MaxTeamScore {
		return 0, 0, &ValidationError{Msg: fmt.Sprintf("scores cannot exceed %d", MaxTeamScore)}
	}
	return scoreA, scoreB, nil
}

// SubmitResult reports the protocol state after a captain's submission.
type SubmitResult struct {
	Room    *models.GameRoom
	Message string
	// Mismatch is set when this submission completed an attempt pair and
	// the two proposals disagreed. Not an error: the client shows
	// "attempt X of 2" and the captains retry.
	Mismatch bool
	// Settled is set when the room reached completed, either by agreement
	// or by exhausting attempts.
	Settled bool
}

// SubmitScore records one captain's proposed final score. Once both
// captains have proposed within the current attempt the pair resolves:
// matching proposals commit and settle the game; differing proposals burn
// an attempt and reset both captains, and the second mismatch force-settles
// as no-contest. Resolution runs under the room lock, exactly once per
// completed pair.
func (s *Service) SubmitScore(ctx context.Context, roomID, userID uuid.UUID, score string) (*SubmitResult, error) {
	scoreA, scoreB, err := ParseScore(score)
	if err != nil {
		return nil, err
	}
	score = strings.TrimSpace(score)

	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	team := room.CaptainTeam(userID)
	if team == "" {
		return nil, &AuthorizationError{Msg: "only team captains can submit the score"}
	}
	if room.Status != models.StatusScoreSubmission {
		return nil, &StateConflictError{Msg: "room is not awaiting score submission", Status: room.Status}
	}

	switch team {
	case "A":
		if room.CaptainAProposal != "" {
			return nil, &AlreadySubmittedError{CaptainID: userID}
		}
		room.CaptainAProposal = score
		room.CaptainASubmitted = true
	case "B":
		if room.CaptainBProposal != "" {
			return nil, &AlreadySubmittedError{CaptainID: userID}
		}
		room.CaptainBProposal = score
		room.CaptainBSubmitted = true
	}

	if room.CaptainAProposal == "" || room.CaptainBProposal == "" {
		if err := s.store.SaveRoom(ctx, room); err != nil {
			return nil, err
		}
		return &SubmitResult{
			Room:    room,
			Message: "Score recorded. Waiting for the other captain.",
		}, nil
	}

	// Both captains have proposed: resolve this attempt.
	if room.CaptainAProposal == room.CaptainBProposal {
		if err := s.settle(ctx, room, scoreA, scoreB, false); err != nil {
			return nil, err
		}
		return &SubmitResult{
			Room:    room,
			Message: "Score confirmed. Game completed.",
			Settled: true,
		}, nil
	}

	room.ScoreSubmissionAttempts++
	room.ScoreMismatch = true
	mismatchesTotal.Inc()
	if err := s.bumpCaptainMismatchCounts(ctx, room); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{
		"room":    roomID,
		"attempt": room.ScoreSubmissionAttempts,
		"a":       room.CaptainAProposal,
		"b":       room.CaptainBProposal,
	}).Warn("captain scores disagree")

	if room.ScoreSubmissionAttempts >= MaxScoreAttempts {
		if err := s.settle(ctx, room, 0, 0, true); err != nil {
			return nil, err
		}
		return &SubmitResult{
			Room:     room,
			Message:  "Submission attempts exhausted. Game settled as no contest.",
			Mismatch: true,
			Settled:  true,
		}, nil
	}

	room.CaptainASubmitted = false
	room.CaptainBSubmitted = false
	room.CaptainAProposal = ""
	room.CaptainBProposal = ""
	if err := s.store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return &SubmitResult{
		Room:     room,
		Message:  "Submitted scores do not match. Please try again.",
		Mismatch: true,
	}, nil
}

func (s *Service) bumpCaptainMismatchCounts(ctx context.Context, room *models.GameRoom) error {
	for _, cap := range []*models.User{room.CaptainA, room.CaptainB} {
		u, err := s.store.UserByID(ctx, cap.ID)
		if err != nil {
			return err
		}
		u.ScoreMismatchCount++
		if err := s.store.SaveUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// ForceSettle completes a room stuck in score_submission as no-contest.
// Used by the submission-timeout sweeper.
func (s *Service) ForceSettle(ctx context.Context, roomID uuid.UUID, reason string) error {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != models.StatusScoreSubmission {
		return &StateConflictError{Msg: "room is not awaiting score submission", Status: room.Status}
	}
	s.logger.WithFields(log.Fields{"room": roomID, "reason": reason}).Warn("force settling room")
	return s.settle(ctx, room, 0, 0, true)
}

// settle commits the final scores, runs the rating engine, writes history
// and releases every player from the active-room index, all through one
// atomic store operation. Terminal: the room leaves settle in status
// completed. Caller must hold the room lock.
func (s *Service) settle(ctx context.Context, room *models.GameRoom, scoreA, scoreB int, noContest bool) error {
	now := time.Now().UTC()
	room.ScoreA = &scoreA
	room.ScoreB = &scoreB
	room.Status = models.StatusCompleted
	room.CaptainASubmitted = true
	room.CaptainBSubmitted = true
	if room.EndTime == nil {
		room.EndTime = &now
	}

	teamA, err := s.freshUsers(ctx, room.TeamA)
	if err != nil {
		return err
	}
	teamB, err := s.freshUsers(ctx, room.TeamB)
	if err != nil {
		return err
	}

	var outcomes []rating.PlayerOutcome
	if noContest {
		outcomes = rating.SettleNoContest(teamA, teamB, room.CaptainA.ID, room.CaptainB.ID)
	} else {
		outcomes = rating.SettleMatch(teamA, teamB, room.CaptainA.ID, room.CaptainB.ID, scoreA, scoreB)
	}

	byID := make(map[uuid.UUID]*models.User, len(teamA)+len(teamB))
	for _, u := range append(append([]*models.User{}, teamA...), teamB...) {
		byID[u.ID] = u
	}

	snapshot := room.Clone()
	entries := make([]*models.GameHistory, 0, len(outcomes))
	updated := make([]*models.User, 0, len(outcomes))
	for _, o := range outcomes {
		u := byID[o.UserID]
		u.Score += o.Points
		u.GamesPlayed++
		if o.WasWinner {
			u.GamesWon++
		}
		updated = append(updated, u)
		entries = append(entries, &models.GameHistory{
			ID:            uuid.New(),
			User:          u.Clone(),
			GameRoom:      snapshot,
			WasWinner:     o.WasWinner,
			Team:          o.Team,
			ScoreA:        scoreA,
			ScoreB:        scoreB,
			WasCaptain:    o.WasCaptain,
			Result:        o.Result,
			PointsEarned:  o.Points,
			PlayedAt:      now,
			GameStartTime: room.StartTime,
			GameEndTime:   room.EndTime,
		})
	}

	if err := s.store.SettleRoom(ctx, room, updated, entries); err != nil {
		return err
	}

	outcome := "played"
	if noContest {
		outcome = "no_contest"
	} else if scoreA == scoreB {
		outcome = "draw"
	}
	settlementsTotal.WithLabelValues(outcome).Inc()
	s.logger.WithFields(log.Fields{
		"room":    room.ID,
		"scoreA":  scoreA,
		"scoreB":  scoreB,
		"outcome": outcome,
	}).Info("room settled")

	if s.sink != nil {
		s.sink.RoomSettled(ctx, room, entries)
	}
	return nil
}

func (s *Service) freshUsers(ctx context.Context, team []*models.User) ([]*models.User, error) {
	out := make([]*models.User, 0, len(team))
	for _, p := range team {
		u, err := s.store.UserByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
