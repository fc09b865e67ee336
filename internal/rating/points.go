// Package rating computes trophy deltas when a game settles.
//
// The model is team Elo: each team's strength is the average trophy score
// of its players, the expected result follows the standard Elo logistic
// curve, and points scale with how surprising the result was. All
// magnitudes here are tuning constants, not protocol.
package rating

import (
	"math"

	"github.com/google/uuid"

	"github.com/ub-detected/football-bot/internal/models"
)

const (
	// KFactor is the maximum points a win can be worth.
	KFactor = 100.0
	// LossFactor scales the penalty for a loss relative to KFactor.
	LossFactor = 0.5
	// ScoreDiffCoef converts goal difference into bonus points.
	ScoreDiffCoef = 0.1

	// UnderdogThreshold marks a team as a clear underdog; losses below it
	// get part of the penalty refunded, up to UnderdogBonusMax.
	UnderdogThreshold = 0.3
	UnderdogBonusMax  = 15.0

	// Contribution clamps a player's share of the team result by their
	// rating relative to the team average.
	ContributionMin = 0.5
	ContributionMax = 1.5

	// Draw bands: favorites are penalized for drawing, underdogs rewarded.
	DrawFavoriteBand = 0.55
	DrawUnderdogBand = 0.45
	DrawSwing        = 10

	// NoContestPenalty is the flat deduction when a game ends without an
	// agreed score. Captains additionally pay a coefficient that escalates
	// with their history of score disagreements.
	NoContestPenalty = 10
)

// PlayerOutcome is one player's settlement result.
type PlayerOutcome struct {
	UserID     uuid.UUID
	Team       string
	WasCaptain bool
	WasWinner  bool
	Result     string
	Points     int
}

// SettleMatch computes outcomes for a game with an agreed score. Winners
// earn positive points, losers negative, draws swing by expectation. A
// player's cumulative score never drops below zero.
func SettleMatch(teamA, teamB []*models.User, captainA, captainB uuid.UUID, scoreA, scoreB int) []PlayerOutcome {
	avgA := averageScore(teamA)
	avgB := averageScore(teamB)
	expectedA := expectedWin(avgA, avgB)
	expectedB := expectedWin(avgB, avgA)

	outcomes := make([]PlayerOutcome, 0, len(teamA)+len(teamB))
	outcomes = append(outcomes, settleTeam(teamA, "A", captainA, avgA, expectedA, scoreA, scoreB)...)
	outcomes = append(outcomes, settleTeam(teamB, "B", captainB, avgB, expectedB, scoreB, scoreA)...)
	return outcomes
}

// settleTeam scores one team; own/opp are that team's goals for/against.
func settleTeam(team []*models.User, label string, captainID uuid.UUID, teamAvg, expected float64, own, opp int) []PlayerOutcome {
	won := own > opp
	lost := own < opp
	diff := math.Abs(float64(own - opp))

	out := make([]PlayerOutcome, 0, len(team))
	for _, player := range team {
		contribution := 1.0
		if teamAvg > 0 {
			contribution = clamp(float64(player.Score)/teamAvg, ContributionMin, ContributionMax)
		}

		var points float64
		var result string
		switch {
		case won:
			points = KFactor*(1-expected) + diff*ScoreDiffCoef
			points *= contribution
			result = models.ResultWin
		case lost:
			points = -KFactor * LossFactor * expected
			if expected < UnderdogThreshold {
				points += UnderdogBonusMax * (1 - expected/UnderdogThreshold)
			}
			points *= contribution
			result = models.ResultLoss
		default:
			switch {
			case expected > DrawFavoriteBand:
				points = -DrawSwing
			case expected < DrawUnderdogBand:
				points = DrawSwing
			default:
				points = 0
			}
			result = models.ResultDraw
		}

		out = append(out, PlayerOutcome{
			UserID:     player.ID,
			Team:       label,
			WasCaptain: player.ID == captainID,
			WasWinner:  won,
			Result:     result,
			Points:     floorAtZero(player.Score, int(points)),
		})
	}
	return out
}

// SettleNoContest computes outcomes for a forced settlement after repeated
// score mismatches (or a submission timeout). Both teams are recorded as
// having lost; nobody's gamesWon moves. Regular players pay the flat
// penalty; captains pay a coefficient of it that escalates with their
// mismatch history.
func SettleNoContest(teamA, teamB []*models.User, captainA, captainB uuid.UUID) []PlayerOutcome {
	outcomes := make([]PlayerOutcome, 0, len(teamA)+len(teamB))
	for _, team := range []struct {
		players []*models.User
		label   string
		captain uuid.UUID
	}{
		{teamA, "A", captainA},
		{teamB, "B", captainB},
	} {
		for _, player := range team.players {
			penalty := float64(NoContestPenalty)
			isCaptain := player.ID == team.captain
			if isCaptain {
				penalty *= mismatchCoefficient(player.ScoreMismatchCount)
			}
			outcomes = append(outcomes, PlayerOutcome{
				UserID:     player.ID,
				Team:       team.label,
				WasCaptain: isCaptain,
				WasWinner:  false,
				Result:     models.ResultNoContest,
				Points:     floorAtZero(player.Score, -int(penalty)),
			})
		}
	}
	return outcomes
}

// mismatchCoefficient scales a captain's no-contest penalty by how often
// they have been party to score disagreements. First offense is free.
func mismatchCoefficient(count int) float64 {
	switch {
	case count <= 1:
		return 0
	case count == 2:
		return 0.5
	case count == 3:
		return 1.0
	default:
		return 1.5
	}
}

// expectedWin is the Elo win probability for a team rated ownAvg against
// one rated oppAvg.
func expectedWin(ownAvg, oppAvg float64) float64 {
	return 1 / (1 + math.Pow(10, (oppAvg-ownAvg)/400))
}

func averageScore(team []*models.User) float64 {
	if len(team) == 0 {
		return 0
	}
	total := 0
	for _, p := range team {
		total += p.Score
	}
	return float64(total) / float64(len(team))
}

// floorAtZero trims a deduction so the player's cumulative score cannot go
// negative.
func floorAtZero(current, points int) int {
	if current+points < 0 {
		return -current
	}
	return points
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
