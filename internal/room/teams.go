package room

import "github.com/ub-detected/football-bot/internal/models"

// assignTeams partitions the room's players into two equal teams and elects
// one captain per team. The split is deterministic: players alternate into
// A and B in join order, and the captain is the first member assigned to
// each team. Determinism keeps the transition testable and makes a retried
// transition produce the identical partition.
func assignTeams(room *models.GameRoom) {
	room.TeamA = room.TeamA[:0]
	room.TeamB = room.TeamB[:0]
	for i, p := range room.Players {
		if i%2 == 0 {
			room.TeamA = append(room.TeamA, p)
		} else {
			room.TeamB = append(room.TeamB, p)
		}
	}
	room.CaptainA = room.TeamA[0]
	room.CaptainB = room.TeamB[0]
}
