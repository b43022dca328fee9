package tally

import (
	"flowback-engine/internal/domain"
)

// Participants counts direct voters plus the mandates carried by pool
// ballots.
func Participants(snapshot *domain.BallotSnapshot) int {
	total := len(snapshot.Direct)
	for _, b := range snapshot.Pool {
		total += b.Mandate
	}
	return total
}

// QuorumMet reports whether participants reach the quorum threshold
// ceil(quorumPercent * activeMembers / 100).
func QuorumMet(participants, quorumPercent, activeMembers int) bool {
	threshold := (quorumPercent*activeMembers + 99) / 100
	return participants >= threshold
}

// Decide maps a quorum check onto the terminal poll status
func Decide(participants, quorumPercent, activeMembers int) domain.PollStatus {
	if QuorumMet(participants, quorumPercent, activeMembers) {
		return domain.StatusFinished
	}
	return domain.StatusFailedQuorum
}
