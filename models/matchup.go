package models

import "time"

// MatchupStatus mirrors the matchup_status ENUM in the database.
type MatchupStatus string

const (
	MatchupPending   MatchupStatus = "pending"
	MatchupActive    MatchupStatus = "active"
	MatchupCompleted MatchupStatus = "completed"
)

// Matchup is a single paired contest in a specific round and slot of a
// tournament bracket. A completed matchup is terminal and never mutates
// again; vote tallies only ever increase.
type Matchup struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	Round        int  `json:"round" db:"round"`
	SlotInRound  int  `json:"slot_in_round" db:"slot_in_round"`
	Entrant1ID   *int `json:"entrant1_id,omitempty" db:"entrant1_id"`
	Entrant2ID   *int `json:"entrant2_id,omitempty" db:"entrant2_id"`
	IsBye        bool `json:"is_bye" db:"is_bye"`

	VotesSide1 int `json:"votes_side1" db:"votes_side1"`
	VotesSide2 int `json:"votes_side2" db:"votes_side2"`

	WinnerEntrantID *int          `json:"winner_entrant_id,omitempty" db:"winner_entrant_id"`
	Status          MatchupStatus `json:"status" db:"status"`

	// Forward edge of the advancement graph: the matchup the winner feeds,
	// and which of its two slots (1 or 2). Nil on the final matchup.
	NextMatchupID   *int `json:"next_matchup_id,omitempty" db:"next_matchup_id"`
	NextMatchupSlot *int `json:"next_matchup_slot,omitempty" db:"next_matchup_slot"`

	VotingClosesAt *time.Time `json:"voting_closes_at,omitempty" db:"voting_closes_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// EntrantOnSide returns the entrant occupying the given side (1 or 2),
// or nil if the slot is empty or the side is out of range.
func (m *Matchup) EntrantOnSide(side int) *int {
	switch side {
	case 1:
		return m.Entrant1ID
	case 2:
		return m.Entrant2ID
	default:
		return nil
	}
}

// BothSidesSet reports whether the matchup is ready to open for voting.
func (m *Matchup) BothSidesSet() bool {
	return m.Entrant1ID != nil && m.Entrant2ID != nil
}
