package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentActive    TournamentStatus = "active"
	TournamentCompleted TournamentStatus = "completed"
)

// PairingPolicy controls how entrants are ordered before round 1 pairing.
// With "seeded", byes go to the top seeds; with "random", byes go to the
// first entrants in shuffle order.
type PairingPolicy string

const (
	PairingRandom PairingPolicy = "random"
	PairingSeeded PairingPolicy = "seeded"
)

func (p PairingPolicy) Valid() bool {
	return p == PairingRandom || p == PairingSeeded
}

type Tournament struct {
	ID            int              `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Description   *string          `json:"description,omitempty" db:"description"`
	OrganizerID   int              `json:"organizer_id" db:"organizer_id"`
	PairingPolicy PairingPolicy    `json:"pairing_policy" db:"pairing_policy"`
	Status        TournamentStatus `json:"status" db:"status"`
	MaxEntrants   int              `json:"max_entrants" db:"max_entrants"`
	ChampionID    *int             `json:"champion_entrant_id,omitempty" db:"champion_entrant_id"`
	TotalRounds   *int             `json:"total_rounds,omitempty" db:"total_rounds"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`

	// Optional related entities, loaded on demand.
	Entrants []Entrant `json:"entrants,omitempty" db:"-"`
	Matchups []Matchup `json:"matchups,omitempty" db:"-"`
}

// ValidStatusTransition encodes the one-way lifecycle:
// draft -> active -> completed, no re-entry.
func ValidStatusTransition(from, to TournamentStatus) bool {
	switch from {
	case TournamentDraft:
		return to == TournamentActive
	case TournamentActive:
		return to == TournamentCompleted
	default:
		return false
	}
}
