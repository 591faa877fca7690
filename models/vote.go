package models

import "time"

// Vote is one ledger entry. The database enforces uniqueness over
// (voter_id, matchup_id), which is what makes duplicate detection safe
// under concurrent casts.
type Vote struct {
	ID        int       `json:"id" db:"id"`
	MatchupID int       `json:"matchup_id" db:"matchup_id"`
	VoterID   int       `json:"voter_id" db:"voter_id"`
	Side      int       `json:"side" db:"side"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
