package models

import "time"

// Entrant is a track submitted into a tournament. Immutable once the
// bracket has been built.
type Entrant struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	UserID       int       `json:"user_id" db:"user_id"`
	TrackTitle   string    `json:"track_title" db:"track_title"`
	AudioKey     *string   `json:"-" db:"audio_key"`
	AudioURL     *string   `json:"audio_url,omitempty" db:"-"`
	Seed         *int      `json:"seed,omitempty" db:"seed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Eligible reports whether the entrant can be placed into a bracket.
func (e *Entrant) Eligible() bool {
	return e.AudioKey != nil && *e.AudioKey != ""
}
