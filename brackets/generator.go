package brackets

import (
	"context"

	"github.com/trackclash/trackclash/models"
)

// BracketMatchup is one node of a generated bracket before it has been
// persisted. UIDs of the form "R<round>M<slot>" identify nodes until the
// store assigns real IDs; NextUID/NextSlot form the advancement edge.
type BracketMatchup struct {
	UID         string
	Round       int
	SlotInRound int

	Entrant1ID *int
	Entrant2ID *int

	IsBye           bool
	WinnerEntrantID *int
	Status          models.MatchupStatus

	NextUID  *string
	NextSlot *int
}

type GenerateBracketParams struct {
	Tournament *models.Tournament
	Entrants   []*models.Entrant
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatchup, error)

	GetName() string
}
