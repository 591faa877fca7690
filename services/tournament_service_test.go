package services

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackclash/trackclash/brackets"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/utils"
)

type tournamentFixture struct {
	svc            TournamentService
	bracketSvc     BracketService
	tournamentRepo *fakeTournamentRepo
	entrantRepo    *fakeEntrantRepo
	matchupRepo    *fakeMatchupRepo
	uploader       *fakeUploader
}

func newTournamentFixture(t *testing.T) *tournamentFixture {
	t.Helper()
	f := &tournamentFixture{
		tournamentRepo: newFakeTournamentRepo(),
		entrantRepo:    newFakeEntrantRepo(),
		matchupRepo:    newFakeMatchupRepo(),
		uploader:       newFakeUploader(),
	}
	generator := brackets.NewSingleEliminationGenerator(rand.New(rand.NewSource(1)))
	f.bracketSvc = NewBracketService(generator, f.tournamentRepo, f.entrantRepo,
		f.matchupRepo, f.uploader, time.Hour, newTestLogger())
	f.svc = NewTournamentService(newTestDB(t), f.tournamentRepo, f.entrantRepo,
		f.bracketSvc, nil, newTestLogger())
	return f
}

// seedDraft adds a draft tournament with n eligible entrants (seeds 1..n)
// plus one entrant who never uploaded a track.
func (f *tournamentFixture) seedDraft(organizerID, n int) *models.Tournament {
	tournament := &models.Tournament{
		Name:          "Beat Battle",
		OrganizerID:   organizerID,
		PairingPolicy: models.PairingSeeded,
		Status:        models.TournamentDraft,
		MaxEntrants:   16,
	}
	f.tournamentRepo.add(tournament)

	for i := 1; i <= n; i++ {
		f.entrantRepo.add(&models.Entrant{
			ID:           i,
			TournamentID: tournament.ID,
			UserID:       100 + i,
			TrackTitle:   fmt.Sprintf("Track %d", i),
			AudioKey:     utils.Ptr(fmt.Sprintf("tracks/%d/%d.mp3", tournament.ID, i)),
			Seed:         utils.Ptr(i),
		})
	}
	f.entrantRepo.add(&models.Entrant{
		ID:           n + 1,
		TournamentID: tournament.ID,
		UserID:       100 + n + 1,
		TrackTitle:   "Silent Entry",
	})
	return tournament
}

func TestCreateTournament(t *testing.T) {
	f := newTournamentFixture(t)

	tournament, err := f.svc.CreateTournament(context.Background(), 7, CreateTournamentInput{
		Name:        "  Beat Battle  ",
		MaxEntrants: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, "Beat Battle", tournament.Name)
	assert.Equal(t, 7, tournament.OrganizerID)
	assert.Equal(t, models.TournamentDraft, tournament.Status)
	// Unspecified pairing defaults to random.
	assert.Equal(t, models.PairingRandom, tournament.PairingPolicy)
	assert.Positive(t, tournament.ID)
}

func TestCreateTournamentValidation(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTournament(ctx, 7, CreateTournamentInput{Name: "   ", MaxEntrants: 8})
	assert.ErrorIs(t, err, ErrTournamentNameRequired)

	_, err = f.svc.CreateTournament(ctx, 7, CreateTournamentInput{Name: "x", MaxEntrants: 1})
	assert.ErrorIs(t, err, ErrTournamentInvalidCapacity)

	_, err = f.svc.CreateTournament(ctx, 7, CreateTournamentInput{
		Name: "x", MaxEntrants: 8, PairingPolicy: models.PairingPolicy("swiss"),
	})
	assert.ErrorIs(t, err, ErrInvalidPairingPolicy)
}

func TestStartTournament(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedDraft(7, 5)

	started, err := f.svc.StartTournament(context.Background(), 7, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentActive, started.Status)

	stored, err := f.tournamentRepo.GetByID(context.Background(), nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentActive, stored.Status)
	require.NotNil(t, stored.TotalRounds)
	assert.Equal(t, 3, *stored.TotalRounds)

	matchups, err := f.matchupRepo.ListByTournament(context.Background(), tournament.ID, nil, nil)
	require.NoError(t, err)
	// 5 entrants round up to a bracket of 8: 7 matchups, 3 byes.
	require.Len(t, matchups, 7)

	byes, linked, active := 0, 0, 0
	for _, m := range matchups {
		if m.IsBye {
			byes++
			assert.Equal(t, models.MatchupCompleted, m.Status)
			require.NotNil(t, m.WinnerEntrantID)
		}
		if m.NextMatchupID != nil {
			linked++
			require.NotNil(t, m.NextMatchupSlot)
		}
		if m.Status == models.MatchupActive {
			active++
			require.NotNil(t, m.VotingClosesAt)
		}
	}
	assert.Equal(t, 3, byes)
	// Every matchup except the final feeds a next one.
	assert.Equal(t, 6, linked)
	assert.Positive(t, active)

	// The ineligible entrant never appears on the grid.
	for _, m := range matchups {
		if m.Entrant1ID != nil {
			assert.NotEqual(t, 6, *m.Entrant1ID)
		}
		if m.Entrant2ID != nil {
			assert.NotEqual(t, 6, *m.Entrant2ID)
		}
	}
}

func TestStartTournamentNotOrganizer(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedDraft(7, 4)

	_, err := f.svc.StartTournament(context.Background(), 8, tournament.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestStartTournamentNotDraft(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedDraft(7, 4)

	_, err := f.svc.StartTournament(context.Background(), 7, tournament.ID)
	require.NoError(t, err)

	_, err = f.svc.StartTournament(context.Background(), 7, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotDraft)
}

func TestStartTournamentTooFewEligibleEntrants(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedDraft(7, 1)

	_, err := f.svc.StartTournament(context.Background(), 7, tournament.ID)
	assert.ErrorIs(t, err, ErrBracketTooFewEntrants)

	stored, err := f.tournamentRepo.GetByID(context.Background(), nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentDraft, stored.Status)
}

func TestStartTournamentNotFound(t *testing.T) {
	f := newTournamentFixture(t)

	_, err := f.svc.StartTournament(context.Background(), 7, 99)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestGetBracketView(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedDraft(7, 5)

	_, err := f.svc.StartTournament(context.Background(), 7, tournament.ID)
	require.NoError(t, err)

	view, err := f.bracketSvc.GetBracketView(context.Background(), tournament.ID)
	require.NoError(t, err)

	require.Len(t, view.Entrants, 6)
	require.Len(t, view.Matchups, 7)

	// Matchups come back ordered by round, then slot.
	for i := 1; i < len(view.Matchups); i++ {
		prev, cur := view.Matchups[i-1], view.Matchups[i]
		assert.True(t, prev.Round < cur.Round ||
			(prev.Round == cur.Round && prev.SlotInRound < cur.SlotInRound))
	}

	// Entrants with an uploaded track get a streamable URL.
	for _, e := range view.Entrants {
		if e.AudioKey != nil {
			require.NotNil(t, e.AudioURL)
			assert.Contains(t, *e.AudioURL, *e.AudioKey)
		} else {
			assert.Nil(t, e.AudioURL)
		}
	}
}

func TestGetBracketViewNotFound(t *testing.T) {
	f := newTournamentFixture(t)

	_, err := f.bracketSvc.GetBracketView(context.Background(), 12)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
