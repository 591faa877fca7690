package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trackclash/trackclash/brackets"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/repositories"
	"github.com/trackclash/trackclash/storage"
	"golang.org/x/sync/errgroup"
)

type BracketService interface {
	// GenerateAndSaveBracket builds the full single-elimination structure
	// for the given entrants and persists it through exec, which is
	// expected to be the caller's transaction so the bracket and the
	// tournament status flip commit together. Returns the stored matchups
	// ordered by (round, slot).
	GenerateAndSaveBracket(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, entrants []*models.Entrant) ([]*models.Matchup, error)

	// GetBracketView is a read-only projection: the tournament with its
	// entrants and ordered matchup list.
	GetBracketView(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type bracketService struct {
	generator      brackets.BracketGenerator
	tournamentRepo repositories.TournamentRepository
	entrantRepo    repositories.EntrantRepository
	matchupRepo    repositories.MatchupRepository
	uploader       storage.FileUploader
	voteWindow     time.Duration
	logger         *slog.Logger
}

func NewBracketService(
	generator brackets.BracketGenerator,
	tournamentRepo repositories.TournamentRepository,
	entrantRepo repositories.EntrantRepository,
	matchupRepo repositories.MatchupRepository,
	uploader storage.FileUploader,
	voteWindow time.Duration,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		generator:      generator,
		tournamentRepo: tournamentRepo,
		entrantRepo:    entrantRepo,
		matchupRepo:    matchupRepo,
		uploader:       uploader,
		voteWindow:     voteWindow,
		logger:         logger,
	}
}

func (s *bracketService) GenerateAndSaveBracket(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, entrants []*models.Entrant) ([]*models.Matchup, error) {
	if len(entrants) < 2 {
		return nil, ErrBracketTooFewEntrants
	}
	if !tournament.PairingPolicy.Valid() {
		return nil, ErrInvalidPairingPolicy
	}

	generated, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Tournament: tournament,
		Entrants:   entrants,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrTooFewEntrants) {
			return nil, ErrBracketTooFewEntrants
		}
		if errors.Is(err, brackets.ErrInvalidPairingPolicy) {
			return nil, ErrInvalidPairingPolicy
		}
		return nil, fmt.Errorf("failed to generate bracket for tournament %d: %w", tournament.ID, err)
	}

	var closesAt *time.Time
	if s.voteWindow > 0 {
		t := time.Now().Add(s.voteWindow)
		closesAt = &t
	}

	// First pass: store every matchup shell, remembering which database id
	// each generator UID received.
	idByUID := make(map[string]int, len(generated))
	saved := make([]*models.Matchup, 0, len(generated))
	for _, bm := range generated {
		m := &models.Matchup{
			TournamentID:    tournament.ID,
			Round:           bm.Round,
			SlotInRound:     bm.SlotInRound,
			Entrant1ID:      bm.Entrant1ID,
			Entrant2ID:      bm.Entrant2ID,
			IsBye:           bm.IsBye,
			WinnerEntrantID: bm.WinnerEntrantID,
			Status:          bm.Status,
		}
		if m.Status == models.MatchupActive {
			m.VotingClosesAt = closesAt
		}
		if err := s.matchupRepo.Create(ctx, exec, m); err != nil {
			return nil, fmt.Errorf("failed to store matchup %s: %w", bm.UID, err)
		}
		idByUID[bm.UID] = m.ID
		saved = append(saved, m)
	}

	// Second pass: translate the generator's UID edges into database ids.
	for i, bm := range generated {
		if bm.NextUID == nil {
			continue
		}
		nextID, ok := idByUID[*bm.NextUID]
		if !ok {
			return nil, fmt.Errorf("internal error: matchup %s links to unknown %s", bm.UID, *bm.NextUID)
		}
		if err := s.matchupRepo.UpdateNextMatchupInfo(ctx, exec, saved[i].ID, &nextID, bm.NextSlot); err != nil {
			return nil, fmt.Errorf("failed to link matchup %s forward: %w", bm.UID, err)
		}
		saved[i].NextMatchupID = &nextID
		saved[i].NextMatchupSlot = bm.NextSlot
	}

	totalRounds := saved[len(saved)-1].Round
	if err := s.tournamentRepo.SetTotalRounds(ctx, exec, tournament.ID, totalRounds); err != nil {
		return nil, err
	}

	tr := totalRounds
	tournament.TotalRounds = &tr

	s.logger.Info("bracket generated",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("entrants", len(entrants)),
		slog.Int("matchups", len(saved)),
		slog.Int("rounds", totalRounds))

	return saved, nil
}

func (s *bracketService) GetBracketView(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entrants, err := s.entrantRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load entrants for tournament %d: %w", tournamentID, err)
		}
		tournament.Entrants = make([]models.Entrant, len(entrants))
		for i, e := range entrants {
			if e.AudioKey != nil && s.uploader != nil {
				url := s.uploader.GetPublicURL(*e.AudioKey)
				e.AudioURL = &url
			}
			tournament.Entrants[i] = *e
		}
		return nil
	})

	g.Go(func() error {
		matchups, err := s.matchupRepo.ListByTournament(gCtx, tournamentID, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to load matchups for tournament %d: %w", tournamentID, err)
		}
		tournament.Matchups = make([]models.Matchup, len(matchups))
		for i, m := range matchups {
			tournament.Matchups[i] = *m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}
