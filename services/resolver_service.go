package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/trackclash/trackclash/brackets"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/repositories"
)

// ResolveResult is the outcome of a resolution call. AlreadyResolved is
// true when the matchup had been completed earlier and the recorded
// winner was returned as-is.
type ResolveResult struct {
	MatchupID           int  `json:"matchup_id"`
	WinnerEntrantID     int  `json:"winner_entrant_id"`
	NextMatchupID       *int `json:"next_matchup_id,omitempty"`
	TournamentCompleted bool `json:"tournament_completed"`
	AlreadyResolved     bool `json:"already_resolved"`
}

type ResolverService interface {
	ResolveMatchup(ctx context.Context, matchupID int) (*ResolveResult, error)

	// ResolveExpiredMatchups closes every active matchup whose voting
	// deadline has passed. Returns how many were resolved.
	ResolveExpiredMatchups(ctx context.Context) (int, error)
}

type resolverService struct {
	db             *sql.DB
	matchupRepo    repositories.MatchupRepository
	tournamentRepo repositories.TournamentRepository
	hub            *brackets.Hub
	voteWindow     time.Duration
	logger         *slog.Logger

	// Tie-break source, injected for deterministic tests. rand.Rand is
	// not safe for concurrent use, hence the mutex.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewResolverService(
	db *sql.DB,
	matchupRepo repositories.MatchupRepository,
	tournamentRepo repositories.TournamentRepository,
	hub *brackets.Hub,
	voteWindow time.Duration,
	rng *rand.Rand,
	logger *slog.Logger,
) ResolverService {
	return &resolverService{
		db:             db,
		matchupRepo:    matchupRepo,
		tournamentRepo: tournamentRepo,
		hub:            hub,
		voteWindow:     voteWindow,
		rng:            rng,
		logger:         logger,
	}
}

// ResolveMatchup decides the winner of an active matchup and advances it.
// The row lock makes racing resolutions serialize: the first transaction
// performs the winner write and wiring, the second observes Completed and
// returns the recorded winner without re-rolling anything.
func (s *resolverService) ResolveMatchup(ctx context.Context, matchupID int) (*ResolveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	matchup, err := s.matchupRepo.GetByIDForUpdate(ctx, tx, matchupID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchupNotFound) {
			return nil, ErrMatchupNotFound
		}
		return nil, fmt.Errorf("failed to load matchup %d: %w", matchupID, err)
	}

	switch matchup.Status {
	case models.MatchupCompleted:
		return &ResolveResult{
			MatchupID:       matchup.ID,
			WinnerEntrantID: *matchup.WinnerEntrantID,
			NextMatchupID:   matchup.NextMatchupID,
			AlreadyResolved: true,
		}, nil
	case models.MatchupActive:
		// proceed
	default:
		return nil, ErrMatchupNotActive
	}

	winnerID, winnerSlot := s.decideWinner(matchup)

	if err := s.matchupRepo.SetWinnerAndComplete(ctx, tx, matchup.ID, winnerID); err != nil {
		return nil, fmt.Errorf("failed to complete matchup %d: %w", matchup.ID, err)
	}

	result := &ResolveResult{
		MatchupID:       matchup.ID,
		WinnerEntrantID: winnerID,
		NextMatchupID:   matchup.NextMatchupID,
	}

	if matchup.NextMatchupID != nil {
		if err := s.advanceWinner(ctx, tx, matchup, winnerID); err != nil {
			return nil, err
		}
	} else {
		// Final matchup: the winner is tournament champion.
		if err := s.tournamentRepo.SetChampion(ctx, tx, matchup.TournamentID, winnerID); err != nil {
			return nil, err
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, tx, matchup.TournamentID,
			models.TournamentActive, models.TournamentCompleted); err != nil {
			return nil, err
		}
		result.TournamentCompleted = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resolution of matchup %d: %w", matchup.ID, err)
	}

	s.logger.Info("matchup resolved",
		slog.Int("matchup_id", matchup.ID),
		slog.Int("tournament_id", matchup.TournamentID),
		slog.Int("winner_entrant_id", winnerID),
		slog.Int("winner_slot", winnerSlot),
		slog.Bool("tournament_completed", result.TournamentCompleted))

	s.broadcast(matchup.TournamentID, result)

	return result, nil
}

// decideWinner applies the tally comparison with a uniform random pick on
// equal tallies (including 0-0). Returns the winning entrant and side.
func (s *resolverService) decideWinner(m *models.Matchup) (int, int) {
	var slot int
	switch {
	case m.VotesSide1 > m.VotesSide2:
		slot = 1
	case m.VotesSide2 > m.VotesSide1:
		slot = 2
	default:
		s.rngMu.Lock()
		slot = 1 + s.rng.Intn(2)
		s.rngMu.Unlock()
	}
	return *m.EntrantOnSide(slot), slot
}

// advanceWinner writes the winner into the recorded slot of the next
// matchup and opens it for voting once both feeders have delivered.
func (s *resolverService) advanceWinner(ctx context.Context, tx *sql.Tx, matchup *models.Matchup, winnerID int) error {
	nextID := *matchup.NextMatchupID
	if err := s.matchupRepo.SetEntrantOnSlot(ctx, tx, nextID, *matchup.NextMatchupSlot, winnerID); err != nil {
		return fmt.Errorf("failed to advance winner into matchup %d: %w", nextID, err)
	}

	next, err := s.matchupRepo.GetByID(ctx, tx, nextID)
	if err != nil {
		return fmt.Errorf("failed to reload next matchup %d: %w", nextID, err)
	}
	if next.Status == models.MatchupPending && next.BothSidesSet() {
		var closesAt *time.Time
		if s.voteWindow > 0 {
			t := time.Now().Add(s.voteWindow)
			closesAt = &t
		}
		if err := s.matchupRepo.Activate(ctx, tx, nextID, closesAt); err != nil {
			return fmt.Errorf("failed to open matchup %d for voting: %w", nextID, err)
		}
	}
	return nil
}

func (s *resolverService) ResolveExpiredMatchups(ctx context.Context) (int, error) {
	expired, err := s.matchupRepo.ListExpiredActive(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired matchups: %w", err)
	}

	resolved := 0
	for _, m := range expired {
		if _, err := s.ResolveMatchup(ctx, m.ID); err != nil {
			// Another resolver may have won the race; skip and continue.
			if errors.Is(err, ErrMatchupNotActive) {
				continue
			}
			s.logger.Error("scheduled resolution failed",
				slog.Int("matchup_id", m.ID), slog.Any("error", err))
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (s *resolverService) broadcast(tournamentID int, result *ResolveResult) {
	if s.hub == nil {
		return
	}
	room := strconv.Itoa(tournamentID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventMatchupResolved,
		RoomID:  room,
		Payload: result,
	})
	if result.TournamentCompleted {
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:   brackets.EventTournamentCompleted,
			RoomID: room,
			Payload: map[string]interface{}{
				"tournament_id":       tournamentID,
				"champion_entrant_id": result.WinnerEntrantID,
			},
		})
	}
}
