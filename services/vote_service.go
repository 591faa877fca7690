package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/trackclash/trackclash/brackets"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/repositories"
)

// VoteResult reports the accepted vote together with the tallies as of
// the commit.
type VoteResult struct {
	Vote       *models.Vote `json:"vote"`
	VotesSide1 int          `json:"votes_side1"`
	VotesSide2 int          `json:"votes_side2"`
}

type VoteService interface {
	CastVote(ctx context.Context, voterID, matchupID, side int) (*VoteResult, error)
}

type voteService struct {
	db          *sql.DB
	matchupRepo repositories.MatchupRepository
	voteRepo    repositories.VoteRepository
	hub         *brackets.Hub
	logger      *slog.Logger
}

func NewVoteService(
	db *sql.DB,
	matchupRepo repositories.MatchupRepository,
	voteRepo repositories.VoteRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) VoteService {
	return &voteService{
		db:          db,
		matchupRepo: matchupRepo,
		voteRepo:    voteRepo,
		hub:         hub,
		logger:      logger,
	}
}

// CastVote records one vote and bumps the matching tally in a single
// transaction. The vote insert hits the (voter_id, matchup_id) unique
// constraint for duplicates, and the tally update only applies while the
// matchup is still active, so a resolution racing in between rolls the
// whole cast back instead of leaving a stray ledger entry.
func (s *voteService) CastVote(ctx context.Context, voterID, matchupID, side int) (*VoteResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	matchup, err := s.matchupRepo.GetByID(ctx, tx, matchupID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchupNotFound) {
			return nil, ErrMatchupNotFound
		}
		return nil, fmt.Errorf("failed to load matchup %d: %w", matchupID, err)
	}

	if matchup.Status != models.MatchupActive {
		return nil, ErrMatchupNotActive
	}
	if matchup.EntrantOnSide(side) == nil {
		return nil, ErrUnknownSide
	}

	vote := &models.Vote{
		MatchupID: matchupID,
		VoterID:   voterID,
		Side:      side,
	}
	if err := s.voteRepo.Create(ctx, tx, vote); err != nil {
		if errors.Is(err, repositories.ErrVoteDuplicate) {
			return nil, ErrDuplicateVote
		}
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	if err := s.matchupRepo.IncrementTally(ctx, tx, matchupID, side); err != nil {
		if errors.Is(err, repositories.ErrMatchupNotOpen) {
			return nil, ErrMatchupNotActive
		}
		return nil, fmt.Errorf("failed to count vote on matchup %d: %w", matchupID, err)
	}

	// Re-read inside the transaction so the result reflects this vote.
	updated, err := s.matchupRepo.GetByID(ctx, tx, matchupID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload matchup %d: %w", matchupID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	s.logger.Debug("vote cast",
		slog.Int("matchup_id", matchupID),
		slog.Int("voter_id", voterID),
		slog.Int("side", side))

	if s.hub != nil {
		s.hub.BroadcastToRoom(strconv.Itoa(updated.TournamentID), brackets.WebSocketMessage{
			Type:   brackets.EventVoteCast,
			RoomID: strconv.Itoa(updated.TournamentID),
			Payload: map[string]interface{}{
				"matchup_id":  updated.ID,
				"votes_side1": updated.VotesSide1,
				"votes_side2": updated.VotesSide2,
			},
		})
	}

	return &VoteResult{
		Vote:       vote,
		VotesSide1: updated.VotesSide1,
		VotesSide2: updated.VotesSide2,
	}, nil
}
