package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/trackclash/trackclash/models"
)

var (
	ErrVoteDuplicate      = errors.New("voter already voted on this matchup")
	ErrVoteMatchupInvalid = errors.New("vote matchup reference invalid")
	ErrVoteVoterInvalid   = errors.New("vote voter reference invalid")
)

type VoteRepository interface {
	// Create relies on the (voter_id, matchup_id) unique constraint; a
	// violation surfaces as ErrVoteDuplicate so concurrent duplicate casts
	// are rejected by the database, not by a read-then-write race.
	Create(ctx context.Context, exec SQLExecutor, vote *models.Vote) error
	CountByMatchup(ctx context.Context, matchupID int) (int, error)
	ListByMatchup(ctx context.Context, matchupID int) ([]*models.Vote, error)
}

type postgresVoteRepository struct {
	db *sql.DB
}

func NewPostgresVoteRepository(db *sql.DB) VoteRepository {
	return &postgresVoteRepository{db: db}
}

func (r *postgresVoteRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresVoteRepository) Create(ctx context.Context, exec SQLExecutor, vote *models.Vote) error {
	query := `
		INSERT INTO votes (matchup_id, voter_id, side)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		vote.MatchupID,
		vote.VoterID,
		vote.Side,
	).Scan(&vote.ID, &vote.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch {
			case pqErr.Code == "23505" && pqErr.Constraint == "votes_voter_id_matchup_id_key":
				return ErrVoteDuplicate
			case pqErr.Code == "23503" && pqErr.Constraint == "votes_matchup_id_fkey":
				return ErrVoteMatchupInvalid
			case pqErr.Code == "23503" && pqErr.Constraint == "votes_voter_id_fkey":
				return ErrVoteVoterInvalid
			}
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

func (r *postgresVoteRepository) CountByMatchup(ctx context.Context, matchupID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE matchup_id = $1`, matchupID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes for matchup %d: %w", matchupID, err)
	}
	return count, nil
}

func (r *postgresVoteRepository) ListByMatchup(ctx context.Context, matchupID int) ([]*models.Vote, error) {
	query := `
		SELECT id, matchup_id, voter_id, side, created_at
		FROM votes
		WHERE matchup_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes for matchup %d: %w", matchupID, err)
	}
	defer rows.Close()

	votes := make([]*models.Vote, 0)
	for rows.Next() {
		var v models.Vote
		if scanErr := rows.Scan(&v.ID, &v.MatchupID, &v.VoterID, &v.Side, &v.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan vote row: %w", scanErr)
		}
		votes = append(votes, &v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during vote rows iteration: %w", err)
	}
	return votes, nil
}
