package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/trackclash/trackclash/models"
)

var (
	ErrMatchupNotFound          = errors.New("matchup not found")
	ErrMatchupNotOpen           = errors.New("matchup is not open for this operation")
	ErrMatchupTournamentInvalid = errors.New("matchup tournament reference invalid")
	ErrMatchupEntrantInvalid    = errors.New("matchup entrant reference invalid")
)

type MatchupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, matchup *models.Matchup) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Matchup, error)
	// GetByIDForUpdate takes a row lock so racing resolutions serialize;
	// must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Matchup, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchupStatus) ([]*models.Matchup, error)
	UpdateNextMatchupInfo(ctx context.Context, exec SQLExecutor, matchupID int, nextMatchupID, nextSlot *int) error
	// IncrementTally bumps one side's counter in place. The status guard
	// makes the increment and the open-for-voting check one atomic step.
	IncrementTally(ctx context.Context, exec SQLExecutor, matchupID, side int) error
	SetWinnerAndComplete(ctx context.Context, exec SQLExecutor, matchupID, winnerEntrantID int) error
	SetEntrantOnSlot(ctx context.Context, exec SQLExecutor, matchupID, slot, entrantID int) error
	Activate(ctx context.Context, exec SQLExecutor, matchupID int, closesAt *time.Time) error
	ListExpiredActive(ctx context.Context, now time.Time) ([]*models.Matchup, error)
}

type postgresMatchupRepository struct {
	db *sql.DB
}

func NewPostgresMatchupRepository(db *sql.DB) MatchupRepository {
	return &postgresMatchupRepository{db: db}
}

func (r *postgresMatchupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchupColumns = `id, tournament_id, round, slot_in_round, entrant1_id, entrant2_id, is_bye,
	votes_side1, votes_side2, winner_entrant_id, status, next_matchup_id, next_matchup_slot,
	voting_closes_at, created_at`

func (r *postgresMatchupRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Matchup) error {
	query := `
		INSERT INTO matchups
			(tournament_id, round, slot_in_round, entrant1_id, entrant2_id, is_bye,
			 votes_side1, votes_side2, winner_entrant_id, status, next_matchup_id,
			 next_matchup_slot, voting_closes_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		m.TournamentID,
		m.Round,
		m.SlotInRound,
		m.Entrant1ID,
		m.Entrant2ID,
		m.IsBye,
		m.VotesSide1,
		m.VotesSide2,
		m.WinnerEntrantID,
		m.Status,
		m.NextMatchupID,
		m.NextMatchupSlot,
		m.VotingClosesAt,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			switch pqErr.Constraint {
			case "matchups_tournament_id_fkey":
				return ErrMatchupTournamentInvalid
			case "matchups_entrant1_id_fkey", "matchups_entrant2_id_fkey", "matchups_winner_entrant_id_fkey":
				return ErrMatchupEntrantInvalid
			}
		}
		return fmt.Errorf("failed to insert matchup: %w", err)
	}
	return nil
}

func (r *postgresMatchupRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Matchup, error) {
	query := `SELECT ` + matchupColumns + ` FROM matchups WHERE id = $1`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchupRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Matchup, error) {
	query := `SELECT ` + matchupColumns + ` FROM matchups WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchupRepository) scanOne(row *sql.Row, id int) (*models.Matchup, error) {
	m := &models.Matchup{}
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.Round,
		&m.SlotInRound,
		&m.Entrant1ID,
		&m.Entrant2ID,
		&m.IsBye,
		&m.VotesSide1,
		&m.VotesSide2,
		&m.WinnerEntrantID,
		&m.Status,
		&m.NextMatchupID,
		&m.NextMatchupSlot,
		&m.VotingClosesAt,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchupNotFound
		}
		return nil, fmt.Errorf("failed to scan matchup %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchupRepository) ListByTournament(ctx context.Context, tournamentID int, roundFilter *int, statusFilter *models.MatchupStatus) ([]*models.Matchup, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchupColumns + ` FROM matchups WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholder := 2

	if roundFilter != nil {
		queryBuilder.WriteString(" AND round = $" + strconv.Itoa(placeholder))
		args = append(args, *roundFilter)
		placeholder++
	}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(placeholder))
		args = append(args, *statusFilter)
	}

	queryBuilder.WriteString(" ORDER BY round ASC, slot_in_round ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matchups for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *postgresMatchupRepository) scanRows(rows *sql.Rows) ([]*models.Matchup, error) {
	matchups := make([]*models.Matchup, 0)
	for rows.Next() {
		var m models.Matchup
		if scanErr := rows.Scan(
			&m.ID,
			&m.TournamentID,
			&m.Round,
			&m.SlotInRound,
			&m.Entrant1ID,
			&m.Entrant2ID,
			&m.IsBye,
			&m.VotesSide1,
			&m.VotesSide2,
			&m.WinnerEntrantID,
			&m.Status,
			&m.NextMatchupID,
			&m.NextMatchupSlot,
			&m.VotingClosesAt,
			&m.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan matchup row: %w", scanErr)
		}
		matchups = append(matchups, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during matchup rows iteration: %w", err)
	}
	return matchups, nil
}

func (r *postgresMatchupRepository) UpdateNextMatchupInfo(ctx context.Context, exec SQLExecutor, matchupID int, nextMatchupID, nextSlot *int) error {
	query := `UPDATE matchups SET next_matchup_id = $1, next_matchup_slot = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, nextMatchupID, nextSlot, matchupID)
	if err != nil {
		return fmt.Errorf("failed to link matchup %d forward: %w", matchupID, err)
	}
	return checkAffectedRows(result, ErrMatchupNotFound)
}

func (r *postgresMatchupRepository) IncrementTally(ctx context.Context, exec SQLExecutor, matchupID, side int) error {
	column := "votes_side1"
	if side == 2 {
		column = "votes_side2"
	}
	query := `UPDATE matchups SET ` + column + ` = ` + column + ` + 1 WHERE id = $1 AND status = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, matchupID, models.MatchupActive)
	if err != nil {
		return fmt.Errorf("failed to increment tally on matchup %d: %w", matchupID, err)
	}
	return checkAffectedRows(result, ErrMatchupNotOpen)
}

func (r *postgresMatchupRepository) SetWinnerAndComplete(ctx context.Context, exec SQLExecutor, matchupID, winnerEntrantID int) error {
	query := `UPDATE matchups SET winner_entrant_id = $1, status = $2 WHERE id = $3 AND status = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		winnerEntrantID, models.MatchupCompleted, matchupID, models.MatchupActive)
	if err != nil {
		return fmt.Errorf("failed to complete matchup %d: %w", matchupID, err)
	}
	return checkAffectedRows(result, ErrMatchupNotOpen)
}

func (r *postgresMatchupRepository) SetEntrantOnSlot(ctx context.Context, exec SQLExecutor, matchupID, slot, entrantID int) error {
	column := "entrant1_id"
	if slot == 2 {
		column = "entrant2_id"
	}
	query := `UPDATE matchups SET ` + column + ` = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, entrantID, matchupID)
	if err != nil {
		return fmt.Errorf("failed to set entrant on matchup %d slot %d: %w", matchupID, slot, err)
	}
	return checkAffectedRows(result, ErrMatchupNotFound)
}

func (r *postgresMatchupRepository) Activate(ctx context.Context, exec SQLExecutor, matchupID int, closesAt *time.Time) error {
	query := `
		UPDATE matchups SET status = $1, voting_closes_at = $2
		WHERE id = $3 AND status = $4 AND entrant1_id IS NOT NULL AND entrant2_id IS NOT NULL`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		models.MatchupActive, closesAt, matchupID, models.MatchupPending)
	if err != nil {
		return fmt.Errorf("failed to activate matchup %d: %w", matchupID, err)
	}
	return checkAffectedRows(result, ErrMatchupNotOpen)
}

func (r *postgresMatchupRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*models.Matchup, error) {
	query := `SELECT ` + matchupColumns + ` FROM matchups
		WHERE status = $1 AND voting_closes_at IS NOT NULL AND voting_closes_at <= $2
		ORDER BY voting_closes_at ASC`

	rows, err := r.db.QueryContext(ctx, query, models.MatchupActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired matchups: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}
