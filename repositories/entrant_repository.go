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
	ErrEntrantNotFound          = errors.New("entrant not found")
	ErrEntrantConflict          = errors.New("user already entered this tournament")
	ErrEntrantTournamentInvalid = errors.New("entrant tournament reference invalid")
	ErrEntrantUserInvalid       = errors.New("entrant user reference invalid")
)

type EntrantRepository interface {
	Create(ctx context.Context, entrant *models.Entrant) error
	GetByID(ctx context.Context, id int) (*models.Entrant, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Entrant, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	UpdateAudioKey(ctx context.Context, id int, audioKey *string) error
}

type postgresEntrantRepository struct {
	db *sql.DB
}

func NewPostgresEntrantRepository(db *sql.DB) EntrantRepository {
	return &postgresEntrantRepository{db: db}
}

func (r *postgresEntrantRepository) Create(ctx context.Context, entrant *models.Entrant) error {
	query := `
		INSERT INTO entrants (tournament_id, user_id, track_title, audio_key, seed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entrant.TournamentID,
		entrant.UserID,
		entrant.TrackTitle,
		entrant.AudioKey,
		entrant.Seed,
	).Scan(&entrant.ID, &entrant.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch {
			case pqErr.Code == "23505" && pqErr.Constraint == "entrants_tournament_id_user_id_key":
				return ErrEntrantConflict
			case pqErr.Code == "23503" && pqErr.Constraint == "entrants_tournament_id_fkey":
				return ErrEntrantTournamentInvalid
			case pqErr.Code == "23503" && pqErr.Constraint == "entrants_user_id_fkey":
				return ErrEntrantUserInvalid
			}
		}
		return fmt.Errorf("failed to insert entrant: %w", err)
	}
	return nil
}

func (r *postgresEntrantRepository) GetByID(ctx context.Context, id int) (*models.Entrant, error) {
	query := `
		SELECT id, tournament_id, user_id, track_title, audio_key, seed, created_at
		FROM entrants
		WHERE id = $1`

	entrant := &models.Entrant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&entrant.ID,
		&entrant.TournamentID,
		&entrant.UserID,
		&entrant.TrackTitle,
		&entrant.AudioKey,
		&entrant.Seed,
		&entrant.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntrantNotFound
		}
		return nil, fmt.Errorf("failed to scan entrant %d: %w", id, err)
	}
	return entrant, nil
}

func (r *postgresEntrantRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Entrant, error) {
	query := `
		SELECT id, tournament_id, user_id, track_title, audio_key, seed, created_at
		FROM entrants
		WHERE tournament_id = $1
		ORDER BY seed ASC NULLS LAST, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entrants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entrants := make([]*models.Entrant, 0)
	for rows.Next() {
		var e models.Entrant
		if scanErr := rows.Scan(
			&e.ID,
			&e.TournamentID,
			&e.UserID,
			&e.TrackTitle,
			&e.AudioKey,
			&e.Seed,
			&e.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan entrant row: %w", scanErr)
		}
		entrants = append(entrants, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during entrant rows iteration: %w", err)
	}
	return entrants, nil
}

func (r *postgresEntrantRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entrants WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entrants for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresEntrantRepository) UpdateAudioKey(ctx context.Context, id int, audioKey *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entrants SET audio_key = $1 WHERE id = $2`, audioKey, id)
	if err != nil {
		return fmt.Errorf("failed to update audio key for entrant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEntrantNotFound)
}
