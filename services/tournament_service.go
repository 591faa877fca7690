package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/trackclash/trackclash/brackets"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/repositories"
)

type CreateTournamentInput struct {
	Name          string               `json:"name"`
	Description   *string              `json:"description,omitempty"`
	PairingPolicy models.PairingPolicy `json:"pairing_policy"`
	MaxEntrants   int                  `json:"max_entrants"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)

	// StartTournament performs the one-time Draft -> Active transition:
	// it claims the status flip and builds the bracket in one transaction,
	// so a tournament can never end up Active without a bracket or with
	// two brackets from racing starts.
	StartTournament(ctx context.Context, organizerID, tournamentID int) (*models.Tournament, error)
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	entrantRepo    repositories.EntrantRepository
	bracketService BracketService
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	entrantRepo repositories.EntrantRepository,
	bracketService BracketService,
	hub *brackets.Hub,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		entrantRepo:    entrantRepo,
		bracketService: bracketService,
		hub:            hub,
		logger:         logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.MaxEntrants < 2 {
		return nil, ErrTournamentInvalidCapacity
	}
	policy := input.PairingPolicy
	if policy == "" {
		policy = models.PairingRandom
	}
	if !policy.Valid() {
		return nil, ErrInvalidPairingPolicy
	}

	tournament := &models.Tournament{
		Name:          name,
		Description:   input.Description,
		OrganizerID:   organizerID,
		PairingPolicy: policy,
		Status:        models.TournamentDraft,
		MaxEntrants:   input.MaxEntrants,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("organizer_id", organizerID),
		slog.String("pairing_policy", string(policy)))

	return tournament, nil
}

func (s *tournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", id, err)
	}
	return tournament, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *tournamentService) StartTournament(ctx context.Context, organizerID, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	if tournament.OrganizerID != organizerID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.TournamentDraft {
		return nil, ErrTournamentNotDraft
	}

	entrants, err := s.entrantRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants for tournament %d: %w", tournamentID, err)
	}

	// Entrants without an uploaded track never reach the builder.
	eligible := make([]*models.Entrant, 0, len(entrants))
	for _, e := range entrants {
		if e.Eligible() {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) < 2 {
		return nil, ErrBracketTooFewEntrants
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The guarded status update is the gate: a concurrent start loses
	// here and the whole transaction, bracket included, rolls back.
	if err := s.tournamentRepo.UpdateStatus(ctx, tx, tournamentID,
		models.TournamentDraft, models.TournamentActive); err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			return nil, ErrTournamentNotDraft
		}
		return nil, err
	}

	if _, err := s.bracketService.GenerateAndSaveBracket(ctx, tx, tournament, eligible); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tournament start: %w", err)
	}

	tournament.Status = models.TournamentActive

	s.logger.Info("tournament started",
		slog.Int("tournament_id", tournamentID),
		slog.Int("eligible_entrants", len(eligible)))

	if s.hub != nil {
		room := strconv.Itoa(tournamentID)
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:   brackets.EventBracketGenerated,
			RoomID: room,
			Payload: map[string]interface{}{
				"tournament_id": tournamentID,
				"entrants":      len(eligible),
			},
		})
	}

	return tournament, nil
}
