package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/repositories"
	"github.com/trackclash/trackclash/storage"
)

type RegisterEntrantInput struct {
	TrackTitle string `json:"track_title"`
	Seed       *int   `json:"seed,omitempty"`
}

type EntrantService interface {
	// RegisterEntrant enters a user's track into a Draft tournament.
	// Registration closes permanently once the tournament is Active.
	RegisterEntrant(ctx context.Context, userID, tournamentID int, input RegisterEntrantInput) (*models.Entrant, error)

	// UploadTrack stores the entrant's audio file and records its key.
	// Only the entrant's owner may upload, and only while the tournament
	// is still in Draft.
	UploadTrack(ctx context.Context, userID, entrantID int, filename, contentType string, audio io.Reader) (*models.Entrant, error)

	GetEntrantByID(ctx context.Context, id int) (*models.Entrant, error)
}

type entrantService struct {
	entrantRepo    repositories.EntrantRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
}

func NewEntrantService(
	entrantRepo repositories.EntrantRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
) EntrantService {
	return &entrantService{
		entrantRepo:    entrantRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
	}
}

func (s *entrantService) RegisterEntrant(ctx context.Context, userID, tournamentID int, input RegisterEntrantInput) (*models.Entrant, error) {
	title := strings.TrimSpace(input.TrackTitle)
	if title == "" {
		return nil, ErrEntrantTrackTitleRequired
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	if tournament.Status != models.TournamentDraft {
		return nil, ErrTournamentNotDraft
	}

	count, err := s.entrantRepo.CountByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if count >= tournament.MaxEntrants {
		return nil, ErrTournamentFull
	}

	entrant := &models.Entrant{
		TournamentID: tournamentID,
		UserID:       userID,
		TrackTitle:   title,
		Seed:         input.Seed,
	}
	if err := s.entrantRepo.Create(ctx, entrant); err != nil {
		if errors.Is(err, repositories.ErrEntrantConflict) {
			return nil, ErrEntrantRegistrationConflict
		}
		return nil, fmt.Errorf("failed to register entrant: %w", err)
	}
	return entrant, nil
}

func (s *entrantService) UploadTrack(ctx context.Context, userID, entrantID int, filename, contentType string, audio io.Reader) (*models.Entrant, error) {
	entrant, err := s.entrantRepo.GetByID(ctx, entrantID)
	if err != nil {
		if errors.Is(err, repositories.ErrEntrantNotFound) {
			return nil, ErrEntrantNotFound
		}
		return nil, err
	}
	if entrant.UserID != userID {
		return nil, ErrForbiddenOperation
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, entrant.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament %d: %w", entrant.TournamentID, err)
	}
	if tournament.Status != models.TournamentDraft {
		return nil, ErrTournamentNotDraft
	}

	key := fmt.Sprintf("tracks/%d/%s%s", entrant.TournamentID, uuid.New().String(), path.Ext(filename))
	result, err := s.uploader.Upload(ctx, key, contentType, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to upload track for entrant %d: %w", entrantID, err)
	}

	oldKey := entrant.AudioKey
	if err := s.entrantRepo.UpdateAudioKey(ctx, entrantID, &result.Key); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != result.Key {
		// Best effort: a replaced track should not leak storage.
		_ = s.uploader.Delete(ctx, *oldKey)
	}

	entrant.AudioKey = &result.Key
	url := s.uploader.GetPublicURL(result.Key)
	entrant.AudioURL = &url
	return entrant, nil
}

func (s *entrantService) GetEntrantByID(ctx context.Context, id int) (*models.Entrant, error) {
	entrant, err := s.entrantRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEntrantNotFound) {
			return nil, ErrEntrantNotFound
		}
		return nil, err
	}
	if entrant.AudioKey != nil && s.uploader != nil {
		url := s.uploader.GetPublicURL(*entrant.AudioKey)
		entrant.AudioURL = &url
	}
	return entrant, nil
}
