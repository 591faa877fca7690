package services

import "errors"

// Shared sentinel errors, mapped to HTTP statuses in the handlers layer.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Bracket build configuration errors. Fatal to the build call; the
	// caller must fix the input before retrying.
	ErrBracketTooFewEntrants = errors.New("at least 2 eligible entrants are required to build a bracket")
	ErrInvalidPairingPolicy  = errors.New("pairing policy must be 'random' or 'seeded'")

	// Vote ledger errors. All recoverable and reported to the caller with
	// no partial state change.
	ErrMatchupNotActive = errors.New("matchup is not open for voting")
	ErrUnknownSide      = errors.New("side is not part of this matchup")
	ErrDuplicateVote    = errors.New("vote already counted for this matchup")

	// Tournament lifecycle errors.
	ErrTournamentNotDraft          = errors.New("tournament has already started")
	ErrTournamentNotActive         = errors.New("tournament is not active")
	ErrTournamentFull              = errors.New("tournament entrant list is full")
	ErrTournamentNameRequired      = errors.New("tournament name is required")
	ErrTournamentInvalidCapacity   = errors.New("tournament max entrants must be at least 2")
	ErrEntrantTrackTitleRequired   = errors.New("track title is required")
	ErrEntrantRegistrationConflict = errors.New("user already entered this tournament")
	ErrEntrantNotEligible          = errors.New("entrant has no uploaded track")

	// Auth errors.
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrAuthNicknameTaken      = errors.New("nickname is already taken")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	ErrUserNotFound       = errors.New("user not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrEntrantNotFound    = errors.New("entrant not found")
	ErrMatchupNotFound    = errors.New("matchup not found")
)
