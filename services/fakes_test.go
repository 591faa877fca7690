package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/repositories"
	"github.com/trackclash/trackclash/storage"
)

// The services own their transactions through *sql.DB, while all actual
// data access goes through the repository fakes below. This driver gives
// them a real database handle whose transactions are no-ops.
type noopDriver struct{}

func (noopDriver) Open(string) (driver.Conn, error) { return &noopConn{}, nil }

type noopConn struct{}

func (*noopConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements are not supported")
}
func (*noopConn) Close() error              { return nil }
func (*noopConn) Begin() (driver.Tx, error) { return noopTx{}, nil }

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

func init() {
	sql.Register("memtx", noopDriver{})
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("memtx", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if existing.Nickname == user.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	c := *user
	return &c, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			c := *user
			return &c, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

type fakeTournamentRepo struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament)}
}

// add seeds a tournament directly, bypassing Create.
func (f *fakeTournamentRepo) add(t *models.Tournament) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == 0 {
		f.nextID++
		t.ID = f.nextID
	} else if t.ID > f.nextID {
		f.nextID = t.ID
	}
	stored := *t
	f.tournaments[t.ID] = &stored
}

func (f *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	stored := *t
	f.tournaments[t.ID] = &stored
	return nil
}

func (f *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]models.Tournament, 0)
	for _, t := range f.tournaments {
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, fromStatus, toStatus models.TournamentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.Status != fromStatus {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = toStatus
	return nil
}

func (f *fakeTournamentRepo) SetTotalRounds(_ context.Context, _ repositories.SQLExecutor, id int, totalRounds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.TotalRounds = &totalRounds
	return nil
}

func (f *fakeTournamentRepo) SetChampion(_ context.Context, _ repositories.SQLExecutor, id int, championEntrantID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.ChampionID = &championEntrantID
	return nil
}

type fakeEntrantRepo struct {
	mu       sync.Mutex
	nextID   int
	entrants map[int]*models.Entrant
}

func newFakeEntrantRepo() *fakeEntrantRepo {
	return &fakeEntrantRepo{entrants: make(map[int]*models.Entrant)}
}

func (f *fakeEntrantRepo) add(e *models.Entrant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == 0 {
		f.nextID++
		e.ID = f.nextID
	} else if e.ID > f.nextID {
		f.nextID = e.ID
	}
	stored := *e
	f.entrants[e.ID] = &stored
}

func (f *fakeEntrantRepo) Create(_ context.Context, entrant *models.Entrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.entrants {
		if existing.TournamentID == entrant.TournamentID && existing.UserID == entrant.UserID {
			return repositories.ErrEntrantConflict
		}
	}
	f.nextID++
	entrant.ID = f.nextID
	entrant.CreatedAt = time.Now()
	stored := *entrant
	f.entrants[entrant.ID] = &stored
	return nil
}

func (f *fakeEntrantRepo) GetByID(_ context.Context, id int) (*models.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entrants[id]
	if !ok {
		return nil, repositories.ErrEntrantNotFound
	}
	c := *e
	return &c, nil
}

func (f *fakeEntrantRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*models.Entrant, 0)
	for _, e := range f.entrants {
		if e.TournamentID == tournamentID {
			c := *e
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		si, sj := result[i].Seed, result[j].Seed
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si < *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (f *fakeEntrantRepo) CountByTournament(_ context.Context, tournamentID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, e := range f.entrants {
		if e.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeEntrantRepo) UpdateAudioKey(_ context.Context, id int, audioKey *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entrants[id]
	if !ok {
		return repositories.ErrEntrantNotFound
	}
	e.AudioKey = audioKey
	return nil
}

type fakeMatchupRepo struct {
	mu       sync.Mutex
	nextID   int
	matchups map[int]*models.Matchup
}

func newFakeMatchupRepo() *fakeMatchupRepo {
	return &fakeMatchupRepo{matchups: make(map[int]*models.Matchup)}
}

func (f *fakeMatchupRepo) add(m *models.Matchup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == 0 {
		f.nextID++
		m.ID = f.nextID
	} else if m.ID > f.nextID {
		f.nextID = m.ID
	}
	stored := *m
	f.matchups[m.ID] = &stored
}

// get returns the stored matchup for direct assertions.
func (f *fakeMatchupRepo) get(id int) *models.Matchup {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchups[id]
	if !ok {
		return nil
	}
	c := *m
	return &c
}

func (f *fakeMatchupRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Matchup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now()
	stored := *m
	f.matchups[m.ID] = &stored
	return nil
}

func (f *fakeMatchupRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Matchup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchups[id]
	if !ok {
		return nil, repositories.ErrMatchupNotFound
	}
	c := *m
	return &c, nil
}

func (f *fakeMatchupRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Matchup, error) {
	return f.GetByID(ctx, exec, id)
}

func (f *fakeMatchupRepo) ListByTournament(_ context.Context, tournamentID int, round *int, status *models.MatchupStatus) ([]*models.Matchup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*models.Matchup, 0)
	for _, m := range f.matchups {
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.Round != *round {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		c := *m
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Round != result[j].Round {
			return result[i].Round < result[j].Round
		}
		return result[i].SlotInRound < result[j].SlotInRound
	})
	return result, nil
}

func (f *fakeMatchupRepo) UpdateNextMatchupInfo(_ context.Context, _ repositories.SQLExecutor, matchupID int, nextMatchupID, nextSlot *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchups[matchupID]
	if !ok {
		return repositories.ErrMatchupNotFound
	}
	m.NextMatchupID = nextMatchupID
	m.NextMatchupSlot = nextSlot
	return nil
}

func (f *fakeMatchupRepo) IncrementTally(_ context.Context, _ repositories.SQLExecutor, matchupID, side int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchups[matchupID]
	if !ok || m.Status != models.MatchupActive {
		return repositories.ErrMatchupNotOpen
	}
	if side == 2 {
		m.VotesSide2++
	} else {
		m.VotesSide1++
	}
	return nil
}

func (f *fakeMatchupRepo) SetWinnerAndComplete(_ context.Context, _ repositories.SQLExecutor, matchupID, winnerEntrantID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchups[matchupID]
	if !ok || m.Status != models.MatchupActive {
		return repositories.ErrMatchupNotOpen
	}
	m.WinnerEntrantID = &winnerEntrantID
	m.Status = models.MatchupCompleted
	return nil
}

func (f *fakeMatchupRepo) SetEntrantOnSlot(_ context.Context, _ repositories.SQLExecutor, matchupID, slot, entrantID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchups[matchupID]
	if !ok {
		return repositories.ErrMatchupNotFound
	}
	id := entrantID
	if slot == 2 {
		m.Entrant2ID = &id
	} else {
		m.Entrant1ID = &id
	}
	return nil
}

func (f *fakeMatchupRepo) Activate(_ context.Context, _ repositories.SQLExecutor, matchupID int, closesAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchups[matchupID]
	if !ok || m.Status != models.MatchupPending || m.Entrant1ID == nil || m.Entrant2ID == nil {
		return repositories.ErrMatchupNotOpen
	}
	m.Status = models.MatchupActive
	m.VotingClosesAt = closesAt
	return nil
}

func (f *fakeMatchupRepo) ListExpiredActive(_ context.Context, now time.Time) ([]*models.Matchup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*models.Matchup, 0)
	for _, m := range f.matchups {
		if m.Status != models.MatchupActive || m.VotingClosesAt == nil {
			continue
		}
		if !m.VotingClosesAt.After(now) {
			c := *m
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].VotingClosesAt.Before(*result[j].VotingClosesAt)
	})
	return result, nil
}

type fakeVoteRepo struct {
	mu     sync.Mutex
	nextID int
	votes  map[[2]int]*models.Vote
}

func newFakeVoteRepo() *fakeVoteRepo {
	return &fakeVoteRepo{votes: make(map[[2]int]*models.Vote)}
}

func (f *fakeVoteRepo) Create(_ context.Context, _ repositories.SQLExecutor, vote *models.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int{vote.VoterID, vote.MatchupID}
	if _, exists := f.votes[key]; exists {
		return repositories.ErrVoteDuplicate
	}
	f.nextID++
	vote.ID = f.nextID
	vote.CreatedAt = time.Now()
	stored := *vote
	f.votes[key] = &stored
	return nil
}

func (f *fakeVoteRepo) CountByMatchup(_ context.Context, matchupID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, v := range f.votes {
		if v.MatchupID == matchupID {
			count++
		}
	}
	return count, nil
}

func (f *fakeVoteRepo) ListByMatchup(_ context.Context, matchupID int) ([]*models.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*models.Vote, 0)
	for _, v := range f.votes {
		if v.MatchupID == matchupID {
			c := *v
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type fakeUploader struct {
	mu      sync.Mutex
	stored  map[string][]byte
	deleted []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{stored: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[key] = data
	return &storage.UploadResult{Key: key, Location: f.GetPublicURL(key)}, nil
}

func (f *fakeUploader) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}
