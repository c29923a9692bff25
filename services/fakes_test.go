package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The fakes below back the service tests with in-memory state. They
// return copies the way a row scan would, so services never share
// mutable rows with the store.

type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type memMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]models.Match
}

func newMemMatchRepo() *memMatchRepo {
	return &memMatchRepo{nextID: 1, matches: make(map[int]models.Match)}
}

func (r *memMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match.ID = r.nextID
	r.nextID++
	match.CreatedAt = time.Now().UTC()
	r.matches[match.ID] = *match
	return nil
}

func (r *memMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.DeletedAt != nil {
		return nil, repositories.ErrMatchNotFound
	}
	copied := m
	return &copied, nil
}

func (r *memMatchRepo) ListByCompetition(ctx context.Context, competitionID int, status *models.MatchStatus) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.matches {
		if m.CompetitionID != competitionID || m.DeletedAt != nil {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		copied := m
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memMatchRepo) UpdateLifecycle(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[match.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	r.matches[match.ID] = *match
	return nil
}

func (r *memMatchRepo) UpdateReportURL(ctx context.Context, exec repositories.SQLExecutor, id int, reportURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.ReportURL = &reportURL
	r.matches[id] = m
	return nil
}

func (r *memMatchRepo) SoftDelete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.DeletedAt != nil {
		return repositories.ErrMatchNotFound
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	r.matches[id] = m
	return nil
}

type memRoundRepo struct {
	mu     sync.Mutex
	nextID int
	rounds map[int]models.Round
}

func newMemRoundRepo() *memRoundRepo {
	return &memRoundRepo{nextID: 1, rounds: make(map[int]models.Round)}
}

func (r *memRoundRepo) Create(ctx context.Context, exec repositories.SQLExecutor, round *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rounds {
		if existing.MatchID == round.MatchID && existing.RoundNumber == round.RoundNumber {
			return repositories.ErrRoundConflict
		}
	}
	round.ID = r.nextID
	r.nextID++
	round.CreatedAt = time.Now().UTC()
	r.rounds[round.ID] = *round
	return nil
}

func (r *memRoundRepo) GetByMatchAndNumber(ctx context.Context, exec repositories.SQLExecutor, matchID, roundNumber int) (*models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, round := range r.rounds {
		if round.MatchID == matchID && round.RoundNumber == roundNumber {
			copied := round
			return &copied, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r *memRoundRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Round
	for number := 1; ; number++ {
		found := false
		for _, round := range r.rounds {
			if round.MatchID == matchID && round.RoundNumber == number {
				copied := round
				out = append(out, &copied)
				found = true
				break
			}
		}
		if !found {
			return out, nil
		}
	}
}

func (r *memRoundRepo) UpdateLifecycle(ctx context.Context, exec repositories.SQLExecutor, round *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rounds[round.ID]; !ok {
		return repositories.ErrRoundNotFound
	}
	r.rounds[round.ID] = *round
	return nil
}

func (r *memRoundRepo) UpdateScores(ctx context.Context, exec repositories.SQLExecutor, id int, redScore, blueScore int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	round.RedScore, round.BlueScore = redScore, blueScore
	r.rounds[id] = round
	return nil
}

type memEventRepo struct {
	mu     sync.Mutex
	nextID int
	events map[int][]models.ScoringEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{nextID: 1, events: make(map[int][]models.ScoringEvent)}
}

func (r *memEventRepo) Append(ctx context.Context, exec repositories.SQLExecutor, event *models.ScoringEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger := r.events[event.MatchID]
	var max int64
	for _, e := range ledger {
		if e.Sequence > max {
			max = e.Sequence
		}
	}
	event.ID = r.nextID
	r.nextID++
	event.Sequence = max + 1
	event.CreatedAt = time.Now().UTC()
	r.events[event.MatchID] = append(ledger, *event)
	return nil
}

func (r *memEventRepo) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.ScoringEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ScoringEvent, len(r.events[matchID]))
	copy(out, r.events[matchID])
	return out, nil
}

func (r *memEventRepo) MaxSequence(ctx context.Context, exec repositories.SQLExecutor, matchID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	for _, e := range r.events[matchID] {
		if e.Sequence > max {
			max = e.Sequence
		}
	}
	return max, nil
}

type memScoreboardRepo struct {
	mu          sync.Mutex
	projections map[int]models.ScoreboardProjection
}

func newMemScoreboardRepo() *memScoreboardRepo {
	return &memScoreboardRepo{projections: make(map[int]models.ScoreboardProjection)}
}

func (r *memScoreboardRepo) Create(ctx context.Context, exec repositories.SQLExecutor, proj *models.ScoreboardProjection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projections[proj.MatchID]; ok {
		return repositories.ErrScoreboardConflict
	}
	r.projections[proj.MatchID] = *proj
	return nil
}

func (r *memScoreboardRepo) GetByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.ScoreboardProjection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	proj, ok := r.projections[matchID]
	if !ok {
		return nil, repositories.ErrScoreboardNotFound
	}
	copied := proj
	return &copied, nil
}

func (r *memScoreboardRepo) Update(ctx context.Context, exec repositories.SQLExecutor, proj *models.ScoreboardProjection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projections[proj.MatchID]; !ok {
		return repositories.ErrScoreboardNotFound
	}
	r.projections[proj.MatchID] = *proj
	return nil
}

func (r *memScoreboardRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, matchID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projections[matchID]; !ok {
		return repositories.ErrScoreboardNotFound
	}
	delete(r.projections, matchID)
	return nil
}

type memAssignmentRepo struct {
	mu          sync.Mutex
	nextID      int
	assignments map[int]models.Assignment
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{nextID: 1, assignments: make(map[int]models.Assignment)}
}

func (r *memAssignmentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, assignment *models.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.assignments {
		if existing.MatchID != assignment.MatchID {
			continue
		}
		if existing.Position == assignment.Position {
			return repositories.ErrAssignmentPositionConflict
		}
		if existing.UserID == assignment.UserID {
			return repositories.ErrAssignmentUserConflict
		}
	}
	assignment.ID = r.nextID
	r.nextID++
	assignment.CreatedAt = time.Now().UTC()
	r.assignments[assignment.ID] = *assignment
	return nil
}

func (r *memAssignmentRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[id]; !ok {
		return repositories.ErrAssignmentNotFound
	}
	delete(r.assignments, id)
	return nil
}

func (r *memAssignmentRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Assignment
	for position := models.MinAssessorPosition; position <= models.JudgerPosition; position++ {
		for _, a := range r.assignments {
			if a.MatchID == matchID && a.Position == position {
				copied := a
				out = append(out, &copied)
			}
		}
	}
	return out, nil
}

func (r *memAssignmentRepo) GetByMatchAndUser(ctx context.Context, matchID, userID int) (*models.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.MatchID == matchID && a.UserID == userID {
			copied := a
			return &copied, nil
		}
	}
	return nil, repositories.ErrAssignmentNotFound
}

type broadcastRecord struct {
	RoomID  string
	MsgType string
	Payload interface{}
}

type fakeHub struct {
	mu       sync.Mutex
	messages []broadcastRecord
}

func (h *fakeHub) BroadcastToRoom(roomID string, msgType string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, broadcastRecord{RoomID: roomID, MsgType: msgType, Payload: payload})
}

func (h *fakeHub) typesSent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.messages))
	for i, m := range h.messages {
		out[i] = m.MsgType
	}
	return out
}

// lastPayload returns the payload of the most recent message of the
// given type, or nil.
func (h *fakeHub) lastPayload(msgType string) interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].MsgType == msgType {
			return h.messages[i].Payload
		}
	}
	return nil
}

// engine bundles a fully wired in-memory service graph for tests.
type engine struct {
	matches     *memMatchRepo
	rounds      *memRoundRepo
	events      *memEventRepo
	scoreboards *memScoreboardRepo
	assignments *memAssignmentRepo
	hub         *fakeHub

	matchSvc      MatchService
	voteSvc       VoteService
	assignmentSvc AssignmentService
}

func newEngine() *engine {
	e := &engine{
		matches:     newMemMatchRepo(),
		rounds:      newMemRoundRepo(),
		events:      newMemEventRepo(),
		scoreboards: newMemScoreboardRepo(),
		assignments: newMemAssignmentRepo(),
		hub:         &fakeHub{},
	}
	locks := NewMatchLocks()
	e.matchSvc = NewMatchService(
		fakeTxRunner{},
		e.matches,
		e.rounds,
		e.events,
		e.scoreboards,
		locks,
		e.hub,
		nil,
		discardLogger(),
		time.Second,
	)
	e.voteSvc = NewVoteService(e.matchSvc, e.assignments, locks, e.hub, discardLogger(), time.Second)
	e.assignmentSvc = NewAssignmentService(e.assignments, e.matches, discardLogger())
	return e
}
