package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/repositories"
	"github.com/martial-arena/combat-scoring/scoring"
)

// ProposedAction is what an official reports having seen.
type ProposedAction struct {
	Type             models.EventType `json:"type"`
	Corner           models.Corner    `json:"corner"`
	TimestampInRound int              `json:"timestamp_in_round"`
	Note             string           `json:"note,omitempty"`
}

// VoteStatus is the read model for the pending tally of one match round.
type VoteStatus struct {
	MatchID     int             `json:"match_id"`
	RoundNumber int             `json:"round_number"`
	Quorum      int             `json:"quorum"`
	Proposals   []ProposalTally `json:"proposals"`
}

type ProposalTally struct {
	Proposal scoring.ProposalKey `json:"proposal"`
	Votes    int                 `json:"votes"`
	VoterIDs []int               `json:"voter_ids"`
}

// VoteResult reports the outcome of one vote submission.
type VoteResult struct {
	Status VoteStatus `json:"status"`
	// Committed is set when this vote completed the quorum and the
	// action entered the ledger.
	Committed *models.ScoringEvent `json:"committed,omitempty"`
	// Advisory marks a judger vote, recorded but outside the quorum.
	Advisory bool `json:"advisory"`
}

// VoteService is the consensus coordinator: no single official's action
// enters the ledger until a majority of the assigned assessors agree it
// happened. Pending votes are in-memory per-match state owned by the
// match commit path.
type VoteService interface {
	ProcessVote(ctx context.Context, matchID, officialID int, action ProposedAction) (*VoteResult, error)
	GetVotingStatus(ctx context.Context, matchID int) (*VoteStatus, error)
	ResetVotes(ctx context.Context, matchID int) error
	// ExpireRound drops pending votes that reference a round other than
	// the current one; used by the background sweeper.
	ExpireRound(ctx context.Context, matchID int) error
	// TrackedMatches lists every match id with an in-memory tally, so
	// the sweeper knows what to visit.
	TrackedMatches() []int
}

type voteService struct {
	matchSvc       MatchService
	assignmentRepo repositories.AssignmentRepository
	locks          *matchLocks
	hub            Broadcaster
	logger         *slog.Logger
	lockWait       time.Duration

	mu      sync.Mutex
	tallies map[int]*scoring.Tally
}

func NewVoteService(
	matchSvc MatchService,
	assignmentRepo repositories.AssignmentRepository,
	locks *matchLocks,
	hub Broadcaster,
	logger *slog.Logger,
	lockWait time.Duration,
) VoteService {
	if logger == nil {
		logger = slog.Default()
	}
	if lockWait <= 0 {
		lockWait = 2 * time.Second
	}
	return &voteService{
		matchSvc:       matchSvc,
		assignmentRepo: assignmentRepo,
		locks:          locks,
		hub:            hub,
		logger:         logger,
		lockWait:       lockWait,
		tallies:        make(map[int]*scoring.Tally),
	}
}

func (s *voteService) tally(matchID int) *scoring.Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tallies[matchID]
	if !ok {
		t = scoring.NewTally()
		s.tallies[matchID] = t
	}
	return t
}

// ProcessVote records one official's vote for a proposed action and, on
// reaching assessor quorum, commits the action exactly once and clears
// every pending vote for the match. A proposal losing that race is
// dropped silently: the next status read shows the cleared tally.
func (s *voteService) ProcessVote(ctx context.Context, matchID, officialID int, action ProposedAction) (*VoteResult, error) {
	if !scoring.Proposable(action.Type) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProposal, action.Type)
	}
	if !scoring.ValidCorner(action.Corner) {
		return nil, fmt.Errorf("%w: corner %q", ErrInvalidProposal, action.Corner)
	}

	if _, err := s.assignmentRepo.GetByMatchAndUser(ctx, matchID, officialID); err != nil {
		if errors.Is(err, repositories.ErrAssignmentNotFound) {
			return nil, ErrUnauthorizedVoter
		}
		return nil, err
	}

	// Serialize against commits and other voters for this match. The
	// wait is bounded: a held commit path surfaces as a retryable
	// timeout, never a silently dropped vote.
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.matchSvc.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress || match.CurrentRound == 0 {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, match.Status)
	}
	if err := s.requireLiveRound(ctx, match); err != nil {
		return nil, err
	}

	assessors, judger, err := s.panel(ctx, matchID)
	if err != nil {
		return nil, err
	}

	key := scoring.ProposalKey{
		MatchID:     matchID,
		RoundNumber: match.CurrentRound,
		Type:        action.Type,
		Corner:      action.Corner,
	}
	tally := s.tally(matchID)

	// The judger's vote is advisory: recorded for the audit trail but
	// never counted toward assessor quorum.
	if judger != nil && judger.UserID == officialID {
		tally.Add(key, officialID)
		status := s.statusLocked(match, tally, len(assessors))
		s.broadcastStatus(matchID, status)
		return &VoteResult{Status: *status, Advisory: true}, nil
	}

	eligible := make(map[int]bool, len(assessors)+1)
	for _, a := range assessors {
		eligible[a.UserID] = true
	}
	if judger != nil {
		eligible[judger.UserID] = true
	}
	// Votes from officials unassigned since casting stop counting, but
	// committed history is never revisited.
	tally.Prune(eligible)

	votes := tally.Add(key, officialID)
	quorum := scoring.Quorum(len(assessors))

	assessorVotes := s.countAssessorVotes(tally, key, assessors)
	if assessorVotes < quorum {
		s.logger.Info("vote recorded",
			slog.Int("match_id", matchID),
			slog.Int("official_id", officialID),
			slog.String("proposal", key.String()),
			slog.Int("votes", votes),
			slog.Int("quorum", quorum),
		)
		status := s.statusLocked(match, tally, len(assessors))
		s.broadcastStatus(matchID, status)
		return &VoteResult{Status: *status}, nil
	}

	// Quorum reached: commit exactly once, then clear every pending
	// vote for the match. A fresh action needs a fresh round of voting.
	// ApproverIDs carry the concurring assessors only; a judger vote on
	// the same proposal stays in the tally audit trail.
	isAssessor := make(map[int]bool, len(assessors))
	for _, a := range assessors {
		isAssessor[a.UserID] = true
	}
	approvers := make([]int64, 0, assessorVotes)
	for _, id := range tally.Voters(key) {
		if isAssessor[id] {
			approvers = append(approvers, int64(id))
		}
	}
	event, err := s.matchSvc.CommitHeld(ctx, CommitInput{
		MatchID:          matchID,
		RoundNumber:      match.CurrentRound,
		TimestampInRound: action.TimestampInRound,
		OfficialID:       officialID,
		ApproverIDs:      approvers,
		Corner:           action.Corner,
		Type:             action.Type,
		Note:             action.Note,
	})
	if err != nil {
		return nil, err
	}
	tally.Clear()

	s.logger.Info("consensus commit",
		slog.Int("match_id", matchID),
		slog.String("proposal", key.String()),
		slog.Int64("sequence", event.Sequence),
	)
	status := s.statusLocked(match, tally, len(assessors))
	s.broadcastStatus(matchID, status)
	return &VoteResult{Status: *status, Committed: event}, nil
}

func (s *voteService) countAssessorVotes(tally *scoring.Tally, key scoring.ProposalKey, assessors []*models.Assignment) int {
	isAssessor := make(map[int]bool, len(assessors))
	for _, a := range assessors {
		isAssessor[a.UserID] = true
	}
	count := 0
	for _, id := range tally.Voters(key) {
		if isAssessor[id] {
			count++
		}
	}
	return count
}

// requireLiveRound refuses votes cast between rounds: the break is dead
// time, nothing can be proposed there.
func (s *voteService) requireLiveRound(ctx context.Context, match *models.Match) error {
	rounds, err := s.matchSvc.ListRounds(ctx, match.ID)
	if err != nil {
		return err
	}
	for _, r := range rounds {
		if r.RoundNumber == match.CurrentRound {
			if r.Status != models.RoundStatusInProgress {
				return fmt.Errorf("%w: round %d is %s", ErrRoundNotInProgress, r.RoundNumber, r.Status)
			}
			return nil
		}
	}
	return ErrRoundNotInProgress
}

func (s *voteService) panel(ctx context.Context, matchID int) (assessors []*models.Assignment, judger *models.Assignment, err error) {
	assignments, err := s.assignmentRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range assignments {
		switch a.Role {
		case models.RoleAssessor:
			assessors = append(assessors, a)
		case models.RoleJudger:
			judger = a
		}
	}
	return assessors, judger, nil
}

func (s *voteService) statusLocked(match *models.Match, tally *scoring.Tally, assessorCount int) *VoteStatus {
	status := &VoteStatus{
		MatchID:     match.ID,
		RoundNumber: match.CurrentRound,
		Quorum:      scoring.Quorum(assessorCount),
		Proposals:   make([]ProposalTally, 0),
	}
	for key, voters := range tally.Snapshot() {
		status.Proposals = append(status.Proposals, ProposalTally{
			Proposal: key,
			Votes:    len(voters),
			VoterIDs: voters,
		})
	}
	return status
}

func (s *voteService) broadcastStatus(matchID int, status *VoteStatus) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(scoring.MatchRoom(matchID), scoring.MsgVoteStatus, status)
}

func (s *voteService) GetVotingStatus(ctx context.Context, matchID int) (*VoteStatus, error) {
	match, err := s.matchSvc.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	assessors, _, err := s.panel(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.statusLocked(match, s.tally(matchID), len(assessors)), nil
}

// ResetVotes discards the pending tally without materializing anything.
// Committed events are untouched; only Undo reverses those.
func (s *voteService) ResetVotes(ctx context.Context, matchID int) error {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return err
	}
	defer release()

	match, err := s.matchSvc.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	assessors, _, err := s.panel(ctx, matchID)
	if err != nil {
		return err
	}
	tally := s.tally(matchID)
	tally.Clear()
	s.logger.Info("pending votes reset", slog.Int("match_id", matchID))
	s.broadcastStatus(matchID, s.statusLocked(match, tally, len(assessors)))
	return nil
}

// TrackedMatches lists the match ids with an in-memory tally.
func (s *voteService) TrackedMatches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.tallies))
	for id := range s.tallies {
		ids = append(ids, id)
	}
	return ids
}

func (s *voteService) dropTally(matchID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tallies, matchID)
}

// ExpireRound clears tallies left over from rounds that already ended.
func (s *voteService) ExpireRound(ctx context.Context, matchID int) error {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return err
	}
	defer release()

	match, err := s.matchSvc.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.dropTally(matchID)
			return nil
		}
		return err
	}
	if match.Status.Terminal() {
		s.dropTally(matchID)
		return nil
	}

	tally := s.tally(matchID)
	stale := false
	for key := range tally.Snapshot() {
		if key.RoundNumber != match.CurrentRound || match.Status != models.MatchStatusInProgress {
			stale = true
			break
		}
	}
	if stale {
		tally.Clear()
		s.logger.Info("stale pending votes expired", slog.Int("match_id", matchID))
	}
	return nil
}
