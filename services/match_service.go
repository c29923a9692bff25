package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/repositories"
	"github.com/martial-arena/combat-scoring/scoring"
)

// CommitInput describes one scoring action to admit into the ledger.
type CommitInput struct {
	MatchID int
	// RoundNumber 0 targets the match's current round.
	RoundNumber      int
	TimestampInRound int
	OfficialID       int
	ApproverIDs      []int64
	Corner           models.Corner
	Type             models.EventType
	RefSequence      *int64
	Note             string
}

type CreateMatchInput struct {
	CompetitionID        int    `json:"competition_id"`
	WeightClassID        *int   `json:"weight_class_id"`
	FieldID              *int   `json:"field_id"`
	RedAthleteID         int    `json:"red_athlete_id"`
	BlueAthleteID        int    `json:"blue_athlete_id"`
	RedName              string `json:"red_name"`
	BlueName             string `json:"blue_name"`
	TotalRounds          int    `json:"total_rounds"`
	RoundDurationSeconds int    `json:"round_duration_seconds"`
	AssessorCount        int    `json:"assessor_count"`
	ExtraRoundAllowed    bool   `json:"extra_round_allowed"`
	TieBreakPolicy       string `json:"tie_break_policy"`
}

// MatchService owns the match and round lifecycle state machine and the
// single commit path into the scoring event ledger. Every ledger append
// and its projection update happen inside one transaction, serialized
// per match through the lock registry.
type MatchService interface {
	CreateMatch(ctx context.Context, input CreateMatchInput) (*models.Match, error)
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListMatchesByCompetition(ctx context.Context, competitionID int, status *models.MatchStatus) ([]*models.Match, error)
	DeleteMatch(ctx context.Context, id int) error

	StartMatch(ctx context.Context, matchID int) (*models.Match, error)
	PauseMatch(ctx context.Context, matchID int) (*models.Match, error)
	ResumeMatch(ctx context.Context, matchID int) (*models.Match, error)
	CancelMatch(ctx context.Context, matchID int) (*models.Match, error)
	EndMatch(ctx context.Context, matchID, officialID int, tieBreakWinner *models.Corner) (*models.Match, error)

	StartRound(ctx context.Context, matchID, officialID int) (*models.Round, error)
	EndRound(ctx context.Context, matchID, officialID int) (*models.Round, error)
	ListRounds(ctx context.Context, matchID int) ([]*models.Round, error)

	// Commit acquires the match commit path; CommitHeld is for callers
	// that already hold it (the vote coordinator).
	Commit(ctx context.Context, input CommitInput) (*models.ScoringEvent, error)
	CommitHeld(ctx context.Context, input CommitInput) (*models.ScoringEvent, error)
	Undo(ctx context.Context, matchID, officialID int) (*models.ScoringEvent, error)

	GetScoreboard(ctx context.Context, matchID int) (*models.ScoreboardProjection, error)
	GetEventHistory(ctx context.Context, matchID int) ([]models.ScoringEvent, error)
}

type matchService struct {
	tx             TxRunner
	matchRepo      repositories.MatchRepository
	roundRepo      repositories.RoundRepository
	eventRepo      repositories.ScoringEventRepository
	scoreboardRepo repositories.ScoreboardRepository
	locks          *matchLocks
	hub            Broadcaster
	reports        ReportService
	logger         *slog.Logger
	lockWait       time.Duration
}

func NewMatchService(
	tx TxRunner,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	eventRepo repositories.ScoringEventRepository,
	scoreboardRepo repositories.ScoreboardRepository,
	locks *matchLocks,
	hub Broadcaster,
	reports ReportService,
	logger *slog.Logger,
	lockWait time.Duration,
) MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	if lockWait <= 0 {
		lockWait = 2 * time.Second
	}
	return &matchService{
		tx:             tx,
		matchRepo:      matchRepo,
		roundRepo:      roundRepo,
		eventRepo:      eventRepo,
		scoreboardRepo: scoreboardRepo,
		locks:          locks,
		hub:            hub,
		reports:        reports,
		logger:         logger,
		lockWait:       lockWait,
	}
}

func (s *matchService) broadcast(matchID int, msgType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(scoring.MatchRoom(matchID), msgType, payload)
}

// --- CRUD needed to operate the engine ---

func (s *matchService) CreateMatch(ctx context.Context, input CreateMatchInput) (*models.Match, error) {
	if input.TotalRounds < 1 || input.RoundDurationSeconds <= 0 || input.AssessorCount < 1 {
		return nil, fmt.Errorf("%w: rounds=%d duration=%ds assessors=%d",
			ErrInvalidMatchConfig, input.TotalRounds, input.RoundDurationSeconds, input.AssessorCount)
	}
	if input.RedName == "" || input.BlueName == "" {
		return nil, fmt.Errorf("%w: corner names are required", ErrInvalidMatchConfig)
	}

	match := &models.Match{
		CompetitionID:        input.CompetitionID,
		WeightClassID:        input.WeightClassID,
		FieldID:              input.FieldID,
		RedAthleteID:         input.RedAthleteID,
		BlueAthleteID:        input.BlueAthleteID,
		RedName:              input.RedName,
		BlueName:             input.BlueName,
		Status:               models.MatchStatusPending,
		TotalRounds:          input.TotalRounds,
		RoundDurationSeconds: input.RoundDurationSeconds,
		AssessorCount:        input.AssessorCount,
		ExtraRoundAllowed:    input.ExtraRoundAllowed,
		TieBreakPolicy:       input.TieBreakPolicy,
	}
	if err := s.matchRepo.Create(ctx, nil, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListMatchesByCompetition(ctx context.Context, competitionID int, status *models.MatchStatus) ([]*models.Match, error) {
	return s.matchRepo.ListByCompetition(ctx, competitionID, status)
}

// DeleteMatch tombstones the match and drops its projection. The ledger
// is kept for audit.
func (s *matchService) DeleteMatch(ctx context.Context, id int) error {
	release, err := s.locks.AcquireTimeout(ctx, id, s.lockWait)
	if err != nil {
		return err
	}
	defer release()

	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.SoftDelete(ctx, exec, id); err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := s.scoreboardRepo.Delete(ctx, exec, id); err != nil &&
			!errors.Is(err, repositories.ErrScoreboardNotFound) {
			return err
		}
		return nil
	})
}

// --- Match lifecycle ---

func (s *matchService) StartMatch(ctx context.Context, matchID int) (*models.Match, error) {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusPending {
		if match.Status == models.MatchStatusInProgress || match.Status == models.MatchStatusPaused {
			return nil, fmt.Errorf("%w: match is %s", ErrMatchAlreadyStarted, match.Status)
		}
		return nil, fmt.Errorf("%w: cannot start match in status %s", ErrInvalidState, match.Status)
	}

	now := time.Now().UTC()
	match.Status = models.MatchStatusInProgress
	match.StartedAt = &now
	match.CurrentRound = 0

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.UpdateLifecycle(ctx, exec, match); err != nil {
			return err
		}
		// The projection row exists from the first moment scoring can.
		return s.scoreboardRepo.Create(ctx, exec, &models.ScoreboardProjection{MatchID: matchID})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match started", slog.Int("match_id", matchID))
	s.broadcast(matchID, scoring.MsgMatchStatus, match)
	return match, nil
}

func (s *matchService) PauseMatch(ctx context.Context, matchID int) (*models.Match, error) {
	return s.transition(ctx, matchID, models.MatchStatusInProgress, models.MatchStatusPaused, ErrMatchNotInProgress)
}

func (s *matchService) ResumeMatch(ctx context.Context, matchID int) (*models.Match, error) {
	return s.transition(ctx, matchID, models.MatchStatusPaused, models.MatchStatusInProgress, ErrMatchNotPaused)
}

func (s *matchService) CancelMatch(ctx context.Context, matchID int) (*models.Match, error) {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !isValidMatchTransition(match.Status, models.MatchStatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel match in status %s", ErrInvalidState, match.Status)
	}

	now := time.Now().UTC()
	match.Status = models.MatchStatusCancelled
	match.EndedAt = &now
	if err := s.updateLifecycle(ctx, match); err != nil {
		return nil, err
	}
	s.logger.Info("match cancelled", slog.Int("match_id", matchID))
	s.broadcast(matchID, scoring.MsgMatchStatus, match)
	return match, nil
}

func (s *matchService) transition(ctx context.Context, matchID int, from, to models.MatchStatus, notInFrom error) (*models.Match, error) {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != from || !isValidMatchTransition(from, to) {
		return nil, fmt.Errorf("%w: cannot move match from %s to %s", notInFrom, match.Status, to)
	}

	match.Status = to
	if err := s.updateLifecycle(ctx, match); err != nil {
		return nil, err
	}
	s.broadcast(matchID, scoring.MsgMatchStatus, match)
	return match, nil
}

func (s *matchService) updateLifecycle(ctx context.Context, match *models.Match) error {
	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.matchRepo.UpdateLifecycle(ctx, exec, match)
	})
}

// EndMatch closes the bout and records the winner from projection totals.
// A tie after all permitted rounds needs either an extra round (see
// StartRound) or an externally resolved tieBreakWinner; the engine only
// records that resolution.
func (s *matchService) EndMatch(ctx context.Context, matchID, officialID int, tieBreakWinner *models.Corner) (*models.Match, error) {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: cannot end match in status %s", ErrInvalidState, match.Status)
	}
	if match.CurrentRound < match.TotalRounds {
		return nil, fmt.Errorf("%w: %d of %d rounds played", ErrInvalidState, match.CurrentRound, match.TotalRounds)
	}
	current, err := s.roundRepo.GetByMatchAndNumber(ctx, nil, matchID, match.CurrentRound)
	if err != nil {
		return nil, err
	}
	if current.Status != models.RoundStatusCompleted {
		return nil, fmt.Errorf("%w: round %d not completed", ErrRoundStillInProgress, current.RoundNumber)
	}

	proj, err := s.scoreboardRepo.GetByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}

	winner := scoring.Winner(*proj)
	if winner == models.CornerDraw {
		if tieBreakWinner == nil {
			return nil, ErrTieBreakRequired
		}
		winner = *tieBreakWinner
	}

	now := time.Now().UTC()
	match.Status = models.MatchStatusCompleted
	match.EndedAt = &now
	match.WinnerCorner = &winner
	if err := s.updateLifecycle(ctx, match); err != nil {
		return nil, err
	}

	s.logger.Info("match completed",
		slog.Int("match_id", matchID),
		slog.String("winner", string(winner)),
		slog.Int("red", proj.RedScore),
		slog.Int("blue", proj.BlueScore),
	)
	s.broadcast(matchID, scoring.MsgMatchStatus, match)

	if s.reports != nil {
		go func() {
			exportCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.reports.ExportMatchReport(exportCtx, matchID); err != nil {
				s.logger.Error("match report export failed", slog.Int("match_id", matchID), slog.Any("error", err))
			}
		}()
	}
	return match, nil
}

// --- Round lifecycle ---

// StartRound opens the next round. Round n+1 requires round n completed.
// Past the configured main rounds an extra round is created only while
// the aggregate score is tied and the match configuration allows it.
func (s *matchService) StartRound(ctx context.Context, matchID, officialID int) (*models.Round, error) {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: match is %s", ErrMatchNotInProgress, match.Status)
	}

	if match.CurrentRound > 0 {
		prev, err := s.roundRepo.GetByMatchAndNumber(ctx, nil, matchID, match.CurrentRound)
		if err != nil {
			return nil, err
		}
		if prev.Status != models.RoundStatusCompleted {
			return nil, fmt.Errorf("%w: round %d is %s", ErrPreviousRoundNotDone, prev.RoundNumber, prev.Status)
		}
	}

	next := match.CurrentRound + 1
	roundType := models.RoundTypeMain
	if next > match.TotalRounds {
		proj, err := s.scoreboardRepo.GetByMatch(ctx, nil, matchID)
		if err != nil {
			return nil, err
		}
		if scoring.Winner(*proj) != models.CornerDraw {
			return nil, fmt.Errorf("%w: score is not tied", ErrAllRoundsPlayed)
		}
		if !match.ExtraRoundAllowed {
			return nil, ErrExtraRoundNotAllowed
		}
		roundType = models.RoundTypeExtra
	}

	now := time.Now().UTC()
	round := &models.Round{
		MatchID:                matchID,
		RoundNumber:            next,
		RoundType:              roundType,
		Status:                 models.RoundStatusInProgress,
		PlannedDurationSeconds: match.RoundDurationSeconds,
		StartedAt:              &now,
	}
	match.CurrentRound = next

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.roundRepo.Create(ctx, exec, round); err != nil {
			return err
		}
		if err := s.matchRepo.UpdateLifecycle(ctx, exec, match); err != nil {
			return err
		}
		_, _, err := s.appendEventTx(ctx, exec, match, round, CommitInput{
			MatchID:     matchID,
			RoundNumber: next,
			OfficialID:  officialID,
			Corner:      models.CornerNeutral,
			Type:        models.EventRoundStart,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("round started",
		slog.Int("match_id", matchID),
		slog.Int("round", next),
		slog.String("type", string(roundType)),
	)
	s.broadcast(matchID, scoring.MsgMatchStatus, round)
	return round, nil
}

// EndRound completes the current round, appends the round_end marker and
// caches the round's score aggregates from the ledger.
func (s *matchService) EndRound(ctx context.Context, matchID, officialID int) (*models.Round, error) {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: match is %s", ErrMatchNotInProgress, match.Status)
	}
	if match.CurrentRound == 0 {
		return nil, ErrRoundNotInProgress
	}
	round, err := s.roundRepo.GetByMatchAndNumber(ctx, nil, matchID, match.CurrentRound)
	if err != nil {
		return nil, err
	}
	if round.Status != models.RoundStatusInProgress {
		return nil, fmt.Errorf("%w: round %d is %s", ErrRoundNotInProgress, round.RoundNumber, round.Status)
	}

	now := time.Now().UTC()
	var actual *int
	if round.StartedAt != nil {
		seconds := int(now.Sub(*round.StartedAt).Seconds())
		actual = &seconds
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		_, _, err := s.appendEventTx(ctx, exec, match, round, CommitInput{
			MatchID:          matchID,
			RoundNumber:      round.RoundNumber,
			TimestampInRound: round.PlannedDurationSeconds,
			OfficialID:       officialID,
			Corner:           models.CornerNeutral,
			Type:             models.EventRoundEnd,
		})
		if err != nil {
			return err
		}

		events, err := s.eventRepo.ListByMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		red, blue := scoring.RoundScores(events, round.RoundNumber)
		round.RedScore, round.BlueScore = red, blue
		if err := s.roundRepo.UpdateScores(ctx, exec, round.ID, red, blue); err != nil {
			return err
		}

		round.Status = models.RoundStatusCompleted
		round.EndedAt = &now
		round.ActualDurationSeconds = actual
		return s.roundRepo.UpdateLifecycle(ctx, exec, round)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("round completed",
		slog.Int("match_id", matchID),
		slog.Int("round", round.RoundNumber),
		slog.Int("red", round.RedScore),
		slog.Int("blue", round.BlueScore),
	)
	s.broadcast(matchID, scoring.MsgMatchStatus, round)
	return round, nil
}

func (s *matchService) ListRounds(ctx context.Context, matchID int) ([]*models.Round, error) {
	return s.roundRepo.ListByMatch(ctx, matchID)
}

// --- Commit path ---

func (s *matchService) Commit(ctx context.Context, input CommitInput) (*models.ScoringEvent, error) {
	release, err := s.locks.AcquireTimeout(ctx, input.MatchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.CommitHeld(ctx, input)
}

// CommitHeld validates lifecycle state, appends the event and folds it
// into the projection as one atomic unit. The caller must hold the match
// commit path.
func (s *matchService) CommitHeld(ctx context.Context, input CommitInput) (*models.ScoringEvent, error) {
	match, err := s.GetMatch(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, match.Status)
	}
	if !scoring.ValidCorner(input.Corner) {
		return nil, fmt.Errorf("%w: corner %q", ErrInvalidProposal, input.Corner)
	}
	// Round markers are appended by the lifecycle itself; the external
	// commit surface only admits votable actions and undo.
	if input.Type != models.EventUndo && !scoring.Proposable(input.Type) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProposal, input.Type)
	}
	// An undo must reference the event it compensates; Undo is the only
	// place that resolves one.
	if input.Type == models.EventUndo && input.RefSequence == nil {
		return nil, fmt.Errorf("%w: undo without a referenced sequence", ErrInvalidProposal)
	}

	roundNumber := input.RoundNumber
	if roundNumber == 0 {
		roundNumber = match.CurrentRound
	}
	if roundNumber == 0 {
		return nil, ErrRoundNotInProgress
	}
	round, err := s.roundRepo.GetByMatchAndNumber(ctx, nil, input.MatchID, roundNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotInProgress
		}
		return nil, err
	}
	// Undo compensates history and may land after the round closed;
	// everything else requires a live round.
	if input.Type != models.EventUndo && round.Status != models.RoundStatusInProgress {
		return nil, fmt.Errorf("%w: round %d is %s", ErrInvalidState, round.RoundNumber, round.Status)
	}
	input.RoundNumber = roundNumber

	var event *models.ScoringEvent
	var proj *models.ScoreboardProjection
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		event, proj, err = s.appendEventTx(ctx, exec, match, round, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("scoring event committed",
		slog.Int("match_id", input.MatchID),
		slog.Int64("sequence", event.Sequence),
		slog.String("type", string(event.Type)),
		slog.String("corner", string(event.Corner)),
	)
	s.broadcast(input.MatchID, scoring.MsgEventCommitted, event)
	s.broadcast(input.MatchID, scoring.MsgScoreboardUpdated, proj)
	return event, nil
}

// appendEventTx is the one place where append, projection fold and round
// score cache meet, always inside the caller's transaction.
func (s *matchService) appendEventTx(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, round *models.Round, input CommitInput) (*models.ScoringEvent, *models.ScoreboardProjection, error) {
	event := &models.ScoringEvent{
		MatchID:          input.MatchID,
		RoundNumber:      input.RoundNumber,
		TimestampInRound: input.TimestampInRound,
		OfficialID:       input.OfficialID,
		ApproverIDs:      input.ApproverIDs,
		Corner:           input.Corner,
		Type:             input.Type,
		RefSequence:      input.RefSequence,
		Note:             derefNote(input.Note),
	}
	if err := s.eventRepo.Append(ctx, exec, event); err != nil {
		return nil, nil, fmt.Errorf("failed to append scoring event: %w", err)
	}

	proj, err := s.scoreboardRepo.GetByMatch(ctx, exec, input.MatchID)
	if err != nil {
		return nil, nil, err
	}

	var ref *models.ScoringEvent
	if event.Type == models.EventUndo && event.RefSequence != nil {
		events, err := s.eventRepo.ListByMatch(ctx, exec, input.MatchID)
		if err != nil {
			return nil, nil, err
		}
		for i := range events {
			if events[i].Sequence == *event.RefSequence {
				ref = &events[i]
				break
			}
		}
	}

	scoring.Apply(proj, *event, ref)
	scoring.Touch(proj)
	if err := s.scoreboardRepo.Update(ctx, exec, proj); err != nil {
		return nil, nil, err
	}

	// Keep the per-round cache in step for scoring deltas. An undo can
	// land after its round closed, so the compensated round is resolved
	// from the referenced event, not the current one.
	if delta := scoring.ScoreDelta(event.Type); delta != 0 && round != nil && round.RoundNumber == event.RoundNumber {
		red, blue := round.RedScore, round.BlueScore
		switch event.Corner {
		case models.CornerRed:
			red += delta
		case models.CornerBlue:
			blue += delta
		}
		if err := s.roundRepo.UpdateScores(ctx, exec, round.ID, red, blue); err != nil {
			return nil, nil, err
		}
		round.RedScore, round.BlueScore = red, blue
	} else if ref != nil {
		if delta := scoring.ScoreDelta(ref.Type); delta != 0 {
			refRound, err := s.roundRepo.GetByMatchAndNumber(ctx, exec, input.MatchID, ref.RoundNumber)
			if err != nil {
				return nil, nil, err
			}
			red, blue := refRound.RedScore, refRound.BlueScore
			switch ref.Corner {
			case models.CornerRed:
				red -= delta
			case models.CornerBlue:
				blue -= delta
			}
			if err := s.roundRepo.UpdateScores(ctx, exec, refRound.ID, red, blue); err != nil {
				return nil, nil, err
			}
		}
	}

	return event, proj, nil
}

// Undo appends a compensating entry for the most recent not-already-
// undone event. Forward-only: there is no redo.
func (s *matchService) Undo(ctx context.Context, matchID, officialID int) (*models.ScoringEvent, error) {
	release, err := s.locks.AcquireTimeout(ctx, matchID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, match.Status)
	}

	events, err := s.eventRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}
	target, ok := scoring.LastUndoable(events)
	if !ok {
		return nil, ErrUndoUnavailable
	}

	return s.CommitHeld(ctx, CommitInput{
		MatchID:     matchID,
		RoundNumber: target.RoundNumber,
		OfficialID:  officialID,
		Corner:      target.Corner,
		Type:        models.EventUndo,
		RefSequence: &target.Sequence,
	})
}

// --- Reads ---

func (s *matchService) GetScoreboard(ctx context.Context, matchID int) (*models.ScoreboardProjection, error) {
	proj, err := s.scoreboardRepo.GetByMatch(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrScoreboardNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return proj, nil
}

func (s *matchService) GetEventHistory(ctx context.Context, matchID int) ([]models.ScoringEvent, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByMatch(ctx, nil, matchID)
}
