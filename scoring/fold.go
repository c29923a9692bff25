package scoring

import (
	"time"

	"github.com/martial-arena/combat-scoring/models"
)

// Apply folds a single event into the projection in place. It is the only
// place projection arithmetic lives; the commit path and full replay both
// go through it so the two can never drift apart.
//
// Undo entries subtract the referenced event's original contribution, so
// the caller must pass the referenced event as ref when evt is an undo.
func Apply(proj *models.ScoreboardProjection, evt models.ScoringEvent, ref *models.ScoringEvent) {
	switch evt.Type {
	case models.EventUndo:
		if ref != nil {
			applyContribution(proj, *ref, -1)
		}
	default:
		applyContribution(proj, evt, +1)
	}
	proj.LastEventSequence = evt.Sequence
	proj.UpdatedAt = evt.CreatedAt
}

func applyContribution(proj *models.ScoreboardProjection, evt models.ScoringEvent, sign int) {
	if d := ScoreDelta(evt.Type); d != 0 {
		switch evt.Corner {
		case models.CornerRed:
			proj.RedScore += sign * d
		case models.CornerBlue:
			proj.BlueScore += sign * d
		}
		return
	}
	switch evt.Type {
	case models.EventWarning:
		switch evt.Corner {
		case models.CornerRed:
			proj.RedWarnings += sign
		case models.CornerBlue:
			proj.BlueWarnings += sign
		}
	case models.EventMedicalTimeout:
		switch evt.Corner {
		case models.CornerRed:
			proj.RedMedicalTimeouts += sign
		case models.CornerBlue:
			proj.BlueMedicalTimeouts += sign
		}
	}
	// Round markers contribute nothing to totals.
}

// Fold replays a full, sequence-ordered ledger into a fresh projection.
// Deterministic: the same event list always produces the same projection.
func Fold(matchID int, events []models.ScoringEvent) models.ScoreboardProjection {
	proj := models.ScoreboardProjection{MatchID: matchID}
	bySeq := make(map[int64]*models.ScoringEvent, len(events))
	for i := range events {
		bySeq[events[i].Sequence] = &events[i]
	}
	for _, evt := range events {
		var ref *models.ScoringEvent
		if evt.Type == models.EventUndo && evt.RefSequence != nil {
			ref = bySeq[*evt.RefSequence]
		}
		Apply(&proj, evt, ref)
	}
	return proj
}

// UndoneSequences returns the set of sequence numbers cancelled by a
// later undo entry.
func UndoneSequences(events []models.ScoringEvent) map[int64]bool {
	undone := make(map[int64]bool)
	for _, evt := range events {
		if evt.Type == models.EventUndo && evt.RefSequence != nil {
			undone[*evt.RefSequence] = true
		}
	}
	return undone
}

// LastUndoable walks the ledger backward and returns the most recent
// event eligible for undo. Round markers and undo entries are skipped;
// only the latest proposable entry qualifies, and only if it has not
// already been cancelled: undo of an undo is not a thing, compensation
// is strictly forward-only.
func LastUndoable(events []models.ScoringEvent) (models.ScoringEvent, bool) {
	undone := UndoneSequences(events)
	for i := len(events) - 1; i >= 0; i-- {
		evt := events[i]
		if !Proposable(evt.Type) {
			continue
		}
		if undone[evt.Sequence] {
			return models.ScoringEvent{}, false
		}
		return evt, true
	}
	return models.ScoringEvent{}, false
}

// RoundScores folds only the given round's non-undone events into a
// red/blue pair, used to cache per-round scores on round completion.
func RoundScores(events []models.ScoringEvent, roundNumber int) (red, blue int) {
	undone := UndoneSequences(events)
	for _, evt := range events {
		if evt.RoundNumber != roundNumber || evt.Type == models.EventUndo || undone[evt.Sequence] {
			continue
		}
		d := ScoreDelta(evt.Type)
		switch evt.Corner {
		case models.CornerRed:
			red += d
		case models.CornerBlue:
			blue += d
		}
	}
	return red, blue
}

// Winner compares projection totals. Returns draw on equal scores; the
// tie-break resolution itself is external and only recorded here.
func Winner(proj models.ScoreboardProjection) models.Corner {
	switch {
	case proj.RedScore > proj.BlueScore:
		return models.CornerRed
	case proj.BlueScore > proj.RedScore:
		return models.CornerBlue
	default:
		return models.CornerDraw
	}
}

// Reconcile recomputes the projection from the ledger and reports whether
// it matches the stored row, ignoring the update timestamp. Used by the
// out-of-process consistency check.
func Reconcile(matchID int, events []models.ScoringEvent, stored models.ScoreboardProjection) (models.ScoreboardProjection, bool) {
	replayed := Fold(matchID, events)
	replayed.UpdatedAt = stored.UpdatedAt
	return replayed, replayed == stored
}

// Touch stamps a projection as updated now. Split out so tests can fold
// without fighting wall-clock time.
func Touch(proj *models.ScoreboardProjection) {
	proj.UpdatedAt = time.Now().UTC()
}
