package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martial-arena/combat-scoring/models"
)

var foldBase = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// evt builds a ledger entry with sequence-derived timestamps so replays
// stay comparable.
func evt(seq int64, round int, typ models.EventType, corner models.Corner) models.ScoringEvent {
	return models.ScoringEvent{
		MatchID:     42,
		RoundNumber: round,
		Sequence:    seq,
		Corner:      corner,
		Type:        typ,
		OfficialID:  1,
		CreatedAt:   foldBase.Add(time.Duration(seq) * time.Second),
	}
}

func undoEvt(seq, refSeq int64, round int, corner models.Corner) models.ScoringEvent {
	e := evt(seq, round, models.EventUndo, corner)
	e.RefSequence = &refSeq
	return e
}

func TestFold_TwoRoundMatch(t *testing.T) {
	events := []models.ScoringEvent{
		evt(1, 1, models.EventRoundStart, models.CornerNeutral),
		evt(2, 1, models.EventScoreTwo, models.CornerRed),
		evt(3, 1, models.EventScoreOne, models.CornerBlue),
		evt(4, 1, models.EventWarning, models.CornerBlue),
		evt(5, 1, models.EventScoreTwo, models.CornerRed),
		evt(6, 1, models.EventRoundEnd, models.CornerNeutral),
		evt(7, 2, models.EventRoundStart, models.CornerNeutral),
		evt(8, 2, models.EventScoreTwo, models.CornerBlue),
		evt(9, 2, models.EventScoreOne, models.CornerRed),
		evt(10, 2, models.EventScoreTwo, models.CornerBlue),
		evt(11, 2, models.EventMedicalTimeout, models.CornerRed),
		evt(12, 2, models.EventScoreTwo, models.CornerBlue),
		evt(13, 2, models.EventRoundEnd, models.CornerNeutral),
	}

	proj := Fold(42, events)

	assert.Equal(t, 42, proj.MatchID)
	assert.Equal(t, 5, proj.RedScore)
	assert.Equal(t, 7, proj.BlueScore)
	assert.Equal(t, 0, proj.RedWarnings)
	assert.Equal(t, 1, proj.BlueWarnings)
	assert.Equal(t, 1, proj.RedMedicalTimeouts)
	assert.Equal(t, 0, proj.BlueMedicalTimeouts)
	assert.Equal(t, int64(13), proj.LastEventSequence)
	assert.Equal(t, events[12].CreatedAt, proj.UpdatedAt)
	assert.Equal(t, models.CornerBlue, Winner(proj))
}

func TestFold_Deterministic(t *testing.T) {
	events := []models.ScoringEvent{
		evt(1, 1, models.EventRoundStart, models.CornerNeutral),
		evt(2, 1, models.EventScoreOne, models.CornerRed),
		evt(3, 1, models.EventScoreTwo, models.CornerBlue),
		undoEvt(4, 3, 1, models.CornerBlue),
		evt(5, 1, models.EventScoreTwo, models.CornerBlue),
	}

	first := Fold(42, events)
	second := Fold(42, events)
	assert.Equal(t, first, second)
}

func TestApply_UndoMatchesReplay(t *testing.T) {
	// Incremental application through Apply must land on the same
	// projection as a full replay, including the undo entry.
	scored := evt(2, 1, models.EventScoreTwo, models.CornerRed)
	events := []models.ScoringEvent{
		evt(1, 1, models.EventRoundStart, models.CornerNeutral),
		scored,
		evt(3, 1, models.EventWarning, models.CornerRed),
		undoEvt(4, 2, 1, models.CornerRed),
	}

	incremental := models.ScoreboardProjection{MatchID: 42}
	for _, e := range events {
		var ref *models.ScoringEvent
		if e.Type == models.EventUndo {
			ref = &scored
		}
		Apply(&incremental, e, ref)
	}

	replayed := Fold(42, events)
	assert.Equal(t, replayed, incremental)
	assert.Equal(t, 0, incremental.RedScore)
	assert.Equal(t, 1, incremental.RedWarnings)
	assert.Equal(t, int64(4), incremental.LastEventSequence)
}

func TestApply_UndoRemovesWarningAndTimeout(t *testing.T) {
	warning := evt(1, 1, models.EventWarning, models.CornerBlue)
	timeout := evt(2, 1, models.EventMedicalTimeout, models.CornerBlue)

	proj := models.ScoreboardProjection{MatchID: 42}
	Apply(&proj, warning, nil)
	Apply(&proj, timeout, nil)
	require.Equal(t, 1, proj.BlueWarnings)
	require.Equal(t, 1, proj.BlueMedicalTimeouts)

	Apply(&proj, undoEvt(3, 2, 1, models.CornerBlue), &timeout)
	Apply(&proj, undoEvt(4, 1, 1, models.CornerBlue), &warning)

	assert.Equal(t, 0, proj.BlueWarnings)
	assert.Equal(t, 0, proj.BlueMedicalTimeouts)
}

func TestRoundScores(t *testing.T) {
	events := []models.ScoringEvent{
		evt(1, 1, models.EventRoundStart, models.CornerNeutral),
		evt(2, 1, models.EventScoreTwo, models.CornerRed),
		evt(3, 1, models.EventScoreOne, models.CornerBlue),
		undoEvt(4, 3, 1, models.CornerBlue),
		evt(5, 1, models.EventRoundEnd, models.CornerNeutral),
		evt(6, 2, models.EventRoundStart, models.CornerNeutral),
		evt(7, 2, models.EventScoreOne, models.CornerBlue),
	}

	red, blue := RoundScores(events, 1)
	assert.Equal(t, 2, red)
	assert.Equal(t, 0, blue, "undone event must not count")

	red, blue = RoundScores(events, 2)
	assert.Equal(t, 0, red)
	assert.Equal(t, 1, blue)

	red, blue = RoundScores(events, 3)
	assert.Zero(t, red)
	assert.Zero(t, blue)
}

func TestLastUndoable(t *testing.T) {
	t.Run("skips round markers", func(t *testing.T) {
		events := []models.ScoringEvent{
			evt(1, 1, models.EventRoundStart, models.CornerNeutral),
			evt(2, 1, models.EventScoreOne, models.CornerRed),
			evt(3, 1, models.EventRoundEnd, models.CornerNeutral),
		}
		target, ok := LastUndoable(events)
		require.True(t, ok)
		assert.Equal(t, int64(2), target.Sequence)
	})

	t.Run("refuses undo of undo", func(t *testing.T) {
		events := []models.ScoringEvent{
			evt(1, 1, models.EventRoundStart, models.CornerNeutral),
			evt(2, 1, models.EventScoreTwo, models.CornerBlue),
			undoEvt(3, 2, 1, models.CornerBlue),
		}
		_, ok := LastUndoable(events)
		assert.False(t, ok)
	})

	t.Run("earlier event undoable after a completed undo", func(t *testing.T) {
		events := []models.ScoringEvent{
			evt(1, 1, models.EventScoreOne, models.CornerRed),
			evt(2, 1, models.EventScoreTwo, models.CornerBlue),
			undoEvt(3, 2, 1, models.CornerBlue),
			evt(4, 1, models.EventScoreOne, models.CornerRed),
		}
		target, ok := LastUndoable(events)
		require.True(t, ok)
		assert.Equal(t, int64(4), target.Sequence)
	})

	t.Run("empty ledger", func(t *testing.T) {
		_, ok := LastUndoable(nil)
		assert.False(t, ok)
	})

	t.Run("only round markers", func(t *testing.T) {
		events := []models.ScoringEvent{
			evt(1, 1, models.EventRoundStart, models.CornerNeutral),
		}
		_, ok := LastUndoable(events)
		assert.False(t, ok)
	})
}

func TestWinner(t *testing.T) {
	assert.Equal(t, models.CornerRed, Winner(models.ScoreboardProjection{RedScore: 9, BlueScore: 7}))
	assert.Equal(t, models.CornerBlue, Winner(models.ScoreboardProjection{RedScore: 3, BlueScore: 4}))
	assert.Equal(t, models.CornerDraw, Winner(models.ScoreboardProjection{RedScore: 6, BlueScore: 6}))
}

func TestReconcile(t *testing.T) {
	events := []models.ScoringEvent{
		evt(1, 1, models.EventScoreTwo, models.CornerRed),
		evt(2, 1, models.EventScoreOne, models.CornerBlue),
	}

	stored := Fold(42, events)
	stored.UpdatedAt = foldBase.Add(time.Hour) // timestamp drift is not a mismatch

	replayed, ok := Reconcile(42, events, stored)
	assert.True(t, ok)
	assert.Equal(t, stored.RedScore, replayed.RedScore)

	stored.BlueScore++ // corrupted row
	_, ok = Reconcile(42, events, stored)
	assert.False(t, ok)
}

func TestScoreDelta(t *testing.T) {
	assert.Equal(t, 1, ScoreDelta(models.EventScoreOne))
	assert.Equal(t, 2, ScoreDelta(models.EventScoreTwo))
	assert.Zero(t, ScoreDelta(models.EventWarning))
	assert.Zero(t, ScoreDelta(models.EventRoundStart))
	assert.Zero(t, ScoreDelta(models.EventUndo))
}

func TestProposable(t *testing.T) {
	assert.True(t, Proposable(models.EventScoreOne))
	assert.True(t, Proposable(models.EventMedicalTimeout))
	assert.False(t, Proposable(models.EventRoundStart))
	assert.False(t, Proposable(models.EventRoundEnd))
	assert.False(t, Proposable(models.EventUndo))
}
