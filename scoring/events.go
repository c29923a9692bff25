package scoring

import "github.com/martial-arena/combat-scoring/models"

// ScoreDelta returns the point value an event type contributes to its
// corner's running score. Non-scoring event types contribute zero.
func ScoreDelta(t models.EventType) int {
	switch t {
	case models.EventScoreOne:
		return 1
	case models.EventScoreTwo:
		return 2
	default:
		return 0
	}
}

// Proposable reports whether an event type may be raised by officials
// through consensus voting. Round markers and undo entries are produced
// by the lifecycle itself, never voted on.
func Proposable(t models.EventType) bool {
	switch t {
	case models.EventScoreOne, models.EventScoreTwo, models.EventWarning, models.EventMedicalTimeout:
		return true
	default:
		return false
	}
}

// ValidCorner reports whether a corner value is acceptable on a ledger
// event. Draw is a match result, not an event target.
func ValidCorner(c models.Corner) bool {
	return c == models.CornerRed || c == models.CornerBlue || c == models.CornerNeutral
}
