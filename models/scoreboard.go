package models

import "time"

// ScoreboardProjection is the single materialized scoreboard row per match.
// It is derived state: replaying all non-undone ledger events in append
// order must reproduce it exactly.
type ScoreboardProjection struct {
	MatchID             int       `json:"match_id"`
	RedScore            int       `json:"red_score"`
	BlueScore           int       `json:"blue_score"`
	RedWarnings         int       `json:"red_warnings"`
	BlueWarnings        int       `json:"blue_warnings"`
	RedMedicalTimeouts  int       `json:"red_medical_timeouts"`
	BlueMedicalTimeouts int       `json:"blue_medical_timeouts"`
	LastEventSequence   int64     `json:"last_event_sequence"`
	UpdatedAt           time.Time `json:"updated_at"`
}
