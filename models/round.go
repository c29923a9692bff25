package models

import "time"

type RoundType string

const (
	RoundTypeMain  RoundType = "main"
	RoundTypeExtra RoundType = "extra"
)

type RoundStatus string

const (
	RoundStatusPending    RoundStatus = "pending"
	RoundStatusInProgress RoundStatus = "in_progress"
	RoundStatusCompleted  RoundStatus = "completed"
)

// Round is one numbered period within a match. Rounds are created lazily
// when they start. Once completed a round is immutable except for the
// score fields, which are recomputed from the ledger.
type Round struct {
	ID          int         `json:"id"`
	MatchID     int         `json:"match_id"`
	RoundNumber int         `json:"round_number"`
	RoundType   RoundType   `json:"round_type"`
	Status      RoundStatus `json:"status"`
	RedScore    int         `json:"red_score"`
	BlueScore   int         `json:"blue_score"`

	PlannedDurationSeconds int  `json:"planned_duration_seconds"`
	ActualDurationSeconds  *int `json:"actual_duration_seconds,omitempty"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
