package models

import "time"

type EventType string

const (
	EventScoreOne       EventType = "score_1"
	EventScoreTwo       EventType = "score_2"
	EventWarning        EventType = "warning"
	EventMedicalTimeout EventType = "medical_timeout"
	EventRoundStart     EventType = "round_start"
	EventRoundEnd       EventType = "round_end"
	EventUndo           EventType = "undo"
)

// ScoringEvent is one immutable ledger entry. Sequence is assigned at
// commit time and is the total order for the match; TimestampInRound is
// officiating-clock metadata only and carries no ordering guarantee.
type ScoringEvent struct {
	ID          int   `json:"id"`
	MatchID     int   `json:"match_id"`
	RoundNumber int   `json:"round_number"`
	Sequence    int64 `json:"sequence"`

	// Officiating clock, seconds elapsed within the round.
	TimestampInRound int `json:"timestamp_in_round"`

	// OfficialID is the acting official; ApproverIDs are the assessors
	// whose consensus admitted the event.
	OfficialID  int     `json:"official_id"`
	ApproverIDs []int64 `json:"approver_ids,omitempty"`

	Corner Corner    `json:"corner"`
	Type   EventType `json:"type"`

	// RefSequence points at the cancelled event for undo entries.
	RefSequence *int64  `json:"ref_sequence,omitempty"`
	Note        *string `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
