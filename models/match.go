package models

import "time"

type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusPaused     MatchStatus = "paused"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

type Corner string

const (
	CornerRed     Corner = "red"
	CornerBlue    Corner = "blue"
	CornerNeutral Corner = "neutral"
	CornerDraw    Corner = "draw"
)

// Match is one bout between a red and a blue corner. Competition, weight
// class and field references are opaque foreign keys owned by the
// administrative side of the system.
type Match struct {
	ID            int         `json:"id"`
	CompetitionID int         `json:"competition_id"`
	WeightClassID *int        `json:"weight_class_id,omitempty"`
	FieldID       *int        `json:"field_id,omitempty"`
	RedAthleteID  int         `json:"red_athlete_id"`
	BlueAthleteID int         `json:"blue_athlete_id"`
	RedName       string      `json:"red_name"`
	BlueName      string      `json:"blue_name"`
	Status        MatchStatus `json:"status"`
	CurrentRound  int         `json:"current_round"`

	// Configuration snapshot: read once when the match starts,
	// immutable for the rest of the match's lifetime.
	TotalRounds          int    `json:"total_rounds"`
	RoundDurationSeconds int    `json:"round_duration_seconds"`
	AssessorCount        int    `json:"assessor_count"`
	ExtraRoundAllowed    bool   `json:"extra_round_allowed"`
	TieBreakPolicy       string `json:"tie_break_policy"`

	WinnerCorner *Corner    `json:"winner_corner,omitempty"`
	ReportURL    *string    `json:"report_url,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"-"`
}

// Terminal reports whether the status admits no further transitions.
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCancelled
}
