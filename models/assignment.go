package models

import "time"

type OfficialRole string

const (
	RoleAssessor OfficialRole = "assessor"
	RoleJudger   OfficialRole = "judger"
)

// Positions 1-5 are assessors, position 6 is the judger.
const (
	MinAssessorPosition = 1
	MaxAssessorPosition = 5
	JudgerPosition      = 6
)

// Assignment binds an official to a match at a numbered position.
// Official identities are owned externally; the scoring engine only
// reads assignments.
type Assignment struct {
	ID        int          `json:"id"`
	MatchID   int          `json:"match_id"`
	UserID    int          `json:"user_id"`
	Position  int          `json:"position"`
	Role      OfficialRole `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
}

// RoleForPosition returns the role a position carries, or "" for an
// invalid position.
func RoleForPosition(position int) OfficialRole {
	switch {
	case position >= MinAssessorPosition && position <= MaxAssessorPosition:
		return RoleAssessor
	case position == JudgerPosition:
		return RoleJudger
	default:
		return ""
	}
}
