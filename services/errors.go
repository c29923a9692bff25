package services

import "errors"

// Sentinel errors shared across services and mapped to HTTP statuses in
// the handlers package.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Lifecycle violations. Never retried automatically.
	ErrInvalidState         = errors.New("match or round is not in an accepting state")
	ErrMatchAlreadyStarted  = errors.New("match has already started")
	ErrMatchNotInProgress   = errors.New("match is not in progress")
	ErrMatchNotPaused       = errors.New("match is not paused")
	ErrRoundNotInProgress   = errors.New("no round is in progress")
	ErrRoundStillInProgress = errors.New("current round is still in progress")
	ErrPreviousRoundNotDone = errors.New("previous round is not completed")
	ErrAllRoundsPlayed      = errors.New("all permitted rounds have been played")
	ErrExtraRoundNotAllowed = errors.New("extra round is not allowed for this match")
	ErrTieBreakRequired     = errors.New("scores are tied, external tie-break resolution required")

	// Voting.
	ErrUnauthorizedVoter  = errors.New("official has no assignment for this match")
	ErrInvalidProposal    = errors.New("proposed action is not a votable event type")
	ErrConcurrencyTimeout = errors.New("match commit path is busy, retry the request")

	// Undo.
	ErrUndoUnavailable = errors.New("no eligible event to undo")

	// Assignments.
	ErrInvalidPosition      = errors.New("position must be between 1 and 6")
	ErrPositionRoleMismatch = errors.New("role does not match the position")
	ErrAssignmentConflict   = errors.New("official or position already assigned for this match")

	// Configuration.
	ErrInvalidMatchConfig = errors.New("invalid match configuration")
)
