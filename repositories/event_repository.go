package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/martial-arena/combat-scoring/models"
)

var (
	ErrEventMatchInvalid     = errors.New("scoring event match reference invalid")
	ErrEventSequenceConflict = errors.New("scoring event sequence already taken")
)

// ScoringEventRepository is the append-only ledger. There is no update
// and no delete: corrections happen through compensating undo entries.
type ScoringEventRepository interface {
	// Append assigns the next per-match sequence number and inserts the
	// event. Callers must hold the match commit path; the unique
	// (match_id, sequence) constraint backstops that assumption.
	Append(ctx context.Context, exec SQLExecutor, event *models.ScoringEvent) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.ScoringEvent, error)
	MaxSequence(ctx context.Context, exec SQLExecutor, matchID int) (int64, error)
}

type postgresScoringEventRepository struct {
	db *sql.DB
}

func NewPostgresScoringEventRepository(db *sql.DB) ScoringEventRepository {
	return &postgresScoringEventRepository{db: db}
}

func (r *postgresScoringEventRepository) Append(ctx context.Context, exec SQLExecutor, event *models.ScoringEvent) error {
	query := `
		INSERT INTO scoring_events
			(match_id, round_number, sequence, timestamp_in_round,
			 official_id, approver_ids, corner, event_type, ref_sequence, note)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(sequence), 0) + 1 FROM scoring_events WHERE match_id = $1),
			$3, $4, $5, $6, $7, $8, $9)
		RETURNING id, sequence, created_at`

	err := exec.QueryRowContext(ctx, query,
		event.MatchID,
		event.RoundNumber,
		event.TimestampInRound,
		event.OfficialID,
		pq.Array(event.ApproverIDs),
		event.Corner,
		event.Type,
		event.RefSequence,
		event.Note,
	).Scan(&event.ID, &event.Sequence, &event.CreatedAt)

	return r.handleEventError(err)
}

func (r *postgresScoringEventRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.ScoringEvent, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT id, match_id, round_number, sequence, timestamp_in_round,
		       official_id, approver_ids, corner, event_type, ref_sequence, note, created_at
		FROM scoring_events
		WHERE match_id = $1
		ORDER BY sequence ASC`

	rows, err := exec.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scoring events for match %d: %w", matchID, err)
	}
	defer rows.Close()

	events := make([]models.ScoringEvent, 0)
	for rows.Next() {
		var event models.ScoringEvent
		if scanErr := rows.Scan(
			&event.ID,
			&event.MatchID,
			&event.RoundNumber,
			&event.Sequence,
			&event.TimestampInRound,
			&event.OfficialID,
			pq.Array(&event.ApproverIDs),
			&event.Corner,
			&event.Type,
			&event.RefSequence,
			&event.Note,
			&event.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan scoring event row: %w", scanErr)
		}
		events = append(events, event)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during scoring event rows iteration: %w", err)
	}
	return events, nil
}

func (r *postgresScoringEventRepository) MaxSequence(ctx context.Context, exec SQLExecutor, matchID int) (int64, error) {
	if exec == nil {
		exec = r.db
	}
	var max int64
	err := exec.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM scoring_events WHERE match_id = $1`, matchID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max sequence for match %d: %w", matchID, err)
	}
	return max, nil
}

func (r *postgresScoringEventRepository) handleEventError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "scoring_events_match_id_fkey":
			return ErrEventMatchInvalid
		case "scoring_events_match_id_sequence_key":
			return ErrEventSequenceConflict
		}
	}
	return err
}
