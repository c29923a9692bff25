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
	ErrScoreboardNotFound = errors.New("scoreboard projection not found")
	ErrScoreboardConflict = errors.New("scoreboard projection already exists for match")
)

type ScoreboardRepository interface {
	Create(ctx context.Context, exec SQLExecutor, proj *models.ScoreboardProjection) error
	GetByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.ScoreboardProjection, error)
	Update(ctx context.Context, exec SQLExecutor, proj *models.ScoreboardProjection) error
	Delete(ctx context.Context, exec SQLExecutor, matchID int) error
}

type postgresScoreboardRepository struct {
	db *sql.DB
}

func NewPostgresScoreboardRepository(db *sql.DB) ScoreboardRepository {
	return &postgresScoreboardRepository{db: db}
}

func (r *postgresScoreboardRepository) Create(ctx context.Context, exec SQLExecutor, proj *models.ScoreboardProjection) error {
	query := `
		INSERT INTO scoreboard_projections
			(match_id, red_score, blue_score, red_warnings, blue_warnings,
			 red_medical_timeouts, blue_medical_timeouts, last_event_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING updated_at`

	err := exec.QueryRowContext(ctx, query,
		proj.MatchID,
		proj.RedScore,
		proj.BlueScore,
		proj.RedWarnings,
		proj.BlueWarnings,
		proj.RedMedicalTimeouts,
		proj.BlueMedicalTimeouts,
		proj.LastEventSequence,
	).Scan(&proj.UpdatedAt)

	return r.handleScoreboardError(err)
}

// GetByMatch is a point read of the latest committed row; observers never
// block on the commit path.
func (r *postgresScoreboardRepository) GetByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.ScoreboardProjection, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT match_id, red_score, blue_score, red_warnings, blue_warnings,
		       red_medical_timeouts, blue_medical_timeouts, last_event_sequence, updated_at
		FROM scoreboard_projections
		WHERE match_id = $1`

	proj := &models.ScoreboardProjection{}
	err := exec.QueryRowContext(ctx, query, matchID).Scan(
		&proj.MatchID,
		&proj.RedScore,
		&proj.BlueScore,
		&proj.RedWarnings,
		&proj.BlueWarnings,
		&proj.RedMedicalTimeouts,
		&proj.BlueMedicalTimeouts,
		&proj.LastEventSequence,
		&proj.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoreboardNotFound
		}
		return nil, fmt.Errorf("failed to scan scoreboard for match %d: %w", matchID, err)
	}
	return proj, nil
}

func (r *postgresScoreboardRepository) Update(ctx context.Context, exec SQLExecutor, proj *models.ScoreboardProjection) error {
	query := `
		UPDATE scoreboard_projections
		SET red_score = $1, blue_score = $2, red_warnings = $3, blue_warnings = $4,
		    red_medical_timeouts = $5, blue_medical_timeouts = $6,
		    last_event_sequence = $7, updated_at = NOW()
		WHERE match_id = $8`

	result, err := exec.ExecContext(ctx, query,
		proj.RedScore,
		proj.BlueScore,
		proj.RedWarnings,
		proj.BlueWarnings,
		proj.RedMedicalTimeouts,
		proj.BlueMedicalTimeouts,
		proj.LastEventSequence,
		proj.MatchID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScoreboardNotFound)
}

func (r *postgresScoreboardRepository) Delete(ctx context.Context, exec SQLExecutor, matchID int) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM scoreboard_projections WHERE match_id = $1`, matchID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScoreboardNotFound)
}

func (r *postgresScoreboardRepository) handleScoreboardError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "scoreboard_projections_pkey":
			return ErrScoreboardConflict
		case "scoreboard_projections_match_id_fkey":
			return ErrMatchNotFound
		}
	}
	return err
}
