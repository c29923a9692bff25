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
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchCompetitionInvalid = errors.New("match competition reference invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByCompetition(ctx context.Context, competitionID int, status *models.MatchStatus) ([]*models.Match, error)
	UpdateLifecycle(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateReportURL(ctx context.Context, exec SQLExecutor, id int, reportURL string) error
	SoftDelete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, competition_id, weight_class_id, field_id,
	red_athlete_id, blue_athlete_id, red_name, blue_name,
	status, current_round,
	total_rounds, round_duration_seconds, assessor_count, extra_round_allowed, tie_break_policy,
	winner_corner, report_url, started_at, ended_at, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches
			(competition_id, weight_class_id, field_id,
			 red_athlete_id, blue_athlete_id, red_name, blue_name,
			 status, current_round,
			 total_rounds, round_duration_seconds, assessor_count, extra_round_allowed, tie_break_policy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.CompetitionID,
		match.WeightClassID,
		match.FieldID,
		match.RedAthleteID,
		match.BlueAthleteID,
		match.RedName,
		match.BlueName,
		match.Status,
		match.CurrentRound,
		match.TotalRounds,
		match.RoundDurationSeconds,
		match.AssessorCount,
		match.ExtraRoundAllowed,
		match.TieBreakPolicy,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func scanMatch(row interface{ Scan(...interface{}) error }, match *models.Match) error {
	return row.Scan(
		&match.ID,
		&match.CompetitionID,
		&match.WeightClassID,
		&match.FieldID,
		&match.RedAthleteID,
		&match.BlueAthleteID,
		&match.RedName,
		&match.BlueName,
		&match.Status,
		&match.CurrentRound,
		&match.TotalRounds,
		&match.RoundDurationSeconds,
		&match.AssessorCount,
		&match.ExtraRoundAllowed,
		&match.TieBreakPolicy,
		&match.WinnerCorner,
		&match.ReportURL,
		&match.StartedAt,
		&match.EndedAt,
		&match.CreatedAt,
	)
}

// GetByID excludes tombstoned matches; the ledger behind them is retained
// for audit but the match itself disappears from every query.
func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 AND deleted_at IS NULL`

	match := &models.Match{}
	err := scanMatch(exec.QueryRowContext(ctx, query, id), match)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByCompetition(ctx context.Context, competitionID int, status *models.MatchStatus) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE competition_id = $1 AND deleted_at IS NULL`
	args := []interface{}{competitionID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for competition %d: %w", competitionID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := scanMatch(rows, &match); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

// UpdateLifecycle persists the mutable lifecycle fields in one statement.
func (r *postgresMatchRepository) UpdateLifecycle(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		UPDATE matches
		SET status = $1, current_round = $2, winner_corner = $3, started_at = $4, ended_at = $5
		WHERE id = $6 AND deleted_at IS NULL`

	result, err := exec.ExecContext(ctx, query,
		match.Status,
		match.CurrentRound,
		match.WinnerCorner,
		match.StartedAt,
		match.EndedAt,
		match.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateReportURL(ctx context.Context, exec SQLExecutor, id int, reportURL string) error {
	query := `UPDATE matches SET report_url = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := exec.ExecContext(ctx, query, reportURL, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SoftDelete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE matches SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_competition_id_fkey":
			return ErrMatchCompetitionInvalid
		}
	}
	return err
}
