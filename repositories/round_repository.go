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
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundMatchInvalid = errors.New("round match reference invalid")
	ErrRoundConflict     = errors.New("round number already exists for match")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.Round) error
	GetByMatchAndNumber(ctx context.Context, exec SQLExecutor, matchID, roundNumber int) (*models.Round, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.Round, error)
	UpdateLifecycle(ctx context.Context, exec SQLExecutor, round *models.Round) error
	UpdateScores(ctx context.Context, exec SQLExecutor, id int, redScore, blueScore int) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

const roundColumns = `
	id, match_id, round_number, round_type, status,
	red_score, blue_score, planned_duration_seconds, actual_duration_seconds,
	started_at, ended_at, created_at`

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	query := `
		INSERT INTO rounds
			(match_id, round_number, round_type, status,
			 red_score, blue_score, planned_duration_seconds, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		round.MatchID,
		round.RoundNumber,
		round.RoundType,
		round.Status,
		round.RedScore,
		round.BlueScore,
		round.PlannedDurationSeconds,
		round.StartedAt,
	).Scan(&round.ID, &round.CreatedAt)

	return r.handleRoundError(err)
}

func scanRound(row interface{ Scan(...interface{}) error }, round *models.Round) error {
	return row.Scan(
		&round.ID,
		&round.MatchID,
		&round.RoundNumber,
		&round.RoundType,
		&round.Status,
		&round.RedScore,
		&round.BlueScore,
		&round.PlannedDurationSeconds,
		&round.ActualDurationSeconds,
		&round.StartedAt,
		&round.EndedAt,
		&round.CreatedAt,
	)
}

func (r *postgresRoundRepository) GetByMatchAndNumber(ctx context.Context, exec SQLExecutor, matchID, roundNumber int) (*models.Round, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE match_id = $1 AND round_number = $2`

	round := &models.Round{}
	err := scanRound(exec.QueryRowContext(ctx, query, matchID, roundNumber), round)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan round %d of match %d: %w", roundNumber, matchID, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE match_id = $1 ORDER BY round_number ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds for match %d: %w", matchID, err)
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	for rows.Next() {
		var round models.Round
		if scanErr := scanRound(rows, &round); scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, &round)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}
	return rounds, nil
}

func (r *postgresRoundRepository) UpdateLifecycle(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	query := `
		UPDATE rounds
		SET status = $1, started_at = $2, ended_at = $3, actual_duration_seconds = $4
		WHERE id = $5`

	result, err := exec.ExecContext(ctx, query,
		round.Status,
		round.StartedAt,
		round.EndedAt,
		round.ActualDurationSeconds,
		round.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

// UpdateScores writes the cached per-round fold result. The ledger stays
// authoritative; this is a read-optimized copy.
func (r *postgresRoundRepository) UpdateScores(ctx context.Context, exec SQLExecutor, id int, redScore, blueScore int) error {
	query := `UPDATE rounds SET red_score = $1, blue_score = $2 WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, redScore, blueScore, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) handleRoundError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "rounds_match_id_fkey":
			return ErrRoundMatchInvalid
		case "rounds_match_id_round_number_key":
			return ErrRoundConflict
		}
	}
	return err
}
