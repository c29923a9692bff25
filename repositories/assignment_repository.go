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
	ErrAssignmentNotFound         = errors.New("assignment not found")
	ErrAssignmentPositionConflict = errors.New("position is already held for this match")
	ErrAssignmentUserConflict     = errors.New("official already holds a position for this match")
	ErrAssignmentMatchInvalid     = errors.New("assignment match reference invalid")
)

type AssignmentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, assignment *models.Assignment) error
	Delete(ctx context.Context, id int) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.Assignment, error)
	GetByMatchAndUser(ctx context.Context, matchID, userID int) (*models.Assignment, error)
}

type postgresAssignmentRepository struct {
	db *sql.DB
}

func NewPostgresAssignmentRepository(db *sql.DB) AssignmentRepository {
	return &postgresAssignmentRepository{db: db}
}

func (r *postgresAssignmentRepository) Create(ctx context.Context, exec SQLExecutor, assignment *models.Assignment) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO assignments (match_id, user_id, position, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		assignment.MatchID,
		assignment.UserID,
		assignment.Position,
		assignment.Role,
	).Scan(&assignment.ID, &assignment.CreatedAt)

	return r.handleAssignmentError(err)
}

func (r *postgresAssignmentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrAssignmentNotFound)
}

func (r *postgresAssignmentRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.Assignment, error) {
	query := `
		SELECT id, match_id, user_id, position, role, created_at
		FROM assignments
		WHERE match_id = $1
		ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments for match %d: %w", matchID, err)
	}
	defer rows.Close()

	assignments := make([]*models.Assignment, 0)
	for rows.Next() {
		var a models.Assignment
		if scanErr := rows.Scan(&a.ID, &a.MatchID, &a.UserID, &a.Position, &a.Role, &a.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan assignment row: %w", scanErr)
		}
		assignments = append(assignments, &a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during assignment rows iteration: %w", err)
	}
	return assignments, nil
}

func (r *postgresAssignmentRepository) GetByMatchAndUser(ctx context.Context, matchID, userID int) (*models.Assignment, error) {
	query := `
		SELECT id, match_id, user_id, position, role, created_at
		FROM assignments
		WHERE match_id = $1 AND user_id = $2`

	a := &models.Assignment{}
	err := r.db.QueryRowContext(ctx, query, matchID, userID).Scan(
		&a.ID, &a.MatchID, &a.UserID, &a.Position, &a.Role, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to scan assignment for match %d user %d: %w", matchID, userID, err)
	}
	return a, nil
}

func (r *postgresAssignmentRepository) handleAssignmentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "assignments_match_id_position_key":
			return ErrAssignmentPositionConflict
		case "assignments_match_id_user_id_key":
			return ErrAssignmentUserConflict
		case "assignments_match_id_fkey":
			return ErrAssignmentMatchInvalid
		}
	}
	return err
}
