package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/repositories"
)

// AssignmentService is the registry binding officials to match positions.
// Positions 1-5 are assessors, 6 is the judger. Changes take effect for
// future votes only; committed events and already-cast pending votes are
// historical facts.
type AssignmentService interface {
	// AssignOfficial seats an official. A declared role must agree with
	// the position; an empty role is derived from it.
	AssignOfficial(ctx context.Context, matchID, userID, position int, declaredRole models.OfficialRole) (*models.Assignment, error)
	RemoveAssignment(ctx context.Context, id int) error
	ListAssignments(ctx context.Context, matchID int) ([]*models.Assignment, error)
	AssessorsFor(ctx context.Context, matchID int) ([]*models.Assignment, error)
	JudgerFor(ctx context.Context, matchID int) (*models.Assignment, error)
}

type assignmentService struct {
	assignmentRepo repositories.AssignmentRepository
	matchRepo      repositories.MatchRepository
	logger         *slog.Logger
}

func NewAssignmentService(
	assignmentRepo repositories.AssignmentRepository,
	matchRepo repositories.MatchRepository,
	logger *slog.Logger,
) AssignmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		matchRepo:      matchRepo,
		logger:         logger,
	}
}

func (s *assignmentService) AssignOfficial(ctx context.Context, matchID, userID, position int, declaredRole models.OfficialRole) (*models.Assignment, error) {
	role := models.RoleForPosition(position)
	if role == "" {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPosition, position)
	}
	if declaredRole != "" && declaredRole != role {
		return nil, fmt.Errorf("%w: position %d carries role %s, got %s", ErrPositionRoleMismatch, position, role, declaredRole)
	}
	if _, err := s.matchRepo.GetByID(ctx, nil, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	assignment := &models.Assignment{
		MatchID:  matchID,
		UserID:   userID,
		Position: position,
		Role:     role,
	}
	if err := s.assignmentRepo.Create(ctx, nil, assignment); err != nil {
		if errors.Is(err, repositories.ErrAssignmentPositionConflict) ||
			errors.Is(err, repositories.ErrAssignmentUserConflict) {
			return nil, fmt.Errorf("%w: %v", ErrAssignmentConflict, err)
		}
		return nil, err
	}

	s.logger.Info("official assigned",
		slog.Int("match_id", matchID),
		slog.Int("user_id", userID),
		slog.Int("position", position),
		slog.String("role", string(role)),
	)
	return assignment, nil
}

func (s *assignmentService) RemoveAssignment(ctx context.Context, id int) error {
	if err := s.assignmentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrAssignmentNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *assignmentService) ListAssignments(ctx context.Context, matchID int) ([]*models.Assignment, error) {
	return s.assignmentRepo.ListByMatch(ctx, matchID)
}

func (s *assignmentService) AssessorsFor(ctx context.Context, matchID int) ([]*models.Assignment, error) {
	assignments, err := s.assignmentRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	assessors := make([]*models.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.Role == models.RoleAssessor {
			assessors = append(assessors, a)
		}
	}
	return assessors, nil
}

func (s *assignmentService) JudgerFor(ctx context.Context, matchID int) (*models.Assignment, error) {
	assignments, err := s.assignmentRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if a.Role == models.RoleJudger {
			return a, nil
		}
	}
	return nil, ErrNotFound
}
