package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/repositories"
)

// Broadcaster pushes live updates to match observers. Satisfied by
// *scoring.Hub; nil-safe wrappers below so services can run without one.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgType string, payload interface{})
}

// TxRunner runs a function inside a database transaction. Repositories
// receive the transaction through the SQLExecutor they already accept,
// so the append-event/update-projection pair is one atomic unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

// NewSQLTxRunner wraps a *sql.DB for transactional service work.
func NewSQLTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isValidMatchTransition(current, next models.MatchStatus) bool {
	allowedTransitions := map[models.MatchStatus][]models.MatchStatus{
		models.MatchStatusPending:    {models.MatchStatusInProgress, models.MatchStatusCancelled},
		models.MatchStatusInProgress: {models.MatchStatusPaused, models.MatchStatusCompleted, models.MatchStatusCancelled},
		models.MatchStatusPaused:     {models.MatchStatusInProgress, models.MatchStatusCancelled},
		models.MatchStatusCompleted:  {},
		models.MatchStatusCancelled:  {},
	}
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

func derefNote(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
