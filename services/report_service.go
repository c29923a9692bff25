package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/repositories"
	"github.com/martial-arena/combat-scoring/storage"
	"golang.org/x/sync/errgroup"
)

// MatchReport is the exported scoresheet: full ledger plus final derived
// state, enough to re-audit the bout offline.
type MatchReport struct {
	Match      *models.Match                `json:"match"`
	Rounds     []*models.Round              `json:"rounds"`
	Scoreboard *models.ScoreboardProjection `json:"scoreboard"`
	Events     []models.ScoringEvent        `json:"events"`
	ExportedAt time.Time                    `json:"exported_at"`
}

// ReportService serializes a completed match's scoresheet and uploads it
// to object storage, recording the public URL on the match.
type ReportService interface {
	ExportMatchReport(ctx context.Context, matchID int) (string, error)
}

type reportService struct {
	matchRepo      repositories.MatchRepository
	roundRepo      repositories.RoundRepository
	eventRepo      repositories.ScoringEventRepository
	scoreboardRepo repositories.ScoreboardRepository
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewReportService(
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	eventRepo repositories.ScoringEventRepository,
	scoreboardRepo repositories.ScoreboardRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportService{
		matchRepo:      matchRepo,
		roundRepo:      roundRepo,
		eventRepo:      eventRepo,
		scoreboardRepo: scoreboardRepo,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *reportService) ExportMatchReport(ctx context.Context, matchID int) (string, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return "", fmt.Errorf("failed to load match %d for report: %w", matchID, err)
	}

	report := MatchReport{Match: match, ExportedAt: time.Now().UTC()}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rounds, err := s.roundRepo.ListByMatch(gCtx, matchID)
		if err == nil {
			report.Rounds = rounds
		}
		return err
	})
	g.Go(func() error {
		events, err := s.eventRepo.ListByMatch(gCtx, nil, matchID)
		if err == nil {
			report.Events = events
		}
		return err
	})
	g.Go(func() error {
		proj, err := s.scoreboardRepo.GetByMatch(gCtx, nil, matchID)
		if err == nil {
			report.Scoreboard = proj
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("failed to gather report data for match %d: %w", matchID, err)
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report for match %d: %w", matchID, err)
	}

	key := fmt.Sprintf("reports/matches/%d/%s.json", matchID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to upload report for match %d: %w", matchID, err)
	}

	if err := s.matchRepo.UpdateReportURL(ctx, nil, matchID, result.Location); err != nil {
		return "", fmt.Errorf("failed to record report url for match %d: %w", matchID, err)
	}

	s.logger.Info("match report exported",
		slog.Int("match_id", matchID),
		slog.String("url", result.Location),
	)
	return result.Location, nil
}
