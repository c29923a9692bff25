package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/martial-arena/combat-scoring/config"
	"github.com/martial-arena/combat-scoring/db"
	"github.com/martial-arena/combat-scoring/handlers"
	"github.com/martial-arena/combat-scoring/repositories"
	api "github.com/martial-arena/combat-scoring/routes"
	"github.com/martial-arena/combat-scoring/scoring"
	"github.com/martial-arena/combat-scoring/services"
	"github.com/martial-arena/combat-scoring/storage"
)

const voteSweepInterval = 30 * time.Second // how often stale pending votes are expired

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Report uploads are optional: without R2 credentials matches still
	// complete, they just skip the scoresheet export.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	wsHub := scoring.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	eventRepo := repositories.NewPostgresScoringEventRepository(dbConn)
	scoreboardRepo := repositories.NewPostgresScoreboardRepository(dbConn)
	assignmentRepo := repositories.NewPostgresAssignmentRepository(dbConn)
	logger.Info("repositories initialized")

	txRunner := services.NewSQLTxRunner(dbConn)
	locks := services.NewMatchLocks()

	var reportService services.ReportService
	if uploader != nil {
		reportService = services.NewReportService(matchRepo, roundRepo, eventRepo, scoreboardRepo, uploader, logger)
	}

	matchService := services.NewMatchService(
		txRunner,
		matchRepo,
		roundRepo,
		eventRepo,
		scoreboardRepo,
		locks,
		wsHub,
		reportService,
		logger,
		cfg.CommitLockWait,
	)
	voteService := services.NewVoteService(
		matchService,
		assignmentRepo,
		locks,
		wsHub,
		logger,
		cfg.CommitLockWait,
	)
	assignmentService := services.NewAssignmentService(assignmentRepo, matchRepo, logger)
	logger.Info("services initialized")

	matchHandler := handlers.NewMatchHandler(matchService)
	scoreboardHandler := handlers.NewScoreboardHandler(matchService)
	voteHandler := handlers.NewVoteHandler(voteService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		matchHandler,
		scoreboardHandler,
		voteHandler,
		assignmentHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Sweeper: drop pending votes that outlived their round.
	g.Go(func() error {
		ticker := time.NewTicker(voteSweepInterval)
		defer ticker.Stop()
		logger.Info("vote expiry sweeper started", slog.Duration("interval", voteSweepInterval))

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				sweepPendingVotes(gCtx, logger, voteService)
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

// sweepPendingVotes visits every match with an in-memory tally and lets
// the vote service decide whether it went stale.
func sweepPendingVotes(ctx context.Context, logger *slog.Logger, voteService services.VoteService) {
	for _, matchID := range voteService.TrackedMatches() {
		if err := voteService.ExpireRound(ctx, matchID); err != nil {
			logger.Error("sweeper: failed to expire votes", slog.Int("match_id", matchID), slog.Any("error", err))
		}
	}
}
