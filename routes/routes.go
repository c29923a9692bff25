package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/martial-arena/combat-scoring/handlers"
	"github.com/martial-arena/combat-scoring/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	matchHandler *handlers.MatchHandler,
	scoreboardHandler *handlers.ScoreboardHandler,
	voteHandler *handlers.VoteHandler,
	assignmentHandler *handlers.AssignmentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	// Live scoreboard stream, public.
	router.Get("/ws/matches/{matchID}", webSocketHandler.ServeWs)

	router.Route("/competitions/{competitionID}/matches", func(r chi.Router) {
		r.Get("/", matchHandler.ListMatchesHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize(middleware.RoleAdmin, middleware.RoleOperator))
			r.Post("/", matchHandler.CreateMatchHandler)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		// Public reads: scoreboard, history, rounds, voting status.
		r.Get("/", matchHandler.GetMatchHandler)
		r.Get("/scoreboard", scoreboardHandler.GetScoreboardHandler)
		r.Get("/events", scoreboardHandler.GetEventHistoryHandler)
		r.Get("/rounds", matchHandler.ListRoundsHandler)
		r.Get("/votes", voteHandler.GetVotingStatusHandler)

		// Match operation: table officials and admins.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize(middleware.RoleAdmin, middleware.RoleOperator))

			r.Post("/start", matchHandler.StartMatchHandler)
			r.Post("/pause", matchHandler.PauseMatchHandler)
			r.Post("/resume", matchHandler.ResumeMatchHandler)
			r.Post("/end", matchHandler.EndMatchHandler)
			r.Post("/cancel", matchHandler.CancelMatchHandler)
			r.Post("/rounds/start", matchHandler.StartRoundHandler)
			r.Post("/rounds/end", matchHandler.EndRoundHandler)
			r.Post("/events", scoreboardHandler.RecordEventDirectHandler)
			r.Post("/undo", scoreboardHandler.UndoLastEventHandler)
			r.Delete("/", matchHandler.DeleteMatchHandler)

			r.Post("/assignments", assignmentHandler.AssignOfficialHandler)
			r.Get("/assignments", assignmentHandler.ListAssignmentsHandler)
		})

		// Voting: any authenticated official; assignment is checked by
		// the coordinator itself.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))

			r.Post("/votes", voteHandler.SubmitVoteHandler)
			r.Delete("/votes", voteHandler.ResetVotesHandler)
		})
	})

	router.Route("/assignments/{assignmentID}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize(middleware.RoleAdmin, middleware.RoleOperator))
			r.Delete("/", assignmentHandler.RemoveAssignmentHandler)
		})
	})
}
