package handlers

import (
	"context"
	"net/http"

	"github.com/martial-arena/combat-scoring/middleware"
	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) CreateMatchHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.CreateMatch(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var statusFilter *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		statusFilter = &status
	}

	matches, err := h.matchService.ListMatchesByCompetition(r.Context(), competitionID, statusFilter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) DeleteMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.DeleteMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Lifecycle ---

func (h *MatchHandler) StartMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(matchID int) (interface{}, error) {
		return h.matchService.StartMatch(r.Context(), matchID)
	})
}

func (h *MatchHandler) PauseMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(matchID int) (interface{}, error) {
		return h.matchService.PauseMatch(r.Context(), matchID)
	})
}

func (h *MatchHandler) ResumeMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(matchID int) (interface{}, error) {
		return h.matchService.ResumeMatch(r.Context(), matchID)
	})
}

func (h *MatchHandler) CancelMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(matchID int) (interface{}, error) {
		return h.matchService.CancelMatch(r.Context(), matchID)
	})
}

func (h *MatchHandler) lifecycle(w http.ResponseWriter, r *http.Request, fn func(matchID int) (interface{}, error)) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := fn(matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type endMatchRequest struct {
	TieBreakWinner *models.Corner `json:"tie_break_winner"`
}

func (h *MatchHandler) EndMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	officialID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}

	var input endMatchRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	match, err := h.matchService.EndMatch(r.Context(), matchID, officialID, input.TieBreakWinner)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) StartRoundHandler(w http.ResponseWriter, r *http.Request) {
	h.roundLifecycle(w, r, h.matchService.StartRound)
}

func (h *MatchHandler) EndRoundHandler(w http.ResponseWriter, r *http.Request) {
	h.roundLifecycle(w, r, h.matchService.EndRound)
}

func (h *MatchHandler) roundLifecycle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, matchID, officialID int) (*models.Round, error)) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	officialID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}

	round, err := fn(r.Context(), matchID, officialID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"round": round}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListRoundsHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rounds, err := h.matchService.ListRounds(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"rounds": rounds}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
