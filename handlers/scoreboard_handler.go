package handlers

import (
	"net/http"

	"github.com/martial-arena/combat-scoring/middleware"
	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/services"
)

// ScoreboardHandler exposes the projection reads, the event history, the
// privileged direct-record path and undo.
type ScoreboardHandler struct {
	matchService services.MatchService
}

func NewScoreboardHandler(matchService services.MatchService) *ScoreboardHandler {
	return &ScoreboardHandler{matchService: matchService}
}

func (h *ScoreboardHandler) GetScoreboardHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	scoreboard, err := h.matchService.GetScoreboard(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"scoreboard": scoreboard}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreboardHandler) GetEventHistoryHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	events, err := h.matchService.GetEventHistory(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"events": events}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type recordEventRequest struct {
	Type             models.EventType `json:"type"`
	Corner           models.Corner    `json:"corner"`
	TimestampInRound int              `json:"timestamp_in_round"`
	Note             string           `json:"note"`
}

// RecordEventDirectHandler is the privileged correction bypass: it skips
// consensus voting but still goes through the same commit path and
// lifecycle guards as everything else.
func (h *ScoreboardHandler) RecordEventDirectHandler(w http.ResponseWriter, r *http.Request) {
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

	var input recordEventRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.matchService.Commit(r.Context(), services.CommitInput{
		MatchID:          matchID,
		TimestampInRound: input.TimestampInRound,
		OfficialID:       officialID,
		Corner:           input.Corner,
		Type:             input.Type,
		Note:             input.Note,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScoreboardHandler) UndoLastEventHandler(w http.ResponseWriter, r *http.Request) {
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

	event, err := h.matchService.Undo(r.Context(), matchID, officialID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"undo_event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
