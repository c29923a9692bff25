package handlers

import (
	"net/http"

	"github.com/martial-arena/combat-scoring/middleware"
	"github.com/martial-arena/combat-scoring/services"
)

type VoteHandler struct {
	voteService services.VoteService
}

func NewVoteHandler(voteService services.VoteService) *VoteHandler {
	return &VoteHandler{voteService: voteService}
}

func (h *VoteHandler) SubmitVoteHandler(w http.ResponseWriter, r *http.Request) {
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

	var action services.ProposedAction
	if err := readJSON(w, r, &action); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.voteService.ProcessVote(r.Context(), matchID, officialID, action)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *VoteHandler) GetVotingStatusHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	status, err := h.voteService.GetVotingStatus(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"voting_status": status}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *VoteHandler) ResetVotesHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.voteService.ResetVotes(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
