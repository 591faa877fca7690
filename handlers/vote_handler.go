package handlers

import (
	"net/http"

	"github.com/trackclash/trackclash/services"
)

type VoteHandler struct {
	voteService     services.VoteService
	resolverService services.ResolverService
}

func NewVoteHandler(vs services.VoteService, rs services.ResolverService) *VoteHandler {
	return &VoteHandler{
		voteService:     vs,
		resolverService: rs,
	}
}

type castVoteInput struct {
	Side int `json:"side"`
}

// CastVoteHandler handles POST /matchups/{matchupID}/votes. One vote per
// voter per matchup; the side must be 1 or 2.
func (h *VoteHandler) CastVoteHandler(w http.ResponseWriter, r *http.Request) {
	voterID, err := currentUserID(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to vote")
		return
	}

	matchupID, err := getIDFromURL(r, "matchupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input castVoteInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.voteService.CastVote(r.Context(), voterID, matchupID, input.Side)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveHandler handles POST /matchups/{matchupID}/resolve. Resolution
// is idempotent: re-resolving a completed matchup returns the recorded
// winner with already_resolved set.
func (h *VoteHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	matchupID, err := getIDFromURL(r, "matchupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.resolverService.ResolveMatchup(r.Context(), matchupID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
