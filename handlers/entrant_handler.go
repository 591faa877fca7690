package handlers

import (
	"errors"
	"net/http"

	"github.com/trackclash/trackclash/services"
)

// maxTrackUploadSize caps the multipart body of a track upload at 32MB.
const maxTrackUploadSize = 32 << 20

type EntrantHandler struct {
	entrantService services.EntrantService
}

func NewEntrantHandler(es services.EntrantService) *EntrantHandler {
	return &EntrantHandler{entrantService: es}
}

// RegisterHandler handles POST /tournaments/{tournamentID}/entrants.
func (h *EntrantHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to enter tournament")
		return
	}

	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RegisterEntrantInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entrant, err := h.entrantService.RegisterEntrant(r.Context(), userID, tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"entrant": entrant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /entrants/{entrantID}.
func (h *EntrantHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "entrantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entrant, err := h.entrantService.GetEntrantByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"entrant": entrant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadTrackHandler handles PUT /entrants/{entrantID}/track. The audio
// file arrives as the "track" part of a multipart form.
func (h *EntrantHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to upload a track")
		return
	}

	entrantID, err := getIDFromURL(r, "entrantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTrackUploadSize)
	if err := r.ParseMultipartForm(maxTrackUploadSize); err != nil {
		badRequestResponse(w, r, errors.New("request must be multipart form data with a track file"))
		return
	}

	file, header, err := r.FormFile("track")
	if err != nil {
		badRequestResponse(w, r, errors.New("missing track file in form data"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	entrant, err := h.entrantService.UploadTrack(r.Context(), userID, entrantID, header.Filename, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"entrant": entrant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
