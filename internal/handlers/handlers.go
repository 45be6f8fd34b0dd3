package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vidstash/vidstash/internal/media"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeMediaError maps lifecycle error kinds to their HTTP boundary form.
func writeMediaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, media.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid filename")
	case errors.Is(err, media.ErrNoPayload):
		writeError(w, http.StatusBadRequest, "no payload provided")
	case errors.Is(err, media.ErrNotFound):
		writeError(w, http.StatusNotFound, "video not found")
	case errors.Is(err, media.ErrConflict):
		writeError(w, http.StatusConflict, "target name already exists")
	case errors.Is(err, media.ErrDerivation):
		writeError(w, http.StatusInternalServerError, "thumbnail generation failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
