package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vidstash/vidstash/internal/media"
)

// MediaHandler exposes the lifecycle operations over HTTP.
type MediaHandler struct {
	manager        *media.Manager
	maxUploadBytes int64
	log            *zap.Logger
}

func NewMediaHandler(manager *media.Manager, maxUploadBytes int64, log *zap.Logger) *MediaHandler {
	return &MediaHandler{manager: manager, maxUploadBytes: maxUploadBytes, log: log}
}

type uploadResponse struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalname"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no video uploaded")
		return
	}
	defer file.Close()

	item, err := h.manager.Ingest(r.Context(), file, header.Filename)
	if err != nil && !errors.Is(err, media.ErrDerivation) {
		h.log.Error("upload failed", zap.String("original", header.Filename), zap.Error(err))
		writeMediaError(w, err)
		return
	}
	if err != nil {
		// The video is stored; only the thumbnail is missing. Reported
		// as an error per the API contract, but the item survives and
		// will be listed without a thumbnail.
		writeError(w, http.StatusInternalServerError, "thumbnail generation failed")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Filename:     item.Name,
		OriginalName: header.Filename,
		Size:         item.Size,
		UploadDate:   item.UploadDate,
		VideoURL:     item.URL,
		ThumbnailURL: item.ThumbnailURL,
	})
}

func (h *MediaHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	items, err := h.manager.List(r.Context())
	if err != nil {
		h.log.Error("failed to list videos", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MediaHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.manager.Delete(r.Context(), name); err != nil {
		writeMediaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type renameRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

func (h *MediaHandler) RenameVideo(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldName == "" || req.NewName == "" {
		writeError(w, http.StatusBadRequest, "missing names")
		return
	}

	if err := h.manager.Rename(r.Context(), req.OldName, req.NewName); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeError(w, http.StatusNotFound, "old video not found")
			return
		}
		writeMediaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type generateThumbnailRequest struct {
	Filename string `json:"filename"`
}

func (h *MediaHandler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	var req generateThumbnailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "missing filename")
		return
	}

	thumbURL, err := h.manager.Regenerate(r.Context(), req.Filename)
	if err != nil {
		writeMediaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"thumbnail": thumbURL})
}
