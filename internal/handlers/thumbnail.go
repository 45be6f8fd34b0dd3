package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vidstash/vidstash/internal/storage"
)

type ThumbnailHandler struct {
	store storage.Storage
	log   *zap.Logger
}

func NewThumbnailHandler(store storage.Storage, log *zap.Logger) *ThumbnailHandler {
	return &ThumbnailHandler{store: store, log: log}
}

func (h *ThumbnailHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["thumbnail"]

	if err := storage.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	info, err := h.store.StatThumbnail(ctx, name)
	if err != nil {
		writeError(w, http.StatusNotFound, "thumbnail not found")
		return
	}

	reader, err := h.store.OpenThumbnail(ctx, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read thumbnail")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))

	if _, err := io.Copy(w, reader); err != nil {
		h.log.Debug("thumbnail stream aborted", zap.String("name", name), zap.Error(err))
	}
}
