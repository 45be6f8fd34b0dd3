package handlers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vidstash/vidstash/internal/storage"
)

// VideoHandler is the range-streaming delivery engine. Transfers are
// bounded-memory copies from the computed offset, so arbitrarily large files
// and arbitrarily many concurrent streams cost no proportional memory.
type VideoHandler struct {
	store storage.Storage
	log   *zap.Logger
}

func NewVideoHandler(store storage.Storage, log *zap.Logger) *VideoHandler {
	return &VideoHandler{store: store, log: log}
}

func (h *VideoHandler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	if err := storage.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	obj, err := h.store.StatVideo(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "video not found")
			return
		}
		h.log.Error("failed to stat video", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeFor(name))

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		reader, err := h.store.OpenVideo(ctx, name, 0, -1)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read video")
			return
		}
		defer reader.Close()

		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		w.WriteHeader(http.StatusOK)
		h.copyStream(w, reader, name)
		return
	}

	start, end, err := parseRange(rangeHeader, obj.Size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", obj.Size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable")
		return
	}

	reader, err := h.store.OpenVideo(ctx, name, start, end)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "video not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read video")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, obj.Size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	h.copyStream(w, reader, name)
}

// copyStream runs after headers are sent; the status can no longer change,
// so a failure just terminates the connection.
func (h *VideoHandler) copyStream(w http.ResponseWriter, reader io.Reader, name string) {
	if _, err := io.Copy(w, reader); err != nil {
		h.log.Debug("stream aborted", zap.String("name", name), zap.Error(err))
	}
}

// parseRange parses a header of the form "bytes=<start>-[<end>]" against the
// file size. A missing end means to the end of the file; an end past the
// file is clamped. Anything malformed or unsatisfiable (start past the file,
// start after end, suffix or multipart ranges) is an error the caller
// answers with 416.
func parseRange(header string, size int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multipart ranges unsupported: %q", header)
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}

	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range start %q", header)
	}

	if endStr == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range end %q", header)
		}
		if end >= size {
			end = size - 1
		}
	}

	if start >= size || start > end {
		return 0, 0, fmt.Errorf("unsatisfiable range %q for size %d", header, size)
	}
	return start, end, nil
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
