package media

import (
	"errors"

	"github.com/vidstash/vidstash/internal/storage"
)

var (
	// ErrNotFound means the referenced name has no backing video file.
	ErrNotFound = errors.New("video not found")
	// ErrConflict means the rename target already exists.
	ErrConflict = errors.New("target name already exists")
	// ErrInvalidName aliases the storage-level name guard.
	ErrInvalidName = storage.ErrInvalidName
	// ErrNoPayload means an upload carried no bytes.
	ErrNoPayload = errors.New("no payload provided")
	// ErrDerivation means the thumbnail tool failed or timed out. During
	// ingest the video is kept; the error is still surfaced so the
	// boundary can report the degraded result.
	ErrDerivation = errors.New("thumbnail generation failed")
)
