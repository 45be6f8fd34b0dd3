package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrInvalidName marks a request-supplied filename that may not be used to
// derive a path (empty, contains separators, or a traversal sequence).
var ErrInvalidName = errors.New("invalid name")

type ObjectInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Storage persists videos and their derived thumbnails. Missing objects are
// reported with an error satisfying errors.Is(err, fs.ErrNotExist).
type Storage interface {
	PutVideo(ctx context.Context, name string, r io.Reader) (int64, error)
	// OpenVideo returns a reader over bytes [start, end] of the video.
	// end < 0 means to the end of the object.
	OpenVideo(ctx context.Context, name string, start, end int64) (io.ReadCloser, error)
	StatVideo(ctx context.Context, name string) (ObjectInfo, error)
	ListVideos(ctx context.Context) ([]ObjectInfo, error)
	RemoveVideo(ctx context.Context, name string) error
	RenameVideo(ctx context.Context, oldName, newName string) error

	PutThumbnail(ctx context.Context, name string, r io.Reader) (int64, error)
	OpenThumbnail(ctx context.Context, name string) (io.ReadCloser, error)
	StatThumbnail(ctx context.Context, name string) (ObjectInfo, error)
	RemoveThumbnail(ctx context.Context, name string) error
	RenameThumbnail(ctx context.Context, oldName, newName string) error
}

// LocalPather is implemented by backends whose objects live on the local
// filesystem. The thumbnail deriver uses it to hand ffmpeg real paths
// instead of round-tripping through temp files.
type LocalPather interface {
	VideoPath(name string) string
	ThumbnailPath(name string) string
}

// ThumbnailName maps a video name to its thumbnail object name. The two
// files share identity through this convention only.
func ThumbnailName(videoName string) string {
	return videoName + ".jpg"
}

// ValidateName rejects names that could escape the managed directories.
// Every entry point that accepts a filename from a request must call it
// before deriving a path.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}
