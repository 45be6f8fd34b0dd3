package media

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/vidstash/vidstash/internal/storage"
)

// MediaItem is reconstructed from filesystem state on every listing; it is
// never persisted as a record. Name is the identity key.
type MediaItem struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail,omitempty"`
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
}

// IsVideo reports whether name carries a recognized video extension.
func IsVideo(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// VideoURL returns the streaming URL for a stored name.
func VideoURL(name string) string {
	return "/videos/" + url.PathEscape(name)
}

// ThumbnailURL returns the delivery URL for a stored name's thumbnail.
func ThumbnailURL(name string) string {
	return "/thumbnails/" + url.PathEscape(storage.ThumbnailName(name))
}
