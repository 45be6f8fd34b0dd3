package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vidstash/vidstash/internal/storage"
)

// Deriver produces a still-frame thumbnail for a stored video, overwriting
// any prior one.
type Deriver interface {
	Derive(ctx context.Context, videoName string) error
}

// Manager owns the video/thumbnail pair lifecycle. The two files are
// independent resources linked only by the naming convention, so every
// operation applies to the video first and treats the thumbnail as a
// best-effort side effect.
type Manager struct {
	store   storage.Storage
	deriver Deriver
	log     *zap.Logger
}

func NewManager(store storage.Storage, deriver Deriver, log *zap.Logger) *Manager {
	return &Manager{store: store, deriver: deriver, log: log}
}

// Ingest stores the payload under a unique name and derives its thumbnail.
// A derivation failure returns the stored item together with ErrDerivation:
// the upload succeeded, degraded to a missing-thumbnail state.
func (m *Manager) Ingest(ctx context.Context, r io.Reader, originalName string) (*MediaItem, error) {
	base := filepath.Base(strings.TrimSpace(originalName))
	if err := storage.ValidateName(base); err != nil {
		return nil, err
	}

	// The nanosecond prefix disambiguates repeated uploads of the same
	// original name; the extension survives for MIME inference.
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), base)

	size, err := m.store.PutVideo(ctx, name, r)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", name, err)
	}
	if size == 0 {
		if rmErr := m.store.RemoveVideo(ctx, name); rmErr != nil {
			m.log.Warn("failed to remove empty upload", zap.String("name", name), zap.Error(rmErr))
		}
		return nil, ErrNoPayload
	}

	item := &MediaItem{
		Name:       name,
		Size:       size,
		UploadDate: time.Now(),
		URL:        VideoURL(name),
	}

	if err := m.deriver.Derive(ctx, name); err != nil {
		m.log.Warn("thumbnail derivation failed during ingest",
			zap.String("name", name), zap.Error(err))
		return item, fmt.Errorf("%w: %v", ErrDerivation, err)
	}

	item.ThumbnailURL = ThumbnailURL(name)
	return item, nil
}

// List rebuilds the registry from storage state. Ordering follows the
// backend's enumeration order; callers wanting stable order must sort.
func (m *Manager) List(ctx context.Context) ([]MediaItem, error) {
	objects, err := m.store.ListVideos(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]MediaItem, 0, len(objects))
	for _, obj := range objects {
		if !IsVideo(obj.Name) {
			continue
		}
		item := MediaItem{
			Name:       obj.Name,
			Size:       obj.Size,
			UploadDate: obj.ModTime,
			URL:        VideoURL(obj.Name),
		}
		if _, err := m.store.StatThumbnail(ctx, storage.ThumbnailName(obj.Name)); err == nil {
			item.ThumbnailURL = ThumbnailURL(obj.Name)
		}
		items = append(items, item)
	}
	return items, nil
}

// Delete removes the video, then its thumbnail. The removals are sequential,
// not atomic; an orphaned thumbnail is accepted debris since nothing names
// it without a corresponding video.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}

	if err := m.store.RemoveVideo(ctx, name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}

	if err := m.store.RemoveThumbnail(ctx, storage.ThumbnailName(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.log.Warn("failed to remove thumbnail", zap.String("name", name), zap.Error(err))
	}
	return nil
}

// Rename moves a video to a new name, refusing to clobber an existing one.
// The thumbnail follows under the same transformation; its failure leaves
// stranded debris until the thumbnail is regenerated, never a failed rename.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) error {
	if err := storage.ValidateName(oldName); err != nil {
		return err
	}
	if err := storage.ValidateName(newName); err != nil {
		return err
	}

	if _, err := m.store.StatVideo(ctx, oldName); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", oldName, ErrNotFound)
		}
		return err
	}
	if _, err := m.store.StatVideo(ctx, newName); err == nil {
		return fmt.Errorf("%s: %w", newName, ErrConflict)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := m.store.RenameVideo(ctx, oldName, newName); err != nil {
		return fmt.Errorf("rename %s: %w", oldName, err)
	}

	err := m.store.RenameThumbnail(ctx, storage.ThumbnailName(oldName), storage.ThumbnailName(newName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.log.Warn("failed to rename thumbnail",
			zap.String("old", oldName), zap.String("new", newName), zap.Error(err))
	}
	return nil
}

// Regenerate re-derives the thumbnail for an existing video, replacing any
// prior one.
func (m *Manager) Regenerate(ctx context.Context, name string) (string, error) {
	if err := storage.ValidateName(name); err != nil {
		return "", err
	}

	if _, err := m.store.StatVideo(ctx, name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", err
	}

	if err := m.deriver.Derive(ctx, name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDerivation, err)
	}
	return ThumbnailURL(name), nil
}
