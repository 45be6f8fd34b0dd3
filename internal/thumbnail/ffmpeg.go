package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vidstash/vidstash/internal/storage"
)

// FFmpeg extracts a single frame near the one-second mark of a video and
// writes it as a JPEG thumbnail. The external process is bounded by a
// timeout so a stalled codec cannot hang the calling request forever.
type FFmpeg struct {
	store   storage.Storage
	binary  string
	timeout time.Duration
	log     *zap.Logger
}

func New(store storage.Storage, binary string, timeout time.Duration, log *zap.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{store: store, binary: binary, timeout: timeout, log: log}
}

func (f *FFmpeg) Derive(ctx context.Context, videoName string) error {
	thumbName := storage.ThumbnailName(videoName)

	// Local backends hand ffmpeg real paths; remote ones round-trip
	// through temp files.
	if lp, ok := f.store.(storage.LocalPather); ok {
		return f.extract(ctx, lp.VideoPath(videoName), lp.ThumbnailPath(thumbName))
	}
	return f.deriveRemote(ctx, videoName, thumbName)
}

func (f *FFmpeg) deriveRemote(ctx context.Context, videoName, thumbName string) error {
	tmpFile, err := os.CreateTemp("", "video-*"+filepath.Ext(videoName))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	reader, err := f.store.OpenVideo(ctx, videoName, 0, -1)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to fetch video: %w", err)
	}
	_, err = io.Copy(tmpFile, reader)
	reader.Close()
	if cerr := tmpFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	thumbPath := tmpPath + ".jpg"
	if err := f.extract(ctx, tmpPath, thumbPath); err != nil {
		return err
	}
	defer os.Remove(thumbPath)

	thumb, err := os.Open(thumbPath)
	if err != nil {
		return fmt.Errorf("failed to open extracted frame: %w", err)
	}
	defer thumb.Close()

	if _, err := f.store.PutThumbnail(ctx, thumbName, thumb); err != nil {
		return fmt.Errorf("failed to store thumbnail: %w", err)
	}
	return nil
}

func (f *FFmpeg) extract(ctx context.Context, videoPath, thumbPath string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binary,
		"-y",
		"-i", videoPath,
		"-ss", "00:00:01.000",
		"-vframes", "1",
		thumbPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A failed run can leave a truncated frame behind.
		os.Remove(thumbPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out after %v", f.timeout)
		}
		f.log.Debug("ffmpeg stderr", zap.String("output", stderr.String()))
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
