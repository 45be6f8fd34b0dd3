package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage keeps videos and thumbnails in two flat directories. There is
// no index file: identity and existence are determined purely by listing.
type LocalStorage struct {
	uploadDir string
	thumbDir  string
}

func NewLocalStorage(uploadDir, thumbDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{uploadDir: uploadDir, thumbDir: thumbDir}, nil
}

func (s *LocalStorage) VideoPath(name string) string {
	return filepath.Join(s.uploadDir, name)
}

func (s *LocalStorage) ThumbnailPath(name string) string {
	return filepath.Join(s.thumbDir, name)
}

func (s *LocalStorage) PutVideo(ctx context.Context, name string, r io.Reader) (int64, error) {
	return writeFile(s.VideoPath(name), r)
}

func (s *LocalStorage) OpenVideo(ctx context.Context, name string, start, end int64) (io.ReadCloser, error) {
	return openRange(s.VideoPath(name), start, end)
}

func (s *LocalStorage) StatVideo(ctx context.Context, name string) (ObjectInfo, error) {
	return statFile(s.VideoPath(name), name)
}

func (s *LocalStorage) ListVideos(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil, err
	}
	var objects []ObjectInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Entry vanished between the listing and the stat.
			continue
		}
		objects = append(objects, ObjectInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return objects, nil
}

func (s *LocalStorage) RemoveVideo(ctx context.Context, name string) error {
	return os.Remove(s.VideoPath(name))
}

func (s *LocalStorage) RenameVideo(ctx context.Context, oldName, newName string) error {
	return os.Rename(s.VideoPath(oldName), s.VideoPath(newName))
}

func (s *LocalStorage) PutThumbnail(ctx context.Context, name string, r io.Reader) (int64, error) {
	return writeFile(s.ThumbnailPath(name), r)
}

func (s *LocalStorage) OpenThumbnail(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(s.ThumbnailPath(name))
}

func (s *LocalStorage) StatThumbnail(ctx context.Context, name string) (ObjectInfo, error) {
	return statFile(s.ThumbnailPath(name), name)
}

func (s *LocalStorage) RemoveThumbnail(ctx context.Context, name string) error {
	return os.Remove(s.ThumbnailPath(name))
}

func (s *LocalStorage) RenameThumbnail(ctx context.Context, oldName, newName string) error {
	return os.Rename(s.ThumbnailPath(oldName), s.ThumbnailPath(newName))
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Do not leave a partial file behind.
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

func statFile(path, name string) (ObjectInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func openRange(path string, start, end int64) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if start > 0 {
		if _, err := file.Seek(start, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	if end >= 0 {
		return &limitedReadCloser{
			ReadCloser: file,
			remaining:  end - start + 1,
		}, nil
	}

	return file, nil
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[0:l.remaining]
	}
	n, err = l.ReadCloser.Read(p)
	l.remaining -= int64(n)
	return
}
