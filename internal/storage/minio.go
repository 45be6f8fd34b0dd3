package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vidstash/vidstash/internal/config"
)

// MinioStorage mirrors the local layout across two buckets. Object stores
// have no native rename, so RenameVideo/RenameThumbnail are copy+remove and
// only as atomic as the remote makes them.
type MinioStorage struct {
	client          *minio.Client
	videosBucket    string
	thumbnailBucket string
}

func NewMinioStorage(cfg *config.Config) (*MinioStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	if err := ensureBucketExists(client, cfg.VideosBucket); err != nil {
		return nil, fmt.Errorf("failed to ensure videos bucket exists: %w", err)
	}
	if err := ensureBucketExists(client, cfg.ThumbnailBucket); err != nil {
		return nil, fmt.Errorf("failed to ensure thumbnail bucket exists: %w", err)
	}

	return &MinioStorage{
		client:          client,
		videosBucket:    cfg.VideosBucket,
		thumbnailBucket: cfg.ThumbnailBucket,
	}, nil
}

func ensureBucketExists(client *minio.Client, bucketName string) error {
	retryInterval := 2 * time.Second
	timeout := 30 * time.Second
	startTime := time.Now()

	for time.Since(startTime) < timeout {
		exists, err := client.BucketExists(context.Background(), bucketName)
		if err == nil && exists {
			return nil
		}
		if err == nil {
			err = client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{})
			if err == nil {
				return nil
			}
		}
		time.Sleep(retryInterval)
		retryInterval *= 2
	}

	return fmt.Errorf("failed to ensure bucket %s exists within the timeout period", bucketName)
}

func (s *MinioStorage) PutVideo(ctx context.Context, name string, r io.Reader) (int64, error) {
	info, err := s.client.PutObject(ctx, s.videosBucket, name, r, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *MinioStorage) OpenVideo(ctx context.Context, name string, start, end int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if start > 0 || end >= 0 {
		if err := opts.SetRange(start, end); err != nil {
			return nil, err
		}
	}
	obj, err := s.client.GetObject(ctx, s.videosBucket, name, opts)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return obj, nil
}

func (s *MinioStorage) StatVideo(ctx context.Context, name string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.videosBucket, name, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapNotFound(err)
	}
	return ObjectInfo{Name: name, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *MinioStorage) ListVideos(ctx context.Context) ([]ObjectInfo, error) {
	objects := s.client.ListObjects(ctx, s.videosBucket, minio.ListObjectsOptions{Recursive: true})
	var list []ObjectInfo
	for object := range objects {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		list = append(list, ObjectInfo{Name: object.Key, Size: object.Size, ModTime: object.LastModified})
	}
	return list, nil
}

func (s *MinioStorage) RemoveVideo(ctx context.Context, name string) error {
	return s.removeObject(ctx, s.videosBucket, name)
}

func (s *MinioStorage) RenameVideo(ctx context.Context, oldName, newName string) error {
	return s.renameObject(ctx, s.videosBucket, oldName, newName)
}

func (s *MinioStorage) PutThumbnail(ctx context.Context, name string, r io.Reader) (int64, error) {
	info, err := s.client.PutObject(ctx, s.thumbnailBucket, name, r, -1, minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *MinioStorage) OpenThumbnail(ctx context.Context, name string) (io.ReadCloser, error) {
	// Existence is only observable on the first Read; callers stat first.
	obj, err := s.client.GetObject(ctx, s.thumbnailBucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return obj, nil
}

func (s *MinioStorage) StatThumbnail(ctx context.Context, name string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.thumbnailBucket, name, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapNotFound(err)
	}
	return ObjectInfo{Name: name, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *MinioStorage) RemoveThumbnail(ctx context.Context, name string) error {
	return s.removeObject(ctx, s.thumbnailBucket, name)
}

func (s *MinioStorage) RenameThumbnail(ctx context.Context, oldName, newName string) error {
	return s.renameObject(ctx, s.thumbnailBucket, oldName, newName)
}

func (s *MinioStorage) removeObject(ctx context.Context, bucket, name string) error {
	// RemoveObject succeeds on missing keys; stat first so callers can
	// distinguish not-found.
	if _, err := s.client.StatObject(ctx, bucket, name, minio.StatObjectOptions{}); err != nil {
		return mapNotFound(err)
	}
	return s.client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{})
}

func (s *MinioStorage) renameObject(ctx context.Context, bucket, oldName, newName string) error {
	src := minio.CopySrcOptions{Bucket: bucket, Object: oldName}
	dst := minio.CopyDestOptions{Bucket: bucket, Object: newName}
	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		return mapNotFound(err)
	}
	return s.client.RemoveObject(ctx, bucket, oldName, minio.RemoveObjectOptions{})
}

func mapNotFound(err error) error {
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%s: %w", resp.Key, fs.ErrNotExist)
	}
	return err
}
