package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageTypeLocal = "local"
	StorageTypeMinio = "minio"
)

type Config struct {
	ServerPort string
	TLSPort    string
	TLSCert    string
	TLSKey     string

	StorageType string
	UploadDir   string
	ThumbDir    string
	PublicDir   string

	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	VideosBucket    string
	ThumbnailBucket string

	FFmpegPath       string
	ThumbnailTimeout time.Duration

	UploadSecret    string
	MaxUploadBytes  int64
	UploadPerMinute int

	LogLevel string
	LogPath  string
}

func Load() (*Config, error) {
	// A missing .env file is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:       getenv("SERVER_PORT", "5000"),
		TLSPort:          getenv("TLS_PORT", "5001"),
		TLSCert:          os.Getenv("TLS_CERT"),
		TLSKey:           os.Getenv("TLS_KEY"),
		StorageType:      getenv("STORAGE_TYPE", StorageTypeLocal),
		UploadDir:        getenv("UPLOAD_DIR", "data/videos"),
		ThumbDir:         getenv("THUMB_DIR", "data/thumbs"),
		PublicDir:        os.Getenv("PUBLIC_DIR"),
		MinioEndpoint:    os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:   os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:   os.Getenv("MINIO_SECRET_KEY"),
		VideosBucket:     getenv("VIDEOS_BUCKET", "videos"),
		ThumbnailBucket:  getenv("THUMBNAIL_BUCKET", "thumbnails"),
		FFmpegPath:       getenv("FFMPEG_PATH", "ffmpeg"),
		ThumbnailTimeout: getdur("THUMBNAIL_TIMEOUT", 30*time.Second),
		UploadSecret:     os.Getenv("UPLOAD_SECRET"),
		MaxUploadBytes:   getint64("MAX_UPLOAD_BYTES", 4<<30),
		UploadPerMinute:  int(getint64("UPLOAD_PER_MINUTE", 30)),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogPath:          os.Getenv("LOG_PATH"),
	}

	switch cfg.StorageType {
	case StorageTypeLocal:
	case StorageTypeMinio:
		required := []struct {
			name, value string
		}{
			{"MINIO_ENDPOINT", cfg.MinioEndpoint},
			{"MINIO_ACCESS_KEY", cfg.MinioAccessKey},
			{"MINIO_SECRET_KEY", cfg.MinioSecretKey},
		}
		for _, v := range required {
			if v.value == "" {
				return nil, fmt.Errorf("%s is not set", v.name)
			}
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.StorageType)
	}

	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("TLS_CERT and TLS_KEY must be set together")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
