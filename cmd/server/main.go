package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilla "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/handlers"
	"github.com/vidstash/vidstash/internal/logger"
	"github.com/vidstash/vidstash/internal/media"
	"github.com/vidstash/vidstash/internal/middleware"
	"github.com/vidstash/vidstash/internal/storage"
	"github.com/vidstash/vidstash/internal/thumbnail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync()

	var store storage.Storage
	switch cfg.StorageType {
	case config.StorageTypeMinio:
		store, err = storage.NewMinioStorage(cfg)
	case config.StorageTypeLocal:
		store, err = storage.NewLocalStorage(cfg.UploadDir, cfg.ThumbDir)
	}
	if err != nil {
		zlog.Fatal("failed to init storage", zap.Error(err))
	}

	deriver := thumbnail.New(store, cfg.FFmpegPath, cfg.ThumbnailTimeout, zlog)
	manager := media.NewManager(store, deriver, zlog)

	videoHandler := handlers.NewVideoHandler(store, zlog)
	thumbHandler := handlers.NewThumbnailHandler(store, zlog)
	mediaHandler := handlers.NewMediaHandler(manager, cfg.MaxUploadBytes, zlog)
	healthHandler := handlers.NewHealthHandler()

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(zlog))

	uploadGuard := middleware.UploadSecret(cfg.UploadSecret)
	uploadLimit := middleware.RateLimit(cfg.UploadPerMinute)
	r.Handle("/upload", uploadGuard(uploadLimit(http.HandlerFunc(mediaHandler.Upload)))).Methods(http.MethodPost)

	r.HandleFunc("/videos", mediaHandler.ListVideos).Methods(http.MethodGet)
	r.HandleFunc("/videos/{name}", videoHandler.StreamVideo).Methods(http.MethodGet)
	r.HandleFunc("/videos/{name}", mediaHandler.DeleteVideo).Methods(http.MethodDelete)
	r.HandleFunc("/rename", mediaHandler.RenameVideo).Methods(http.MethodPost)
	r.HandleFunc("/generate-thumbnail", mediaHandler.GenerateThumbnail).Methods(http.MethodPost)
	r.HandleFunc("/thumbnails/{thumbnail}", thumbHandler.GetThumbnail).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler.HandleHealth).Methods(http.MethodGet)

	if cfg.PublicDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.PublicDir)))
	}

	handler := gorilla.CORS(
		gorilla.AllowedOrigins([]string{"*"}),
		gorilla.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		gorilla.AllowedHeaders([]string{"Range", "Content-Type", "X-Upload-Secret"}),
		gorilla.ExposedHeaders([]string{"Content-Range", "Accept-Ranges", "Content-Length"}),
	)(r)
	handler = gorilla.RecoveryHandler(gorilla.PrintRecoveryStack(true))(handler)

	// No WriteTimeout: streaming responses for large files legitimately
	// outlive any fixed deadline.
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		zlog.Info("HTTP server starting",
			zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageType))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var tlsSrv *http.Server
	if cfg.TLSCert != "" {
		tlsSrv = &http.Server{
			Addr:              ":" + cfg.TLSPort,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			zlog.Info("HTTPS server starting", zap.String("addr", tlsSrv.Addr))
			if err := tlsSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		zlog.Info("shutting down")
	case err := <-errCh:
		zlog.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP shutdown error", zap.Error(err))
	}
	if tlsSrv != nil {
		if err := tlsSrv.Shutdown(shutdownCtx); err != nil {
			zlog.Error("HTTPS shutdown error", zap.Error(err))
		}
	}
}
