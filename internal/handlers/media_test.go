package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidstash/vidstash/internal/media"
	"github.com/vidstash/vidstash/internal/storage"
)

type stubDeriver struct {
	store storage.Storage
	fail  bool
}

func (d *stubDeriver) Derive(ctx context.Context, videoName string) error {
	if d.fail {
		return errors.New("codec exploded")
	}
	_, err := d.store.PutThumbnail(ctx, storage.ThumbnailName(videoName), strings.NewReader("fake-jpeg"))
	return err
}

type testServer struct {
	router  *mux.Router
	store   *storage.LocalStorage
	deriver *stubDeriver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "videos"), filepath.Join(t.TempDir(), "thumbs"))
	require.NoError(t, err)

	deriver := &stubDeriver{store: store}
	log := zap.NewNop()
	manager := media.NewManager(store, deriver, log)

	videoHandler := NewVideoHandler(store, log)
	thumbHandler := NewThumbnailHandler(store, log)
	mediaHandler := NewMediaHandler(manager, 64<<20, log)

	r := mux.NewRouter()
	r.HandleFunc("/upload", mediaHandler.Upload).Methods(http.MethodPost)
	r.HandleFunc("/videos", mediaHandler.ListVideos).Methods(http.MethodGet)
	r.HandleFunc("/videos/{name}", videoHandler.StreamVideo).Methods(http.MethodGet)
	r.HandleFunc("/videos/{name}", mediaHandler.DeleteVideo).Methods(http.MethodDelete)
	r.HandleFunc("/rename", mediaHandler.RenameVideo).Methods(http.MethodPost)
	r.HandleFunc("/generate-thumbnail", mediaHandler.GenerateThumbnail).Methods(http.MethodPost)
	r.HandleFunc("/thumbnails/{thumbnail}", thumbHandler.GetThumbnail).Methods(http.MethodGet)

	return &testServer{router: r, store: store, deriver: deriver}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, filename, content string) uploadResponse {
	t.Helper()
	rec := ts.do(multipartRequest(t, filename, content))
	require.Equal(t, http.StatusOK, rec.Code, "upload body: %s", rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func multipartRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("video", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadThenStreamRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	content := "the exact bytes that went in must come back out"

	resp := ts.upload(t, "clip.mp4", content)
	assert.Equal(t, "clip.mp4", resp.OriginalName)
	assert.Equal(t, int64(len(content)), resp.Size)
	assert.True(t, strings.HasSuffix(resp.Filename, "-clip.mp4"))
	assert.Equal(t, "/videos/"+resp.Filename, resp.VideoURL)
	assert.NotEmpty(t, resp.ThumbnailURL)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/videos/"+resp.Filename, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.String())
}

func TestUploadWithoutFile(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
	rec := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no video uploaded")
}

func TestUploadDerivationFailureStillStores(t *testing.T) {
	ts := newTestServer(t)
	ts.deriver.fail = true

	rec := ts.do(multipartRequest(t, "clip.mp4", "payload"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "thumbnail generation failed")

	// The video survived and is listed without a thumbnail.
	listRec := ts.do(httptest.NewRequest(http.MethodGet, "/videos", nil))
	require.Equal(t, http.StatusOK, listRec.Code)

	var items []media.MediaItem
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Empty(t, items[0].ThumbnailURL)
}

func TestUploadsWithSameNameStayDistinct(t *testing.T) {
	ts := newTestServer(t)

	first := ts.upload(t, "clip.mp4", "first")
	second := ts.upload(t, "clip.mp4", "second")
	require.NotEqual(t, first.Filename, second.Filename)

	for name, want := range map[string]string{first.Filename: "first", second.Filename: "second"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/videos/"+name, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, rec.Body.String())
	}
}

func TestListVideos(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.upload(t, "clip.mp4", "content")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/videos", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var items []media.MediaItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, resp.Filename, items[0].Name)
	assert.Equal(t, int64(len("content")), items[0].Size)
	assert.False(t, items[0].UploadDate.IsZero())
	assert.NotEmpty(t, items[0].ThumbnailURL)
}

func TestListVideosEmpty(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/videos", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestDeleteVideo(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.upload(t, "clip.mp4", "content")

	rec := ts.do(httptest.NewRequest(http.MethodDelete, "/videos/"+resp.Filename, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	// Gone for both streaming and re-deletion.
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/videos/"+resp.Filename, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/videos/"+resp.Filename, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRenameThenStream(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.upload(t, "clip.mp4", "renamable content")

	body := fmt.Sprintf(`{"oldName":%q,"newName":"renamed.mp4"}`, resp.Filename)
	rec := ts.do(jsonRequest(http.MethodPost, "/rename", body))
	require.Equal(t, http.StatusOK, rec.Code, "rename body: %s", rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/videos/"+resp.Filename, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/videos/renamed.mp4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamable content", rec.Body.String())
}

func TestRenameMissingFields(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{}`, `{"oldName":"a.mp4"}`, `{"newName":"b.mp4"}`, `not json`} {
		rec := ts.do(jsonRequest(http.MethodPost, "/rename", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestRenameNotFoundAndConflict(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPost, "/rename", `{"oldName":"ghost.mp4","newName":"new.mp4"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "old video not found")

	a := ts.upload(t, "a.mp4", "a")
	b := ts.upload(t, "b.mp4", "b")

	body := fmt.Sprintf(`{"oldName":%q,"newName":%q}`, a.Filename, b.Filename)
	rec = ts.do(jsonRequest(http.MethodPost, "/rename", body))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGenerateThumbnail(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.upload(t, "clip.mp4", "content")

	body := fmt.Sprintf(`{"filename":%q}`, resp.Filename)
	rec := ts.do(jsonRequest(http.MethodPost, "/generate-thumbnail", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, media.ThumbnailURL(resp.Filename), out["thumbnail"])
}

func TestGenerateThumbnailErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPost, "/generate-thumbnail", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(jsonRequest(http.MethodPost, "/generate-thumbnail", `{"filename":"ghost.mp4"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := ts.upload(t, "clip.mp4", "content")
	ts.deriver.fail = true
	rec = ts.do(jsonRequest(http.MethodPost, "/generate-thumbnail", fmt.Sprintf(`{"filename":%q}`, resp.Filename)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "thumbnail generation failed")
}

func TestGetThumbnail(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.upload(t, "clip.mp4", "content")

	thumbName := storage.ThumbnailName(resp.Filename)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/thumbnails/"+thumbName, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "fake-jpeg", rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/thumbnails/ghost.mp4.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
