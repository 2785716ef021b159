package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveclip/live-stream-clipper/internal/domain"
	"github.com/liveclip/live-stream-clipper/internal/service"
)

type fakeStreams struct {
	started []string
	err     error
	current string
}

func (f *fakeStreams) Start(source string) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, source)
	f.current = source
	return nil
}

func (f *fakeStreams) CurrentSource() string { return f.current }

type fakeResetter struct {
	resets int
}

func (f *fakeResetter) Reset(ctx context.Context) error {
	f.resets++
	return nil
}

type fakeExtractor struct {
	calls int
	path  string
	err   error
	clip  domain.ClipRange
}

func (f *fakeExtractor) Extract(ctx context.Context, clip domain.ClipRange) (string, error) {
	f.calls++
	f.clip = clip
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

type testHarness struct {
	router    http.Handler
	streams   *fakeStreams
	resetter  *fakeResetter
	extractor *fakeExtractor
	uploadDir string
	streamDir string
}

func newHarness(t *testing.T, threshold int) *testHarness {
	t.Helper()
	h := &testHarness{
		streams:   &fakeStreams{current: "test.mp4"},
		resetter:  &fakeResetter{},
		extractor: &fakeExtractor{},
		uploadDir: t.TempDir(),
		streamDir: t.TempDir(),
	}
	v1 := &V1Handler{
		Streams:   h.streams,
		Engine:    service.NewEngine(3*time.Second, threshold, 30),
		Clips:     h.extractor,
		Publisher: h.resetter,
		UploadDir: h.uploadDir,
		StreamDir: h.streamDir,
	}
	h.router = NewRouter(v1)
	return h
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestReact_invalidType(t *testing.T) {
	h := newHarness(t, 1)
	rec := postJSON(t, h.router, "/react", map[string]any{"type": "fireworks", "user_id": "u1", "t": 10.0})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.extractor.calls)
}

func TestReact_missingUser(t *testing.T) {
	h := newHarness(t, 1)
	rec := postJSON(t, h.router, "/react", map[string]any{"type": "heart", "user_id": "", "t": 10.0})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["error"], "user_id")
}

func TestReact_badTimestamp(t *testing.T) {
	h := newHarness(t, 1)

	rec := postJSON(t, h.router, "/react", map[string]any{"type": "heart", "user_id": "u1", "t": -3.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.router, "/react", map[string]any{"type": "heart", "user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.extractor.calls)
}

func TestReact_belowThresholdReturnsStatus(t *testing.T) {
	h := newHarness(t, 2)
	rec := postJSON(t, h.router, "/react", map[string]any{"type": "heart", "user_id": "u1", "t": 10.0})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "heart", body["reaction"])
	assert.EqualValues(t, 1, body["unique_in_window"])
	assert.EqualValues(t, 3, body["window_sec"])
	assert.EqualValues(t, 2, body["threshold"])
	assert.Zero(t, h.extractor.calls)
}

func TestReact_triggerReturnsClip(t *testing.T) {
	h := newHarness(t, 2)
	clipPath := filepath.Join(t.TempDir(), "clip_deadbeef_0_12.mp4")
	require.NoError(t, os.WriteFile(clipPath, []byte("clip bytes"), 0o644))
	h.extractor.path = clipPath

	rec := postJSON(t, h.router, "/react", map[string]any{"type": "heart", "user_id": "u1", "t": 10.0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.router, "/react", map[string]any{"type": "heart", "user_id": "u2", "t": 14.0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.extractor.calls)
	assert.InDelta(t, 12.0, h.extractor.clip.End, 1e-9)
	assert.Equal(t, "clip bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}

func TestReact_extractionFailure(t *testing.T) {
	h := newHarness(t, 1)
	h.extractor.err = errors.New("encoder blew up")

	rec := postJSON(t, h.router, "/react", map[string]any{"type": "heart", "user_id": "u1", "t": 10.0})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCreateClip_invalidRangeRejectedBeforeExtraction(t *testing.T) {
	h := newHarness(t, 1)

	rec := postJSON(t, h.router, "/clip", map[string]any{"start_time": 30.0, "end_time": 10.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.router, "/clip", map[string]any{"start_time": -1.0, "end_time": 10.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.router, "/clip", map[string]any{"start_time": 10.0, "end_time": 10.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, h.extractor.calls, "no extraction subprocess may be invoked for invalid ranges")
}

func TestCreateClip_success(t *testing.T) {
	h := newHarness(t, 1)
	clipPath := filepath.Join(t.TempDir(), "clip_cafebabe_5_15.mp4")
	require.NoError(t, os.WriteFile(clipPath, []byte("explicit clip"), 0o644))
	h.extractor.path = clipPath

	rec := postJSON(t, h.router, "/clip", map[string]any{"start_time": 5.0, "end_time": 15.0})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.extractor.calls)
	assert.Equal(t, domain.ClipRange{Start: 5, End: 15}, h.extractor.clip)
	assert.Equal(t, "explicit clip", rec.Body.String())
}

func TestStartStream_sourceNotFound(t *testing.T) {
	h := newHarness(t, 1)
	rec := postJSON(t, h.router, "/start_stream", map[string]any{"filename": filepath.Join(t.TempDir(), "missing.mp4")})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, h.streams.started)
	assert.Zero(t, h.resetter.resets)
}

func TestStartStream_switchesAndResetsPublication(t *testing.T) {
	h := newHarness(t, 1)
	source := filepath.Join(h.uploadDir, "movie.mp4")
	require.NoError(t, os.WriteFile(source, []byte("mp4"), 0o644))

	rec := postJSON(t, h.router, "/start_stream", map[string]any{"filename": source})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{source}, h.streams.started)
	assert.Equal(t, 1, h.resetter.resets)
}

func TestStreamFile_disablesCaching(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, os.WriteFile(filepath.Join(h.streamDir, "stream.m3u8"), []byte("#EXTM3U"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/stream/stream.m3u8", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "#EXTM3U", rec.Body.String())
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}

func TestStreamFile_missing(t *testing.T) {
	h := newHarness(t, 1)
	req := httptest.NewRequest(http.MethodGet, "/stream/segment_999.ts", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListVideos(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, os.WriteFile(filepath.Join(h.uploadDir, "a.mp4"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.uploadDir, "b.mp4"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.uploadDir, "notes.txt"), []byte("x"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.ElementsMatch(t, []any{"a.mp4", "b.mp4"}, body["videos"])
	assert.Equal(t, "test.mp4", body["current"])
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadVideo(t *testing.T) {
	h := newHarness(t, 1)
	body, contentType := multipartUpload(t, "new-source.mp4", []byte("mp4 bytes"))

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	saved, err := os.ReadFile(filepath.Join(h.uploadDir, "new-source.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "mp4 bytes", string(saved))
}

func TestUploadVideo_rejectsWrongType(t *testing.T) {
	h := newHarness(t, 1)
	body, contentType := multipartUpload(t, "malware.exe", []byte("nope"))

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err := os.Stat(filepath.Join(h.uploadDir, "malware.exe"))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadVideo_missingFilePart(t *testing.T) {
	h := newHarness(t, 1)
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t, 1)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
