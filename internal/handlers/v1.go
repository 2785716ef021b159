package handlers

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/liveclip/live-stream-clipper/internal/domain"
	"github.com/liveclip/live-stream-clipper/internal/service"
)

//go:embed index.html
var indexPage []byte

// StreamController is the supervisor surface the HTTP layer drives.
type StreamController interface {
	Start(source string) error
	CurrentSource() string
}

// PublicationResetter clears publication state when a new session starts.
type PublicationResetter interface {
	Reset(ctx context.Context) error
}

type V1Handler struct {
	Streams   StreamController
	Engine    *service.Engine
	Clips     service.ClipExtractor
	Publisher PublicationResetter
	UploadDir string
	StreamDir string
}

type startStreamRequest struct {
	Filename string `json:"filename"`
}

type reactRequest struct {
	Type   string      `json:"type"`
	UserID string      `json:"user_id"`
	T      json.Number `json:"t"`
}

type clipRequest struct {
	StartTime json.Number `json:"start_time"`
	EndTime   json.Number `json:"end_time"`
}

type reactStatusResponse struct {
	OK             bool    `json:"ok"`
	Reaction       string  `json:"reaction"`
	UniqueInWindow int     `json:"unique_in_window"`
	WindowSec      float64 `json:"window_sec"`
	Threshold      int     `json:"threshold"`
}

// Index serves the embedded live player page, pinned to the live edge.
func (h *V1Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexPage)
}

// ListVideos handles GET /videos: the switchable sources plus the current one.
func (h *V1Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.UploadDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}
	videos := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".mp4") {
			videos = append(videos, entry.Name())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"videos":  videos,
		"current": h.Streams.CurrentSource(),
	})
}

// UploadVideo handles POST /upload with a multipart "file" part.
func (h *V1Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	if !strings.HasSuffix(strings.ToLower(name), ".mp4") {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	dest, err := os.Create(filepath.Join(h.UploadDir, name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	defer dest.Close()
	if _, err := io.Copy(dest, file); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "File uploaded",
		"filename": name,
	})
}

// StartStream handles POST /start_stream: switches the live source. The old
// session is fully stopped and local output cleared before the new one spawns,
// then the publication state is reset so the fresh session republishes cleanly.
func (h *V1Handler) StartStream(w http.ResponseWriter, r *http.Request) {
	var req startStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename required")
		return
	}
	if _, err := os.Stat(req.Filename); err != nil {
		writeError(w, http.StatusNotFound, domain.ErrSourceNotFound.Error())
		return
	}

	if err := h.Streams.Start(req.Filename); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start streaming")
		return
	}
	if err := h.Publisher.Reset(r.Context()); err != nil {
		slog.Error("Failed to reset publication state", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Streaming " + req.Filename,
	})
}

// React handles POST /react: records a reaction event and either returns the
// aggregation status or, when the crowd threshold fires, extracts a clip
// synchronously and returns its bytes.
func (h *V1Handler) React(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playback, err := req.T.Float64()
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid 't' (seconds) required")
		return
	}

	kind := domain.ReactionKind(strings.ToLower(req.Type))
	if err := h.Engine.Record(kind, req.UserID, playback); err != nil {
		writeDomainError(w, err)
		return
	}

	trigger, status, fired := h.Engine.EvaluateTrigger(kind)
	if !fired {
		writeJSON(w, http.StatusOK, reactStatusResponse{
			OK:             true,
			Reaction:       string(kind),
			UniqueInWindow: status.UniqueInWindow,
			WindowSec:      status.WindowSeconds,
			Threshold:      status.Threshold,
		})
		return
	}

	path, err := h.Clips.Extract(r.Context(), trigger.Clip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Clip creation failed")
		return
	}
	slog.Info("Reaction clip created",
		"kind", string(kind),
		"start", trigger.Clip.Start,
		"end", trigger.Clip.End,
		"unique_users", trigger.UniqueUsers,
	)
	serveClipFile(w, r, path)
}

// CreateClip handles POST /clip: an explicit user-specified time range.
// Validation happens before any extraction subprocess is invoked.
func (h *V1Handler) CreateClip(w http.ResponseWriter, r *http.Request) {
	var req clipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start, errStart := req.StartTime.Float64()
	end, errEnd := req.EndTime.Float64()
	if errStart != nil || errEnd != nil {
		writeError(w, http.StatusBadRequest, "numeric start_time and end_time required")
		return
	}

	clip, err := service.ValidateClipRange(start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	path, err := h.Clips.Extract(r.Context(), clip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Clip creation failed")
		return
	}
	serveClipFile(w, r, path)
}

// StreamFile handles GET /stream/{filename}: read-only passthrough to the
// local output directory. Every fetch is treated as potentially stale.
func (h *V1Handler) StreamFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "filename"))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	http.ServeFile(w, r, filepath.Join(h.StreamDir, name))
}

func serveClipFile(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	if domain.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
