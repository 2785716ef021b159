package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(h *V1Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", HealthCheck)
	r.Get("/", h.Index)
	r.Get("/videos", h.ListVideos)
	r.Post("/upload", h.UploadVideo)
	r.Post("/start_stream", h.StartStream)
	r.Post("/react", h.React)
	r.Post("/clip", h.CreateClip)
	r.Get("/stream/{filename}", h.StreamFile)
	return r
}
