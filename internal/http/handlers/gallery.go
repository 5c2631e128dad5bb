package handlers

import (
	"net/http"
	"net/url"

	"github.com/esthetix/clinic-portal/internal/gallery"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// GalleryHandler proxies treatment gallery images through the image cache.
type GalleryHandler struct {
	cache  *gallery.ImageCache
	logger *logging.Logger
}

// NewGalleryHandler builds the handler.
func NewGalleryHandler(cache *gallery.ImageCache, logger *logging.Logger) *GalleryHandler {
	if cache == nil {
		panic("handlers: image cache cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GalleryHandler{cache: cache, logger: logger}
}

// Image serves one cached image.
// GET /api/gallery/image?url=...
func (h *GalleryHandler) Image(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url must be an absolute http(s) URL", Code: "bad_request"})
		return
	}

	data, contentType, err := h.cache.Get(r.Context(), raw)
	if err != nil {
		h.logger.Warn("gallery image fetch failed", "url", raw, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "image unavailable", Code: "upstream"})
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Prefetch warms the cache for a list of image URLs.
// POST /api/admin/gallery/prefetch
func (h *GalleryHandler) Prefetch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.cache.Prefetch(r.Context(), req.URLs)
	writeJSON(w, http.StatusOK, map[string]any{"warmed": len(req.URLs)})
}
