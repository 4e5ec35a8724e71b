package api

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bookwormapp/bookworm/internal/http/response"
	"github.com/bookwormapp/bookworm/internal/media/images"
)

// imageContentTypes maps stored image extensions to MIME types.
var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func (s *Server) registerImageRoutes() {
	s.router.Get("/images/{file}", s.handleServeImage)
}

// handleServeImage serves hosted cover images. Files are immutable once
// written, so they are cached aggressively and revalidated by ETag.
func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if s.images == nil || !images.ValidFileName(name) {
		response.NotFound(w, "Image not found", s.logger)
		return
	}

	data, err := s.images.Get(name)
	if err != nil {
		if !errors.Is(err, images.ErrNotFound) {
			s.logger.Error("failed to read image", "file", name, "error", err)
		}
		response.NotFound(w, "Image not found", s.logger)
		return
	}

	etag := `"` + images.ContentHash(data) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", imageContentTypes[path.Ext(name)])
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
