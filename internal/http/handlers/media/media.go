package media

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/utils/response"
)

type MediaHandlers struct {
	registry *objecturl.Registry
}

// NewMediaHandlers creates a new media handlers instance
func NewMediaHandlers(registry *objecturl.Registry) *MediaHandlers {
	return &MediaHandlers{
		registry: registry,
	}
}

// ServeObject streams the processed result behind an object URL
// @Summary Fetch a processed result
// @Description Returns the image or video the detection service produced. Revoked URLs return 404.
// @Tags media
// @Produce octet-stream
// @Param id path string true "Object URL id"
// @Success 200 {file} binary "Processed media"
// @Failure 404 {object} response.Response "Media not found"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /media/{id} [get]
func (h *MediaHandlers) ServeObject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("object id is required")))
			return
		}

		blob, err := h.registry.Open(r.Context(), id)
		if errors.Is(err, objecturl.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("media not found")))
			return
		}
		if err != nil {
			slog.Error("Failed to open object", slog.String("id", id), slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to load media")))
			return
		}

		contentType := blob.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "private, no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// ServeContent answers Range requests, which video players rely on
		http.ServeContent(w, r, "", blob.CreatedAt, bytes.NewReader(blob.Body))
	}
}
