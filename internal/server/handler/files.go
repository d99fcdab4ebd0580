package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/hirewire/resumeq/internal/core"
)

// FilesHandler serves stored resume files. This is the target of the public
// file URL embedded in webhook payloads, so the external processor can pull
// the document it is asked to parse.
type FilesHandler struct {
	files  core.FileSource
	logger *slog.Logger
}

// NewFilesHandler creates a files handler over the given source.
func NewFilesHandler(files core.FileSource, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{files: files, logger: logger}
}

// Get streams one stored file.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")
	path, err := url.PathUnescape(raw)
	if err != nil || path == "" {
		writeError(w, http.StatusBadRequest, "invalid file path")
		return
	}

	rc, err := h.files.Open(r.Context(), path)
	if err != nil {
		h.logger.Warn("requested file not available", "path", path, "error", err)
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream file", "path", path, "error", err)
	}
}
