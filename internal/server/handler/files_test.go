package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewire/resumeq/internal/storage"
)

func filesRouter(t *testing.T) (*chi.Mux, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "resume.pdf"), []byte("%PDF-1.4"), 0o644))

	h := NewFilesHandler(storage.NewLocalFileSource(dir), testLogger())
	r := chi.NewRouter()
	r.Get("/files/*", h.Get)
	return r, dir
}

func TestFilesGet(t *testing.T) {
	r, _ := filesRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/uploads/resume.pdf", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestFilesGetEscapedPath(t *testing.T) {
	r, _ := filesRouter(t)

	// The webhook payload escapes the whole path into a single segment.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/uploads%2Fresume.pdf", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestFilesGetMissing(t *testing.T) {
	r, _ := filesRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/uploads/other.pdf", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilesGetEscapeAttempt(t *testing.T) {
	r, dir := filesRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(dir), "secret.txt"), []byte("secret"), 0o644))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/..%2Fsecret.txt", nil))

	// The traversal is cleaned away inside the base directory, so the
	// request resolves to a file that does not exist there.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
