package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hirewire/resumeq/internal/core"
)

// localFileSource implements core.FileSource over a directory on disk.
// Stored file_path values are resolved relative to the base path.
type localFileSource struct {
	basePath string
}

// NewLocalFileSource creates a FileSource rooted at basePath.
func NewLocalFileSource(basePath string) core.FileSource {
	return &localFileSource{basePath: basePath}
}

// Open returns a reader for the stored file. Paths escaping the base
// directory are rejected.
func (s *localFileSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	full := filepath.Join(s.basePath, clean)

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open file %q: %w", path, err)
	}
	return f, nil
}
