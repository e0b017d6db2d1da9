// Package uploads stages uploaded images in a scratch directory for the
// duration of a single analysis.
package uploads

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrTooLarge = errors.New("uploads: image exceeds size limit")

type Stager struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

func NewStager(dir string, maxBytes int64, logger *slog.Logger) (*Stager, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stager{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

// Stage writes data to a uniquely named file that keeps the original
// extension. The returned cleanup removes it and never fails.
func (s *Stager) Stage(filename string, data []byte) (string, func(), error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", func() {}, ErrTooLarge
	}
	name := "upload_" + strings.ReplaceAll(uuid.NewString(), "-", "") + extension(filename)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.Remove(path)
		return "", func() {}, fmt.Errorf("stage upload %q: %w", filename, err)
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove staged upload", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "." || len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
