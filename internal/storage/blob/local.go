package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncecere/readaloud/internal/config"
)

const defaultLocalDir = "./data/audio"

// localStore keeps each artifact as a flat file in one directory, with a
// JSON sidecar holding its content type and metadata.
type localStore struct {
	dir string
}

type sidecar struct {
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func newLocalStore(cfg config.AudioLocalConfig) (*localStore, error) {
	dir := strings.TrimSpace(cfg.Directory)
	if dir == "" {
		dir = defaultLocalDir
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	path, err := s.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	// Write to a temp file first so readers never observe a partial artifact.
	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())
	written, err := io.Copy(tmp, body)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("write artifact %s: %w", key, err)
	}

	meta := sidecar{ContentType: opts.ContentType, Size: written, Metadata: opts.Metadata}
	data, err := json.Marshal(meta)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.WriteFile(path+".json", data, 0o640); err != nil {
		return ObjectInfo{}, fmt.Errorf("write artifact metadata %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return ObjectInfo{}, fmt.Errorf("publish artifact %s: %w", key, err)
	}
	return ObjectInfo{Key: key, Size: written, ContentType: opts.ContentType, Metadata: opts.Metadata}, nil
}

func (s *localStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	info := ObjectInfo{Key: key}
	data, err := os.ReadFile(path + ".json")
	switch {
	case err == nil:
		var meta sidecar
		if err := json.Unmarshal(data, &meta); err != nil {
			file.Close()
			return nil, ObjectInfo{}, fmt.Errorf("decode artifact metadata %s: %w", key, err)
		}
		info.ContentType, info.Size, info.Metadata = meta.ContentType, meta.Size, meta.Metadata
	case errors.Is(err, fs.ErrNotExist):
		if stat, statErr := file.Stat(); statErr == nil {
			info.Size = stat.Size()
		}
	default:
		file.Close()
		return nil, ObjectInfo{}, err
	}
	return file, info, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range []string{path, path + ".json"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// path maps a key to a file directly inside the store directory. Keys with
// separators or parent references are rejected.
func (s *localStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
