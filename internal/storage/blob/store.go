// Package blob persists synthesized audio artifacts on local disk or S3, with
// optional AES-GCM encryption at rest.
package blob

import (
	"context"
	"errors"
	"io"
	"maps"
	"strings"

	"github.com/ncecere/readaloud/internal/config"
)

var (
	// ErrNotFound is returned when a key has no stored object.
	ErrNotFound = errors.New("blob: object not found")
	// ErrEncrypted is returned when an encrypted object is read without a key.
	ErrEncrypted = errors.New("blob: object is encrypted and audio.encryption_key is unset")
)

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored artifact. Size is the plaintext length.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
	Encrypted   bool
}

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// New builds the configured backend and wraps it with encryption when an
// audio.encryption_key is present.
func New(ctx context.Context, cfg config.AudioConfig) (Store, error) {
	var (
		backend Store
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "s3":
		backend, err = openS3(ctx, cfg.S3)
	default:
		backend, err = newLocalStore(cfg.Local)
	}
	if err != nil {
		return nil, err
	}
	enc, err := newEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &sealedStore{backend: backend, enc: enc}, nil
}

// sealedStore encrypts on write when it holds a key and decrypts objects
// tagged as encrypted on read.
type sealedStore struct {
	backend Store
	enc     *encryptor
}

func (s *sealedStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	if s.enc == nil {
		return s.backend.Put(ctx, key, body, opts)
	}
	sealed, plainSize, tags, err := s.enc.encrypt(key, body)
	if err != nil {
		return ObjectInfo{}, err
	}
	meta := withTags(opts.Metadata, tags)
	info, err := s.backend.Put(ctx, key, sealed, PutOptions{ContentType: opts.ContentType, Metadata: meta})
	if err != nil {
		return ObjectInfo{}, err
	}
	info.Size, info.Metadata, info.Encrypted = plainSize, meta, true
	return info, nil
}

func (s *sealedStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	reader, info, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if _, sealed := info.Metadata[encryptionMetadataKey]; !sealed {
		return reader, info, nil
	}
	defer reader.Close()
	if s.enc == nil {
		return nil, ObjectInfo{}, ErrEncrypted
	}
	plain, size, err := s.enc.decrypt(key, reader)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	info.Size, info.Encrypted = size, true
	return plain, info, nil
}

func (s *sealedStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func withTags(meta, tags map[string]string) map[string]string {
	out := make(map[string]string, len(meta)+len(tags))
	maps.Copy(out, meta)
	maps.Copy(out, tags)
	return out
}
