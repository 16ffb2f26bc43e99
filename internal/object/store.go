// internal/object/store.go
package object

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "minigit/internal/errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Interface is the content-addressable object store used by the tree and
// commit layers.
type Interface interface {
	Store(payload []byte) (Hash, error)
	Retrieve(h Hash) ([]byte, error)
	Exists(h Hash) bool
}

// Options configures FileStore behavior
type Options struct {
	Root        string // Directory holding the hash-prefix shards
	CacheSize   int    // Number of decoded payloads to keep in memory
	Compression CompressionOptions
	Logger      *zap.Logger
}

// FileStore persists objects under root/<h[:2]>/<h[2:]>.
type FileStore struct {
	root   string
	cache  *lru.Cache[Hash, []byte]
	codec  *compressionManager
	logger *zap.Logger
}

// NewFileStore creates the root directory and returns a store over it.
func NewFileStore(opts Options) (*FileStore, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating object directory: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	cache, err := lru.New[Hash, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	codec, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compression manager: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileStore{
		root:   opts.Root,
		cache:  cache,
		codec:  codec,
		logger: logger,
	}, nil
}

// Store writes payload under its digest and returns the digest. Storing a
// payload that is already present is a no-op.
func (s *FileStore) Store(payload []byte) (Hash, error) {
	if payload == nil {
		payload = []byte{}
	}

	h := HashBytes(payload)
	if s.Exists(h) {
		return h, nil
	}

	dest := s.objectPath(h)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating object shard: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp object: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(s.codec.encode(payload)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing object: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		// A concurrent writer of the same payload got there first
		if _, statErr := os.Stat(dest); statErr == nil {
			return h, nil
		}
		return "", fmt.Errorf("renaming object: %w", err)
	}

	s.cache.Add(h, clone(payload))
	s.logger.Debug("stored object", zap.String("hash", h.Short()), zap.Int("size", len(payload)))

	return h, nil
}

// Retrieve returns the payload stored under h.
func (s *FileStore) Retrieve(h Hash) ([]byte, error) {
	if !ValidHash(h) {
		return nil, apperrors.InvalidHash(string(h))
	}

	if payload, ok := s.cache.Get(h); ok {
		return clone(payload), nil
	}

	payload, err := s.readPayload(h)
	if err != nil {
		return nil, err
	}

	s.cache.Add(h, payload)
	return clone(payload), nil
}

// Exists reports whether h is present without reading the payload.
func (s *FileStore) Exists(h Hash) bool {
	if !ValidHash(h) {
		return false
	}
	if s.cache.Contains(h) {
		return true
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Verify re-reads h from disk and checks its digest.
func (s *FileStore) Verify(h Hash) error {
	if !ValidHash(h) {
		return apperrors.InvalidHash(string(h))
	}
	payload, err := s.readPayload(h)
	if err != nil {
		return err
	}
	if HashBytes(payload) != h {
		return apperrors.MalformedObject(string(h), "content hash mismatch")
	}
	return nil
}

func (s *FileStore) readPayload(h Hash) ([]byte, error) {
	stored, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ObjectNotFound(string(h))
		}
		return nil, fmt.Errorf("reading object %s: %w", h.Short(), err)
	}

	payload, err := s.codec.decode(stored)
	if err != nil {
		return nil, apperrors.MalformedObject(string(h), err.Error())
	}
	return payload, nil
}

func (s *FileStore) objectPath(h Hash) string {
	return filepath.Join(s.root, string(h[:2]), string(h[2:]))
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
