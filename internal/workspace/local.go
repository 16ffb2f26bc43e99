// internal/workspace/local.go
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "minigit/internal/errors"
	"minigit/internal/object"

	"go.uber.org/zap"
	"golang.org/x/exp/mmap"
)

// MetaDir is the repository metadata directory at the workspace root.
const MetaDir = ".minigit"

// mmapThreshold is the size from which files are memory-mapped instead of
// read into a buffer.
const mmapThreshold = 1 << 20

// FindRoot searches upward from startDir for a directory holding MetaDir.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, MetaDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", apperrors.NotRepository(startDir)
}

// Local is the working directory of a repository.
type Local struct {
	Root   string
	ignore map[string]bool
	logger *zap.Logger
}

// NewLocal returns a workspace rooted at root. Names in ignore are skipped at
// any depth, as are dot-entries and MetaDir.
func NewLocal(root string, ignore []string, logger *zap.Logger) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	set := map[string]bool{MetaDir: true}
	for _, name := range ignore {
		set[name] = true
	}

	return &Local{Root: abs, ignore: set, logger: logger}, nil
}

// ShouldIgnore reports whether the root-relative path rel is excluded.
func (w *Local) ShouldIgnore(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" {
			continue
		}
		if w.ignore[part] || part[0] == '.' {
			return true
		}
	}
	return false
}

// Resolve turns a user-supplied path into its root-relative slash form and
// absolute form. Relative paths are taken relative to the root.
func (w *Local) Resolve(p string) (rel string, abs string, err error) {
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
	} else {
		abs = filepath.Join(w.Root, p)
	}

	r, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", p, err)
	}
	if r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", "", apperrors.ValidationError(fmt.Sprintf("path outside repository: %s", p), p)
	}
	return filepath.ToSlash(r), abs, nil
}

// Expand resolves paths and replaces directories by the files beneath them.
// The result is sorted and free of ignored entries.
func (w *Local) Expand(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, p := range paths {
		rel, abs, err := w.Resolve(p)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("accessing path %s: %w", p, err)
		}
		if !info.IsDir() {
			if rel != "." && !w.ShouldIgnore(rel) {
				seen[rel] = true
			}
			continue
		}

		files, err := w.walk(abs, nil)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			seen[f] = true
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Scan hashes every non-ignored regular file under the root.
func (w *Local) Scan() (map[string]object.Hash, error) {
	files := make(map[string]object.Hash)
	_, err := w.walk(w.Root, func(rel, abs string) error {
		h, err := HashFile(abs)
		if err != nil {
			return err
		}
		files[rel] = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning workspace: %w", err)
	}
	return files, nil
}

// walk visits regular files below dir and returns their root-relative paths.
func (w *Local) walk(dir string, visit func(rel, abs string) error) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return fmt.Errorf("getting relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.ShouldIgnore(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.ShouldIgnore(rel) {
			return nil
		}

		out = append(out, rel)
		if visit != nil {
			return visit(rel, path)
		}
		return nil
	})
	return out, err
}

// ReadFile returns the content of the root-relative path rel.
func (w *Local) ReadFile(rel string) ([]byte, error) {
	_, abs, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return readFile(abs)
}

// Exists reports whether rel names a regular file in the workspace.
func (w *Local) Exists(rel string) bool {
	_, abs, err := w.Resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// HashFile computes the object hash of the file at path without storing it.
func HashFile(path string) (object.Hash, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() < mmapThreshold {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return object.HashBytes(data), nil
	}

	reader, err := mmap.Open(path)
	if err != nil {
		return "", fmt.Errorf("mapping %s: %w", path, err)
	}
	defer reader.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, io.NewSectionReader(reader, 0, int64(reader.Len()))); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return object.Hash(hex.EncodeToString(hasher.Sum(nil))), nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() < mmapThreshold {
		return os.ReadFile(path)
	}

	reader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	defer reader.Close()

	data := make([]byte, reader.Len())
	if _, err := reader.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
