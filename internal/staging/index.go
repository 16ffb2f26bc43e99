// Package staging keeps the set of files that the next commit will snapshot
// and classifies the working directory against it.
package staging

import (
	"fmt"
	"path"
	"sort"
	"strings"

	apperrors "minigit/internal/errors"
	"minigit/internal/object"
	"minigit/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

// Index maps repository-relative paths to content hashes. After a commit it
// mirrors the committed tree, so a path missing from the index is deleted by
// the next commit.
type Index struct {
	store *storage.BadgerStore
}

// NewIndex opens the index kept in db.
func NewIndex(db *badger.DB) *Index {
	return &Index{store: storage.NewBadgerStore(db, "index")}
}

// entry wraps one staged path to implement storage.Entity
type entry struct {
	Path string      `json:"path"`
	Hash object.Hash `json:"hash"`
}

func (e *entry) GetID() string { return e.Path }

// NormalizePath converts p to the slash-separated, cleaned form the index
// uses as its key.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	clean := path.Clean(p)
	if p == "" || clean == "." || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", apperrors.ValidationError(fmt.Sprintf("invalid path: %q", p), p)
	}
	return clean, nil
}

// Add stages p with content hash h, replacing any earlier entry. Staged
// entries that would collide with p in a tree are dropped: a file at one of
// p's parent directories, or anything below p.
func (i *Index) Add(p string, h object.Hash) error {
	norm, err := NormalizePath(p)
	if err != nil {
		return err
	}
	if !object.ValidHash(h) {
		return apperrors.InvalidHash(string(h))
	}
	if err := i.dropConflicts(norm); err != nil {
		return err
	}
	if err := i.store.Put(&entry{Path: norm, Hash: h}); err != nil {
		return fmt.Errorf("staging %s: %w", norm, err)
	}
	return nil
}

func (i *Index) dropConflicts(norm string) error {
	staged, err := i.store.IDs()
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	for _, s := range staged {
		if !strings.HasPrefix(norm, s+"/") && !strings.HasPrefix(s, norm+"/") {
			continue
		}
		if err := i.store.Delete(s); err != nil {
			return fmt.Errorf("unstaging %s: %w", s, err)
		}
	}
	return nil
}

// Remove unstages p. Removing a path that is not staged is a no-op.
func (i *Index) Remove(p string) error {
	norm, err := NormalizePath(p)
	if err != nil {
		return err
	}
	ok, err := i.store.Exists(norm)
	if err != nil {
		return fmt.Errorf("unstaging %s: %w", norm, err)
	}
	if !ok {
		return nil
	}
	return i.store.Delete(norm)
}

// Hash returns the staged hash for p.
func (i *Index) Hash(p string) (object.Hash, bool, error) {
	norm, err := NormalizePath(p)
	if err != nil {
		return "", false, err
	}

	var e entry
	if err := i.store.Get(norm, &e); err != nil {
		if apperrors.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return e.Hash, true, nil
}

// Files returns a copy of the staged path -> hash mapping.
func (i *Index) Files() (map[string]object.Hash, error) {
	var entries []entry
	if err := i.store.List(&entries); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	files := make(map[string]object.Hash, len(entries))
	for _, e := range entries {
		files[e.Path] = e.Hash
	}
	return files, nil
}

// Paths returns the staged paths in sorted order.
func (i *Index) Paths() ([]string, error) {
	ids, err := i.store.IDs()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (i *Index) Len() (int, error) {
	ids, err := i.store.IDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (i *Index) IsEmpty() (bool, error) {
	n, err := i.Len()
	return n == 0, err
}

// Clear unstages everything.
func (i *Index) Clear() error {
	return i.store.Clear()
}

// Replace atomically swaps the index contents for files.
func (i *Index) Replace(files map[string]object.Hash) error {
	entities := make([]storage.Entity, 0, len(files))
	for p, h := range files {
		norm, err := NormalizePath(p)
		if err != nil {
			return err
		}
		entities = append(entities, &entry{Path: norm, Hash: h})
	}
	if err := i.store.Replace(entities); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}
