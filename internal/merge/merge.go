// Package merge reconciles two descendants of a common base at whole-file
// granularity.
package merge

import (
	"sort"
)

// ConflictKind classifies why a path could not be merged automatically.
type ConflictKind string

const (
	// Both sides added the path with different content.
	AddAdd ConflictKind = "add-add"
	// Ours deleted the path while theirs modified it.
	DeleteModify ConflictKind = "delete-modify"
	// Ours modified the path while theirs deleted it.
	ModifyDelete ConflictKind = "modify-delete"
	// Both sides changed the path differently.
	ModifyModify ConflictKind = "modify-modify"
)

// Conflict keeps all three versions of a path. A side that did not have the
// file is recorded as the empty string.
type Conflict struct {
	Path   string       `json:"path"`
	Kind   ConflictKind `json:"kind"`
	Base   string       `json:"base"`
	Ours   string       `json:"ours"`
	Theirs string       `json:"theirs"`
}

// Format renders the conflict with standard markers. The base version is not
// rendered.
func (c *Conflict) Format() string {
	return "<<<<<<< HEAD\n" + c.Ours + "\n=======\n" + c.Theirs + "\n>>>>>>>\n"
}

// Result is the outcome of merging a set of files.
type Result struct {
	Success   bool
	Merged    map[string]string
	Conflicts []Conflict
}

// Paths returns the merged paths in sorted order.
func (r *Result) Paths() []string {
	paths := make([]string, 0, len(r.Merged))
	for p := range r.Merged {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ConflictPaths returns the conflicting paths in sorted order.
func (r *Result) ConflictPaths() []string {
	paths := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		paths[i] = c.Path
	}
	return paths
}

// ResolveFile decides one path. A nil argument means the file is absent on
// that side. It returns the merged content (nil when the path is dropped) or
// a conflict, never both.
func ResolveFile(path string, base, ours, theirs *string) (*string, *Conflict) {
	if base == nil {
		switch {
		case ours == nil && theirs == nil:
			return nil, nil
		case ours == nil:
			return theirs, nil
		case theirs == nil:
			return ours, nil
		case *ours == *theirs:
			return ours, nil
		default:
			return nil, newConflict(path, AddAdd, base, ours, theirs)
		}
	}

	switch {
	case ours == nil && theirs == nil:
		return nil, nil
	case ours == nil:
		if *theirs == *base {
			return nil, nil
		}
		return nil, newConflict(path, DeleteModify, base, ours, theirs)
	case theirs == nil:
		if *ours == *base {
			return nil, nil
		}
		return nil, newConflict(path, ModifyDelete, base, ours, theirs)
	case *ours == *theirs:
		return ours, nil
	case *ours == *base:
		return theirs, nil
	case *theirs == *base:
		return ours, nil
	default:
		return nil, newConflict(path, ModifyModify, base, ours, theirs)
	}
}

func newConflict(path string, kind ConflictKind, base, ours, theirs *string) *Conflict {
	return &Conflict{
		Path:   path,
		Kind:   kind,
		Base:   deref(base),
		Ours:   deref(ours),
		Theirs: deref(theirs),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func lookup(files map[string]string, path string) *string {
	if content, ok := files[path]; ok {
		return &content
	}
	return nil
}

// Perform merges every path in the union of the three file sets. Every path
// is attempted; conflicts are collected rather than stopping the merge.
func Perform(base, ours, theirs map[string]string) *Result {
	union := make(map[string]struct{}, len(base)+len(ours)+len(theirs))
	for _, files := range []map[string]string{base, ours, theirs} {
		for p := range files {
			union[p] = struct{}{}
		}
	}

	paths := make([]string, 0, len(union))
	for p := range union {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	result := &Result{Merged: make(map[string]string)}
	for _, p := range paths {
		merged, conflict := ResolveFile(p, lookup(base, p), lookup(ours, p), lookup(theirs, p))
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			continue
		}
		if merged != nil {
			result.Merged[p] = *merged
		}
	}

	result.Success = len(result.Conflicts) == 0
	return result
}
