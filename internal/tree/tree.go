// Package tree models a directory snapshot as a hierarchy of named nodes whose
// leaves reference file content by hash.
package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	apperrors "minigit/internal/errors"
	"minigit/internal/object"
)

var (
	ErrInvalidPath  = errors.New("invalid tree path")
	ErrPathConflict = errors.New("path conflicts with existing entry")
)

// Kind distinguishes files from directories.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Node is a file or directory in a Tree. Directories own their children.
type Node struct {
	Name     string
	Kind     Kind
	Hash     object.Hash // files only
	children map[string]*Node
}

func newDir(name string) *Node {
	return &Node{Name: name, Kind: KindDir, children: make(map[string]*Node)}
}

// IsFile reports whether n is a leaf.
func (n *Node) IsFile() bool { return n.Kind == KindFile }

// Child returns the named child of a directory.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// ChildNames returns the names of n's children in sorted order.
func (n *Node) ChildNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tree is the root directory of one snapshot.
type Tree struct {
	root *Node
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: newDir(".")}
}

// FromMap builds a tree from a path -> content hash mapping, such as the
// staging area's file set.
func FromMap(files map[string]object.Hash) (*Tree, error) {
	t := New()
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := t.AddFile(p, files[p]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Root returns the root directory node.
func (t *Tree) Root() *Node { return t.root }

// AddFile inserts or overwrites the file at p, creating intermediate
// directories. Cost is proportional to the depth of p.
func (t *Tree) AddFile(p string, hash object.Hash) error {
	parts, err := splitPath(p)
	if err != nil {
		return err
	}
	if hash == "" {
		return fmt.Errorf("%w: %s: empty content hash", ErrInvalidPath, p)
	}

	current := t.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := current.children[part]
		if !ok {
			child = newDir(part)
			current.children[part] = child
		} else if child.IsFile() {
			return fmt.Errorf("%w: %s is a file", ErrPathConflict, part)
		}
		current = child
	}

	name := parts[len(parts)-1]
	if existing, ok := current.children[name]; ok && !existing.IsFile() {
		return fmt.Errorf("%w: %s is a directory", ErrPathConflict, p)
	}
	current.children[name] = &Node{Name: name, Kind: KindFile, Hash: hash}
	return nil
}

// FileHash returns the content hash of the file at p. It reports false when
// any component is missing or p names a directory.
func (t *Tree) FileHash(p string) (object.Hash, bool) {
	parts, err := splitPath(p)
	if err != nil {
		return "", false
	}

	current := t.root
	for _, part := range parts {
		if current.IsFile() {
			return "", false
		}
		child, ok := current.children[part]
		if !ok {
			return "", false
		}
		current = child
	}

	if !current.IsFile() {
		return "", false
	}
	return current.Hash, true
}

// Files lists every file path depth-first, visiting children in name order.
func (t *Tree) Files() []string {
	var files []string

	var walk func(n *Node, prefix string)
	walk = func(n *Node, prefix string) {
		for _, name := range n.ChildNames() {
			child := n.children[name]
			childPath := name
			if prefix != "" {
				childPath = prefix + "/" + name
			}
			if child.IsFile() {
				files = append(files, childPath)
			} else {
				walk(child, childPath)
			}
		}
	}
	walk(t.root, "")

	return files
}

// ToMap flattens the tree into path -> content hash.
func (t *Tree) ToMap() map[string]object.Hash {
	files := t.Files()
	out := make(map[string]object.Hash, len(files))
	for _, p := range files {
		h, _ := t.FileHash(p)
		out[p] = h
	}
	return out
}

// Len returns the number of files in the tree.
func (t *Tree) Len() int {
	return len(t.Files())
}

func splitPath(p string) ([]string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return strings.Split(clean, "/"), nil
}

// encodedNode is the canonical serialized form. Children are sorted by name,
// so equal trees always encode to equal bytes.
type encodedNode struct {
	Name     string        `json:"name"`
	Type     Kind          `json:"type"`
	Hash     object.Hash   `json:"hash,omitempty"`
	Children []encodedNode `json:"children,omitempty"`
}

func encode(n *Node) encodedNode {
	out := encodedNode{Name: n.Name, Type: n.Kind}
	if n.IsFile() {
		out.Hash = n.Hash
		return out
	}
	for _, name := range n.ChildNames() {
		out.Children = append(out.Children, encode(n.children[name]))
	}
	return out
}

func decode(e encodedNode) (*Node, error) {
	switch e.Type {
	case KindFile:
		if e.Hash == "" {
			return nil, fmt.Errorf("file %q has no content hash", e.Name)
		}
		if len(e.Children) > 0 {
			return nil, fmt.Errorf("file %q has children", e.Name)
		}
		return &Node{Name: e.Name, Kind: KindFile, Hash: e.Hash}, nil
	case KindDir:
		n := newDir(e.Name)
		for _, c := range e.Children {
			if c.Name == "" || strings.Contains(c.Name, "/") {
				return nil, fmt.Errorf("invalid entry name %q in %q", c.Name, e.Name)
			}
			if _, dup := n.children[c.Name]; dup {
				return nil, fmt.Errorf("duplicate entry %q in %q", c.Name, e.Name)
			}
			child, err := decode(c)
			if err != nil {
				return nil, err
			}
			n.children[c.Name] = child
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", e.Type)
	}
}

// Marshal serializes the whole tree.
func (t *Tree) Marshal() ([]byte, error) {
	return json.Marshal(encode(t.root))
}

// Unmarshal rebuilds a tree produced by Marshal.
func Unmarshal(data []byte) (*Tree, error) {
	var e encodedNode
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	if e.Type != KindDir {
		return nil, fmt.Errorf("decoding tree: root is %q, want %q", e.Type, KindDir)
	}
	root, err := decode(e)
	if err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	return &Tree{root: root}, nil
}

// Write stores the serialized tree as a single object.
func (t *Tree) Write(store object.Interface) (object.Hash, error) {
	data, err := t.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshaling tree: %w", err)
	}
	return store.Store(data)
}

// Read loads the tree stored under h.
func Read(store object.Interface, h object.Hash) (*Tree, error) {
	data, err := store.Retrieve(h)
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", h.Short(), err)
	}
	t, err := Unmarshal(data)
	if err != nil {
		return nil, apperrors.MalformedObject(string(h), err.Error())
	}
	return t, nil
}
