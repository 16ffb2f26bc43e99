// Package commit stores commits in the object store and walks their parent
// chains.
package commit

import (
	"fmt"
	"strings"
	"time"

	apperrors "minigit/internal/errors"
	"minigit/internal/object"

	"go.uber.org/zap"
)

// Commit links a tree snapshot to at most one parent. Hash is not part of the
// stored record; it is filled in from the object's address.
type Commit struct {
	Hash      object.Hash `json:"-"`
	Tree      object.Hash `json:"tree"`
	Parent    object.Hash `json:"parent,omitempty"`
	Message   string      `json:"message"`
	Author    string      `json:"author"`
	Timestamp time.Time   `json:"timestamp"`
}

// IsRoot reports whether c has no parent.
func (c *Commit) IsRoot() bool { return c.Parent == "" }

// String renders c the way `minigit log` prints it.
func (c *Commit) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.Hash)
	fmt.Fprintf(&b, "Author: %s\n", c.Author)
	fmt.Fprintf(&b, "Date:   %s\n\n", c.Timestamp.Local().Format(time.RFC1123Z))
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}

// Option customizes a Graph.
type Option func(*Graph)

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// Graph creates and traverses commits held in an object store.
type Graph struct {
	store  object.Interface
	now    func() time.Time
	logger *zap.Logger
}

func NewGraph(store object.Interface, opts ...Option) *Graph {
	g := &Graph{
		store:  store,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create stores a new commit and returns its hash. An empty parent makes a
// root commit.
func (g *Graph) Create(tree, parent object.Hash, message, author string) (object.Hash, error) {
	if tree == "" {
		return "", apperrors.ValidationError("commit tree is required", nil)
	}
	if strings.TrimSpace(message) == "" {
		return "", apperrors.ValidationError("commit message is required", nil)
	}
	if parent != "" && !g.store.Exists(parent) {
		return "", apperrors.ObjectNotFound(string(parent))
	}

	c := Commit{
		Tree:      tree,
		Parent:    parent,
		Message:   message,
		Author:    author,
		Timestamp: g.now().UTC(),
	}

	h, err := object.StoreJSON(g.store, c)
	if err != nil {
		return "", fmt.Errorf("storing commit: %w", err)
	}

	g.logger.Debug("created commit",
		zap.String("hash", h.Short()),
		zap.String("parent", parent.Short()),
		zap.String("tree", tree.Short()))

	return h, nil
}

// Get loads the commit stored under h.
func (g *Graph) Get(h object.Hash) (*Commit, error) {
	var c Commit
	if err := object.RetrieveJSON(g.store, h, &c); err != nil {
		return nil, err
	}
	if c.Tree == "" {
		return nil, apperrors.MalformedObject(string(h), "commit has no tree")
	}
	c.Hash = h
	return &c, nil
}

// History follows parent links from start, newest first. limit <= 0 walks to
// the root.
func (g *Graph) History(start object.Hash, limit int) ([]*Commit, error) {
	var commits []*Commit
	for h := start; h != ""; {
		if limit > 0 && len(commits) >= limit {
			break
		}
		c, err := g.Get(h)
		if err != nil {
			return nil, fmt.Errorf("walking history: %w", err)
		}
		commits = append(commits, c)
		h = c.Parent
	}
	return commits, nil
}

// ancestors returns h and every commit reachable from it.
func (g *Graph) ancestors(h object.Hash) (map[object.Hash]struct{}, error) {
	set := make(map[object.Hash]struct{})
	for h != "" {
		c, err := g.Get(h)
		if err != nil {
			return nil, err
		}
		set[h] = struct{}{}
		h = c.Parent
	}
	return set, nil
}

// FindCommonAncestor returns the first commit on b's chain that is also on
// a's chain. It reports false for unrelated histories.
func (g *Graph) FindCommonAncestor(a, b object.Hash) (object.Hash, bool, error) {
	seen, err := g.ancestors(a)
	if err != nil {
		return "", false, fmt.Errorf("collecting ancestors of %s: %w", a.Short(), err)
	}

	for h := b; h != ""; {
		if _, ok := seen[h]; ok {
			return h, true, nil
		}
		c, err := g.Get(h)
		if err != nil {
			return "", false, fmt.Errorf("walking ancestors of %s: %w", b.Short(), err)
		}
		h = c.Parent
	}
	return "", false, nil
}

// IsAncestor reports whether a is reachable from b. A commit is its own
// ancestor.
func (g *Graph) IsAncestor(a, b object.Hash) (bool, error) {
	for h := b; h != ""; {
		if h == a {
			return true, nil
		}
		c, err := g.Get(h)
		if err != nil {
			return false, err
		}
		h = c.Parent
	}
	return false, nil
}

// Count returns the number of commits reachable from h, h included.
func (g *Graph) Count(h object.Hash) (int, error) {
	n := 0
	for h != "" {
		c, err := g.Get(h)
		if err != nil {
			return 0, err
		}
		n++
		h = c.Parent
	}
	return n, nil
}
