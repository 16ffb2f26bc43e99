// Package refs maps branch names to commit hashes and tracks the current
// branch.
package refs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	apperrors "minigit/internal/errors"
	"minigit/internal/object"
	"minigit/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const headID = "HEAD"

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+(/[A-Za-z0-9._-]+)*$`)

// Branch points at a commit.
type Branch struct {
	Name      string      `json:"name"`
	Commit    object.Hash `json:"commit"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (b *Branch) GetID() string { return b.Name }

// head records the checked-out branch
type head struct {
	Branch string `json:"branch"`
}

func (h *head) GetID() string { return headID }

// Table is the branch table of one repository.
type Table struct {
	branches *storage.BadgerStore
	head     *storage.BadgerStore
	logger   *zap.Logger
}

func NewTable(db *badger.DB, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		branches: storage.NewBadgerStore(db, "branch"),
		head:     storage.NewBadgerStore(db, "ref"),
		logger:   logger,
	}
}

// ValidateName checks that name can be used as a branch name.
func ValidateName(name string) error {
	if name == headID || !validName.MatchString(name) ||
		strings.Contains(name, "..") || strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return apperrors.ValidationError(fmt.Sprintf("invalid branch name: %q", name), name)
	}
	return nil
}

// Create adds a branch pointing at commit. It fails if the name is taken.
func (t *Table) Create(name string, commit object.Hash) (*Branch, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b := &Branch{Name: name, Commit: commit, CreatedAt: now, UpdatedAt: now}
	if err := t.branches.Create(b); err != nil {
		return nil, fmt.Errorf("creating branch: %w", err)
	}

	t.logger.Info("created branch", zap.String("branch", name), zap.String("commit", commit.Short()))
	return b, nil
}

func (t *Table) Get(name string) (*Branch, error) {
	var b Branch
	if err := t.branches.Get(name, &b); err != nil {
		return nil, fmt.Errorf("getting branch: %w", err)
	}
	return &b, nil
}

func (t *Table) Exists(name string) (bool, error) {
	return t.branches.Exists(name)
}

// Update moves an existing branch to commit.
func (t *Table) Update(name string, commit object.Hash) error {
	b, err := t.Get(name)
	if err != nil {
		return err
	}
	b.Commit = commit
	b.UpdatedAt = time.Now().UTC()

	if err := t.branches.Update(b); err != nil {
		return fmt.Errorf("updating branch: %w", err)
	}
	t.logger.Debug("moved branch", zap.String("branch", name), zap.String("commit", commit.Short()))
	return nil
}

// Delete removes a branch. The current branch cannot be deleted.
func (t *Table) Delete(name string) error {
	current, err := t.Current()
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if name == current {
		return apperrors.ValidationError(fmt.Sprintf("cannot delete the current branch %q", name), name)
	}

	if err := t.branches.Delete(name); err != nil {
		return fmt.Errorf("deleting branch: %w", err)
	}
	t.logger.Info("deleted branch", zap.String("branch", name))
	return nil
}

// List returns all branches sorted by name.
func (t *Table) List() ([]*Branch, error) {
	var branches []*Branch
	if err := t.branches.List(&branches); err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// Names returns the sorted branch names.
func (t *Table) Names() ([]string, error) {
	branches, err := t.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(branches))
	for i, b := range branches {
		names[i] = b.Name
	}
	return names, nil
}

// Switch makes name the current branch.
func (t *Table) Switch(name string) error {
	ok, err := t.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("branch not found: %s", name))
	}
	if err := t.head.Put(&head{Branch: name}); err != nil {
		return fmt.Errorf("switching branch: %w", err)
	}
	return nil
}

// Current returns the checked-out branch name.
func (t *Table) Current() (string, error) {
	var h head
	if err := t.head.Get(headID, &h); err != nil {
		return "", err
	}
	return h.Branch, nil
}

// CurrentCommit returns the tip of the checked-out branch.
func (t *Table) CurrentCommit() (object.Hash, error) {
	name, err := t.Current()
	if err != nil {
		return "", err
	}
	b, err := t.Get(name)
	if err != nil {
		return "", err
	}
	return b.Commit, nil
}
