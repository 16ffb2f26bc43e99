package repository

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"minigit/internal/commit"
	"minigit/internal/diff"
	apperrors "minigit/internal/errors"
	"minigit/internal/object"
	"minigit/internal/refs"
	"minigit/internal/staging"
	"minigit/internal/tree"

	"go.uber.org/zap"
)

// AddResult reports what happened to one argument of Add.
type AddResult struct {
	Path string
	Hash object.Hash
	Err  error
}

// Add stores the content of each file and stages it. Directories are
// expanded. Paths that cannot be added are reported in the results without
// stopping the others; only storage failures abort.
func (r *Repository) Add(paths []string) ([]AddResult, error) {
	var results []AddResult
	for _, p := range paths {
		files, err := r.workspace.Expand([]string{p})
		if err != nil {
			results = append(results, AddResult{Path: p, Err: err})
			continue
		}
		if len(files) == 0 {
			results = append(results, AddResult{Path: p, Err: apperrors.ValidationError("no files to add", p)})
			continue
		}

		for _, rel := range files {
			data, err := r.workspace.ReadFile(rel)
			if err != nil {
				results = append(results, AddResult{Path: rel, Err: err})
				continue
			}
			h, err := r.objects.Store(data)
			if err != nil {
				return results, fmt.Errorf("storing %s: %w", rel, err)
			}
			if err := r.index.Add(rel, h); err != nil {
				return results, err
			}
			results = append(results, AddResult{Path: rel, Hash: h})
			r.logger.Debug("staged file", zap.String("path", rel), zap.String("hash", h.Short()))
		}
	}
	return results, nil
}

// Remove unstages paths so the next commit drops them. A directory argument
// unstages everything beneath it. It returns the paths actually removed.
func (r *Repository) Remove(paths []string) ([]string, error) {
	staged, err := r.index.Paths()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, p := range paths {
		rel, _, err := r.workspace.Resolve(p)
		if err != nil {
			return removed, err
		}
		for _, s := range staged {
			if s != rel && rel != "." && !strings.HasPrefix(s, rel+"/") {
				continue
			}
			if err := r.index.Remove(s); err != nil {
				return removed, err
			}
			removed = append(removed, s)
		}
	}
	return removed, nil
}

// currentTip returns the checked-out branch and its commit, which is empty
// before the first commit.
func (r *Repository) currentTip() (string, object.Hash, error) {
	name, err := r.refs.Current()
	if err != nil {
		return "", "", fmt.Errorf("reading current branch: %w", err)
	}
	b, err := r.refs.Get(name)
	if err != nil {
		return "", "", err
	}
	return name, b.Commit, nil
}

// Commit snapshots the staging area onto the current branch.
func (r *Repository) Commit(message string) (*commit.Commit, error) {
	branch, parent, err := r.currentTip()
	if err != nil {
		return nil, err
	}

	files, err := r.index.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 && parent == "" {
		return nil, apperrors.ErrNothingToCommit
	}

	t, err := tree.FromMap(files)
	if err != nil {
		return nil, fmt.Errorf("building tree: %w", err)
	}
	treeHash, err := t.Write(r.objects)
	if err != nil {
		return nil, fmt.Errorf("storing tree: %w", err)
	}

	if parent != "" {
		pc, err := r.commits.Get(parent)
		if err != nil {
			return nil, err
		}
		if pc.Tree == treeHash {
			return nil, apperrors.ErrNothingToCommit
		}
	}

	h, err := r.commits.Create(treeHash, parent, message, r.Config.Author)
	if err != nil {
		return nil, err
	}
	if err := r.refs.Update(branch, h); err != nil {
		return nil, err
	}

	r.logger.Info("committed",
		zap.String("branch", branch),
		zap.String("commit", h.Short()),
		zap.Int("files", len(files)))

	return r.commits.Get(h)
}

// Log returns up to limit commits of the current branch, newest first.
func (r *Repository) Log(limit int) ([]*commit.Commit, error) {
	_, tip, err := r.currentTip()
	if err != nil {
		return nil, err
	}
	if tip == "" {
		return nil, nil
	}
	return r.commits.History(tip, limit)
}

// commitFiles returns the path -> content hash view of a commit's tree.
func (r *Repository) commitFiles(h object.Hash) (map[string]object.Hash, error) {
	if h == "" {
		return map[string]object.Hash{}, nil
	}
	c, err := r.commits.Get(h)
	if err != nil {
		return nil, err
	}
	t, err := tree.Read(r.objects, c.Tree)
	if err != nil {
		return nil, err
	}
	return t.ToMap(), nil
}

// commitContents expands a commit to path -> file content.
func (r *Repository) commitContents(h object.Hash) (map[string]string, error) {
	files, err := r.commitFiles(h)
	if err != nil {
		return nil, err
	}
	contents := make(map[string]string, len(files))
	for p, fh := range files {
		data, err := r.objects.Retrieve(fh)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		contents[p] = string(data)
	}
	return contents, nil
}

// Status compares the working directory, the staging area and the last
// commit of the current branch.
func (r *Repository) Status() (*staging.Status, error) {
	_, tip, err := r.currentTip()
	if err != nil {
		return nil, err
	}

	working, err := r.workspace.Scan()
	if err != nil {
		return nil, err
	}
	staged, err := r.index.Files()
	if err != nil {
		return nil, err
	}
	committed, err := r.commitFiles(tip)
	if err != nil {
		return nil, err
	}

	return staging.Classify(working, staged, committed), nil
}

// CurrentBranch returns the checked-out branch name.
func (r *Repository) CurrentBranch() (string, error) {
	return r.refs.Current()
}

// Branches lists all branches sorted by name.
func (r *Repository) Branches() ([]*refs.Branch, error) {
	return r.refs.List()
}

// BranchNames lists branch names sorted.
func (r *Repository) BranchNames() ([]string, error) {
	return r.refs.Names()
}

// CreateBranch starts a branch at the current commit.
func (r *Repository) CreateBranch(name string) (*refs.Branch, error) {
	_, tip, err := r.currentTip()
	if err != nil {
		return nil, err
	}
	if tip == "" {
		return nil, apperrors.ValidationError("cannot create a branch before the first commit", name)
	}
	return r.refs.Create(name, tip)
}

// DeleteBranch removes a branch other than the current one.
func (r *Repository) DeleteBranch(name string) error {
	return r.refs.Delete(name)
}

// Checkout switches to name and resets the staging area to its tree. Working
// files are left untouched.
func (r *Repository) Checkout(name string) error {
	b, err := r.refs.Get(name)
	if err != nil {
		return err
	}
	files, err := r.commitFiles(b.Commit)
	if err != nil {
		return err
	}
	if err := r.index.Replace(files); err != nil {
		return err
	}
	if err := r.refs.Switch(name); err != nil {
		return err
	}

	r.logger.Info("switched branch", zap.String("branch", name))
	return nil
}

// Resolve maps a branch name or full commit hash to a commit hash.
func (r *Repository) Resolve(rev string) (object.Hash, error) {
	b, err := r.refs.Get(rev)
	if err == nil {
		if b.Commit == "" {
			return "", apperrors.NotFound(fmt.Sprintf("branch %s has no commits", rev))
		}
		return b.Commit, nil
	}
	if !apperrors.IsNotFound(err) {
		return "", err
	}

	h := object.Hash(rev)
	if !object.ValidHash(h) {
		return "", apperrors.NotFound(fmt.Sprintf("unknown revision: %s", rev))
	}
	if _, err := r.commits.Get(h); err != nil {
		return "", err
	}
	return h, nil
}

func (r *Repository) engine(contextLines int) *diff.Engine {
	if contextLines < 0 {
		contextLines = r.Config.Diff.ContextLines
	}
	return diff.NewEngine(contextLines)
}

// Diff compares the committed version of path on the current branch with the
// working file. A side that does not exist counts as empty. contextLines < 0
// uses the configured default.
func (r *Repository) Diff(path string, contextLines int) (*diff.Result, error) {
	rel, _, err := r.workspace.Resolve(path)
	if err != nil {
		return nil, err
	}
	_, tip, err := r.currentTip()
	if err != nil {
		return nil, err
	}

	committed, err := r.fileAt(tip, rel)
	if err != nil {
		return nil, err
	}

	working := ""
	data, err := r.workspace.ReadFile(rel)
	switch {
	case err == nil:
		working = string(data)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	return r.engine(contextLines).Diff(committed, working), nil
}

// DiffCommits compares path between two commits.
func (r *Repository) DiffCommits(a, b object.Hash, path string, contextLines int) (*diff.Result, error) {
	rel, _, err := r.workspace.Resolve(path)
	if err != nil {
		return nil, err
	}
	old, err := r.fileAt(a, rel)
	if err != nil {
		return nil, err
	}
	cur, err := r.fileAt(b, rel)
	if err != nil {
		return nil, err
	}
	return r.engine(contextLines).Diff(old, cur), nil
}

// ChangedPaths lists the paths whose content differs between two commits.
func (r *Repository) ChangedPaths(a, b object.Hash) ([]string, error) {
	left, err := r.commitFiles(a)
	if err != nil {
		return nil, err
	}
	right, err := r.commitFiles(b)
	if err != nil {
		return nil, err
	}

	var changed []string
	for p, h := range left {
		if right[p] != h {
			changed = append(changed, p)
		}
	}
	for p := range right {
		if _, ok := left[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// fileAt returns the content of rel in commit h, or "" when absent.
func (r *Repository) fileAt(h object.Hash, rel string) (string, error) {
	files, err := r.commitFiles(h)
	if err != nil {
		return "", err
	}
	fh, ok := files[rel]
	if !ok {
		return "", nil
	}
	data, err := r.objects.Retrieve(fh)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", rel, err)
	}
	return string(data), nil
}
