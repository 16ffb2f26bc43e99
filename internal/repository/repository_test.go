package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"minigit/internal/config"
	apperrors "minigit/internal/errors"
	"minigit/internal/merge"
	"minigit/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	t.Setenv(config.EnvUserConfig, "")
	repo, err := Init(t.TempDir(), "tester", WithClock(testClock()))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func write(t *testing.T, repo *Repository, rel, content string) {
	t.Helper()
	path := filepath.Join(repo.Root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func addAndCommit(t *testing.T, repo *Repository, message string, paths ...string) {
	t.Helper()
	results, err := repo.Add(paths)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err, r.Path)
	}
	_, err = repo.Commit(message)
	require.NoError(t, err)
}

func TestInitAndOpen(t *testing.T) {
	repo := setupRepo(t)

	assert.DirExists(t, filepath.Join(repo.Root, ".minigit", "objects"))
	assert.FileExists(t, filepath.Join(repo.Root, ".minigit", "config.json"))
	assert.Equal(t, "tester", repo.Config.Author)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	commits, err := repo.Log(0)
	require.NoError(t, err)
	assert.Empty(t, commits)

	_, err = Init(repo.Root, "again")
	assert.Error(t, err)

	_, err = Open(t.TempDir())
	assert.True(t, errors.Is(err, apperrors.ErrNotRepository))
}

func TestReopenKeepsState(t *testing.T) {
	t.Setenv(config.EnvUserConfig, "")
	root := t.TempDir()

	repo, err := Init(root, "alice")
	require.NoError(t, err)
	write(t, repo, "a.txt", "a")
	addAndCommit(t, repo, "first", "a.txt")
	require.NoError(t, repo.Close())

	repo, err = Discover(filepath.Join(root, "."))
	require.NoError(t, err)
	defer repo.Close()

	commits, err := repo.Log(0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "first", commits[0].Message)
	assert.Equal(t, "alice", commits[0].Author)
}

func TestCommitFlow(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.Commit("empty")
	assert.True(t, errors.Is(err, apperrors.ErrNothingToCommit))

	write(t, repo, "README.md", "hello\n")
	write(t, repo, "src/main.go", "package main\n")
	addAndCommit(t, repo, "initial", ".")

	_, err = repo.Commit("again")
	assert.True(t, errors.Is(err, apperrors.ErrNothingToCommit))

	write(t, repo, "README.md", "hello world\n")
	addAndCommit(t, repo, "update readme", "README.md")

	commits, err := repo.Log(0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "update readme", commits[0].Message)
	assert.Equal(t, commits[1].Hash, commits[0].Parent)

	count, err := repo.Commits().Count(commits[0].Hash)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	limited, err := repo.Log(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	changed, err := repo.ChangedPaths(commits[1].Hash, commits[0].Hash)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, changed)
}

func TestAddReportsFailures(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "ok.txt", "ok")

	results, err := repo.Add([]string{"ok.txt", "missing.txt"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.True(t, repo.Objects().Exists(results[0].Hash))
	assert.Error(t, results[1].Err)
}

func TestRemoveDropsFileFromNextCommit(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "keep.txt", "k")
	write(t, repo, "drop/one.txt", "1")
	write(t, repo, "drop/two.txt", "2")
	addAndCommit(t, repo, "initial", ".")

	removed, err := repo.Remove([]string{"drop"})
	require.NoError(t, err)
	assert.Equal(t, []string{"drop/one.txt", "drop/two.txt"}, removed)

	status, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{"drop/one.txt", "drop/two.txt"}, status.StagedDeleted)

	c, err := repo.Commit("remove drop")
	require.NoError(t, err)

	files, err := repo.commitFiles(c.Hash)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "keep.txt")
}

func TestStatus(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "committed.txt", "v1")
	write(t, repo, "deleted.txt", "d")
	addAndCommit(t, repo, "initial", "committed.txt", "deleted.txt")

	status, err := repo.Status()
	require.NoError(t, err)
	assert.True(t, status.Clean())

	write(t, repo, "committed.txt", "v2")
	write(t, repo, "new.txt", "n")
	write(t, repo, "untracked.txt", "u")
	require.NoError(t, os.Remove(filepath.Join(repo.Root, "deleted.txt")))
	_, err = repo.Add([]string{"new.txt"})
	require.NoError(t, err)

	status, err = repo.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{"new.txt"}, status.StagedNew)
	assert.Equal(t, []string{"committed.txt"}, status.NotStagedModified)
	assert.Equal(t, []string{"deleted.txt"}, status.NotStagedDeleted)
	assert.Equal(t, []string{"untracked.txt"}, status.Untracked)
	assert.Empty(t, status.StagedModified)
}

func TestBranches(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.CreateBranch("early")
	assert.Error(t, err)

	write(t, repo, "a.txt", "a")
	addAndCommit(t, repo, "initial", "a.txt")

	b, err := repo.CreateBranch("feature")
	require.NoError(t, err)
	_, err = repo.CreateBranch("feature")
	assert.Error(t, err)

	head, err := repo.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, head, b.Commit)

	resolved, err := repo.Resolve(string(head))
	require.NoError(t, err)
	assert.Equal(t, head, resolved)

	_, err = repo.Resolve("nope")
	assert.True(t, apperrors.IsNotFound(err))

	branches, err := repo.Branches()
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "feature", branches[0].Name)
	assert.Equal(t, "main", branches[1].Name)

	assert.Error(t, repo.DeleteBranch("main"))
	require.NoError(t, repo.DeleteBranch("feature"))
}

func TestCheckoutResetsIndex(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "a.txt", "a")
	addAndCommit(t, repo, "initial", "a.txt")

	_, err := repo.CreateBranch("feature")
	require.NoError(t, err)
	require.NoError(t, repo.Checkout("feature"))

	write(t, repo, "b.txt", "b")
	addAndCommit(t, repo, "add b", "b.txt")

	require.NoError(t, repo.Checkout("main"))
	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	staged, err := repo.index.Files()
	require.NoError(t, err)
	assert.Len(t, staged, 1)
	assert.Contains(t, staged, "a.txt")

	// b.txt stays on disk but is no longer tracked on main.
	status, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, status.Untracked)

	assert.True(t, apperrors.IsNotFound(repo.Checkout("ghost")))
}

func TestDiff(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "a.txt", "one\ntwo\nthree\n")
	addAndCommit(t, repo, "initial", "a.txt")

	result, err := repo.Diff("a.txt", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stats.Changes)

	write(t, repo, "a.txt", "one\n2\nthree\n")
	result, err = repo.Diff("a.txt", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Additions)
	assert.Equal(t, 1, result.Stats.Deletions)
	require.Len(t, result.Hunks, 1)

	write(t, repo, "new.txt", "x\n")
	result, err = repo.Diff("new.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Additions)

	require.NoError(t, os.Remove(filepath.Join(repo.Root, "a.txt")))
	result, err = repo.Diff("a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.Deletions)
}

func TestDiffCommits(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "a.txt", "a\nb\n")
	addAndCommit(t, repo, "first", "a.txt")
	write(t, repo, "a.txt", "a\nc\n")
	addAndCommit(t, repo, "second", "a.txt")

	commits, err := repo.Log(0)
	require.NoError(t, err)

	result, err := repo.DiffCommits(commits[1].Hash, commits[0].Hash, "a.txt", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Additions)
	assert.Equal(t, 1, result.Stats.Deletions)
}

func TestMerge(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "a.txt", "base\n")
	write(t, repo, "b.txt", "b\n")
	addAndCommit(t, repo, "initial", "a.txt", "b.txt")
	first, err := repo.Resolve("main")
	require.NoError(t, err)

	_, err = repo.CreateBranch("feature")
	require.NoError(t, err)

	t.Run("UpToDate", func(t *testing.T) {
		rec, err := repo.Merge("feature")
		require.NoError(t, err)
		assert.Equal(t, MergeUpToDate, rec.Status)
		assert.True(t, rec.Success)
		assert.Equal(t, "Already up to date", rec.Message)
	})

	t.Run("UnknownBranch", func(t *testing.T) {
		_, err := repo.Merge("ghost")
		assert.True(t, apperrors.IsNotFound(err))
	})

	require.NoError(t, repo.Checkout("feature"))
	write(t, repo, "a.txt", "feature\n")
	write(t, repo, "c.txt", "c\n")
	addAndCommit(t, repo, "feature work", "a.txt", "c.txt")

	require.NoError(t, repo.Checkout("main"))
	write(t, repo, "b.txt", "b2\n")
	addAndCommit(t, repo, "main work", "b.txt")

	t.Run("Clean", func(t *testing.T) {
		rec, err := repo.Merge("feature")
		require.NoError(t, err)
		assert.Equal(t, MergeClean, rec.Status)
		assert.True(t, rec.Success)
		assert.NoError(t, rec.Err())
		assert.Equal(t, first, rec.Base)
		assert.Equal(t, "main", rec.Into)
		assert.Equal(t, "Merged feature into main", rec.Message)
		assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, rec.Merged)
		assert.Equal(t, map[string]string{
			"a.txt": "feature\n",
			"b.txt": "b2\n",
			"c.txt": "c\n",
		}, rec.Files)

		// The working tree is not touched by a merge.
		data, err := os.ReadFile(filepath.Join(repo.Root, "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "feature\n", string(data))
	})

	write(t, repo, "a.txt", "main\n")
	addAndCommit(t, repo, "conflicting edit", "a.txt")

	t.Run("Conflict", func(t *testing.T) {
		rec, err := repo.Merge("feature")
		require.NoError(t, err)
		assert.Equal(t, MergeConflicted, rec.Status)
		assert.False(t, rec.Success)
		require.Len(t, rec.Conflicts, 1)
		assert.Equal(t, merge.Conflict{
			Path:   "a.txt",
			Kind:   merge.ModifyModify,
			Base:   "base\n",
			Ours:   "main\n",
			Theirs: "feature\n",
		}, rec.Conflicts[0])
	})

	t.Run("NoCommonAncestor", func(t *testing.T) {
		_, err := repo.refs.Create("orphan", "")
		require.NoError(t, err)
		require.NoError(t, repo.Checkout("orphan"))
		write(t, repo, "z.txt", "z\n")
		addAndCommit(t, repo, "unrelated root", "z.txt")

		rec, err := repo.Merge("main")
		require.NoError(t, err)
		assert.Equal(t, MergeNoCommonAncestor, rec.Status)
		assert.False(t, rec.Success)
		assert.True(t, errors.Is(rec.Err(), apperrors.ErrNoCommonAncestor))
	})

	t.Run("Records", func(t *testing.T) {
		records, err := repo.MergeRecords()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, MergeUpToDate, records[0].Status)
		assert.Equal(t, MergeClean, records[1].Status)
		assert.Equal(t, MergeConflicted, records[2].Status)
		assert.Equal(t, MergeNoCommonAncestor, records[3].Status)
		assert.Nil(t, records[1].Files)

		rec, err := repo.MergeRecord(records[2].ID)
		require.NoError(t, err)
		require.Len(t, rec.Conflicts, 1)
		assert.Equal(t, "a.txt", rec.Conflicts[0].Path)

		_, err = repo.MergeRecord("missing")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestAddFileReplacedByDirectory(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "a", "file\n")
	addAndCommit(t, repo, "one", "a")

	require.NoError(t, os.Remove(filepath.Join(repo.Root, "a")))
	write(t, repo, "a/b", "nested\n")
	addAndCommit(t, repo, "two", "a/b")

	_, tip, err := repo.currentTip()
	require.NoError(t, err)
	files, err := repo.commitFiles(tip)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "a/b")

	require.NoError(t, os.RemoveAll(filepath.Join(repo.Root, "a")))
	write(t, repo, "a", "file again\n")
	addAndCommit(t, repo, "three", "a")

	_, tip, err = repo.currentTip()
	require.NoError(t, err)
	files, err = repo.commitFiles(tip)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "a")
}

func TestMergeAncestry(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "f", "f\n")
	addAndCommit(t, repo, "base", "f")
	_, err := repo.CreateBranch("feat")
	require.NoError(t, err)

	write(t, repo, "g", "g\n")
	addAndCommit(t, repo, "ahead", "g")
	mainTip, err := repo.Resolve("main")
	require.NoError(t, err)
	featTip, err := repo.Resolve("feat")
	require.NoError(t, err)

	t.Run("TheirsBehind", func(t *testing.T) {
		rec, err := repo.Merge("feat")
		require.NoError(t, err)
		assert.Equal(t, MergeUpToDate, rec.Status)
		assert.True(t, rec.Success)
		assert.Equal(t, featTip, rec.Base)
		assert.Empty(t, rec.Merged)
	})

	t.Run("FastForward", func(t *testing.T) {
		require.NoError(t, repo.Checkout("feat"))
		rec, err := repo.Merge("main")
		require.NoError(t, err)
		assert.Equal(t, MergeFastForward, rec.Status)
		assert.True(t, rec.Success)
		assert.NoError(t, rec.Err())
		assert.Equal(t, featTip, rec.Base)
		assert.Equal(t, mainTip, rec.Theirs)
		assert.Equal(t, "Fast-forward feat to main", rec.Message)
		assert.Equal(t, []string{"f", "g"}, rec.Merged)
		assert.Equal(t, map[string]string{"f": "f\n", "g": "g\n"}, rec.Files)

		// Reported only; the branch does not move.
		tip, err := repo.Resolve("feat")
		require.NoError(t, err)
		assert.Equal(t, featTip, tip)
	})
}

func TestMergeConflictMessageNamesPaths(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "x", "base\n")
	write(t, repo, "y", "base\n")
	addAndCommit(t, repo, "base", "x", "y")
	_, err := repo.CreateBranch("other")
	require.NoError(t, err)

	write(t, repo, "x", "ours\n")
	write(t, repo, "y", "ours\n")
	addAndCommit(t, repo, "ours", "x", "y")

	require.NoError(t, repo.Checkout("other"))
	write(t, repo, "x", "theirs\n")
	write(t, repo, "y", "theirs\n")
	addAndCommit(t, repo, "theirs", "x", "y")

	rec, err := repo.Merge("main")
	require.NoError(t, err)
	assert.Equal(t, MergeConflicted, rec.Status)
	assert.Equal(t, "Merge of main into other has conflicts in x, y", rec.Message)
}

func TestVerify(t *testing.T) {
	repo := setupRepo(t)
	write(t, repo, "a.txt", "a\n")
	write(t, repo, "b.txt", "b\n")
	addAndCommit(t, repo, "one", "a.txt", "b.txt")
	write(t, repo, "a.txt", "a2\n")
	addAndCommit(t, repo, "two", "a.txt")

	report, err := repo.Verify()
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Commits)
	assert.Equal(t, 2, report.Trees)
	assert.Equal(t, 3, report.Blobs)

	results, err := repo.Add([]string{"b.txt"})
	require.NoError(t, err)
	h := results[0].Hash
	path := filepath.Join(repo.Root, ".minigit", "objects", string(h[:2]), string(h[2:]))
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0644))

	report, err = repo.Verify()
	require.NoError(t, err)
	assert.False(t, report.OK())
	require.Len(t, report.Problems, 1)
	assert.Equal(t, h, report.Problems[0].Hash)
	assert.Equal(t, "blob", report.Problems[0].Kind)
	assert.True(t, errors.Is(report.Problems[0].Err, apperrors.ErrMalformedObject))
}

func TestWatchingDoesNotLockRepository(t *testing.T) {
	t.Setenv(config.EnvUserConfig, "")
	root := t.TempDir()
	repo, err := Init(root, "tester")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	ws, err := OpenWorkspace(root, nil)
	require.NoError(t, err)
	w, err := workspace.NewWatcher(ws, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	untracked := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(paths []string) {
			r, err := Open(root)
			if err != nil {
				t.Errorf("open during batch: %v", err)
				return
			}
			defer r.Close()
			status, err := r.Status()
			if err != nil {
				t.Errorf("status during batch: %v", err)
				return
			}
			untracked <- status.Untracked
		})
	}()

	other, err := Open(root)
	require.NoError(t, err)
	branch, err := other.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	require.NoError(t, other.Close())

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("x"), 0644))

	select {
	case paths := <-untracked:
		assert.Contains(t, paths, "new.txt")
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestInitRetryAfterFailure(t *testing.T) {
	dir := t.TempDir()
	userConfig := filepath.Join(t.TempDir(), "user.yaml")
	require.NoError(t, os.WriteFile(userConfig, []byte("default_branch: \"..bad\"\n"), 0644))
	t.Setenv(config.EnvUserConfig, userConfig)

	_, err := Init(dir, "tester")
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dir, ".minigit"))

	require.NoError(t, os.WriteFile(userConfig, []byte("default_branch: trunk\n"), 0644))
	repo, err := Init(dir, "tester")
	require.NoError(t, err)
	defer repo.Close()

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)
}

func TestLoadConfig(t *testing.T) {
	repo := setupRepo(t)
	cfgPath := filepath.Join(repo.Root, ".minigit", "config.json")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.LogLevel = "debug"
	require.NoError(t, config.Save(cfgPath, cfg))

	sub := filepath.Join(repo.Root, "nested", "dir")
	require.NoError(t, os.MkdirAll(sub, 0755))

	got, err := LoadConfig(sub)
	require.NoError(t, err)
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, "tester", got.Author)

	_, err = LoadConfig(t.TempDir())
	assert.True(t, errors.Is(err, apperrors.ErrNotRepository))
}
