package staging

import (
	"errors"
	"testing"

	apperrors "minigit/internal/errors"
	"minigit/internal/object"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func h(s string) object.Hash { return object.HashBytes([]byte(s)) }

func TestIndex(t *testing.T) {
	idx := NewIndex(setupTestDB(t))

	empty, err := idx.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, idx.Add("src\\main.go", h("main")))
	require.NoError(t, idx.Add("./README.md", h("readme")))
	require.NoError(t, idx.Add("src/main.go", h("main v2")))

	t.Run("Hash", func(t *testing.T) {
		got, ok, err := idx.Hash("src/main.go")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, h("main v2"), got)

		_, ok, err = idx.Hash("nope.txt")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Files", func(t *testing.T) {
		files, err := idx.Files()
		require.NoError(t, err)
		assert.Equal(t, map[string]object.Hash{
			"README.md":   h("readme"),
			"src/main.go": h("main v2"),
		}, files)

		n, err := idx.Len()
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		paths, err := idx.Paths()
		require.NoError(t, err)
		assert.Equal(t, []string{"README.md", "src/main.go"}, paths)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, idx.Remove("README.md"))
		require.NoError(t, idx.Remove("README.md"))
		_, ok, err := idx.Hash("README.md")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Replace", func(t *testing.T) {
		require.NoError(t, idx.Replace(map[string]object.Hash{"a.txt": h("a")}))
		files, err := idx.Files()
		require.NoError(t, err)
		assert.Equal(t, map[string]object.Hash{"a.txt": h("a")}, files)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, idx.Clear())
		empty, err := idx.IsEmpty()
		require.NoError(t, err)
		assert.True(t, empty)
	})
}

func TestIndexAddReplacesCollidingEntries(t *testing.T) {
	idx := NewIndex(setupTestDB(t))

	t.Run("FileBecomesDirectory", func(t *testing.T) {
		require.NoError(t, idx.Add("a", h("file a")))
		require.NoError(t, idx.Add("a/b", h("file a/b")))

		paths, err := idx.Paths()
		require.NoError(t, err)
		assert.Equal(t, []string{"a/b"}, paths)
	})

	t.Run("DirectoryBecomesFile", func(t *testing.T) {
		require.NoError(t, idx.Add("a/c/d", h("deep")))
		require.NoError(t, idx.Add("ab", h("sibling")))
		require.NoError(t, idx.Add("a", h("file a again")))

		files, err := idx.Files()
		require.NoError(t, err)
		assert.Equal(t, map[string]object.Hash{
			"a":  h("file a again"),
			"ab": h("sibling"),
		}, files)
	})
}

func TestIndexRejects(t *testing.T) {
	idx := NewIndex(setupTestDB(t))

	for _, p := range []string{"", ".", "/abs", "../up"} {
		err := idx.Add(p, h("x"))
		assert.Error(t, err, p)
	}

	err := idx.Add("ok.txt", "not-a-hash")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidHash))
}

func TestClassify(t *testing.T) {
	committed := map[string]object.Hash{
		"same.txt":     h("same"),
		"staged.txt":   h("v1"),
		"dirty.txt":    h("v1"),
		"gone.txt":     h("v1"),
		"unstaged.txt": h("v1"),
	}
	staged := map[string]object.Hash{
		"same.txt":   h("same"),
		"staged.txt": h("v2"),
		"dirty.txt":  h("v1"),
		"gone.txt":   h("v1"),
		"new.txt":    h("new"),
	}
	working := map[string]object.Hash{
		"same.txt":     h("same"),
		"staged.txt":   h("v2"),
		"dirty.txt":    h("v3"),
		"new.txt":      h("new"),
		"unstaged.txt": h("v1"),
		"scratch.txt":  h("scratch"),
	}

	s := Classify(working, staged, committed)
	assert.Equal(t, []string{"new.txt"}, s.StagedNew)
	assert.Equal(t, []string{"staged.txt"}, s.StagedModified)
	assert.Equal(t, []string{"unstaged.txt"}, s.StagedDeleted)
	assert.Equal(t, []string{"dirty.txt"}, s.NotStagedModified)
	assert.Equal(t, []string{"gone.txt"}, s.NotStagedDeleted)
	assert.Equal(t, []string{"scratch.txt", "unstaged.txt"}, s.Untracked)
	assert.True(t, s.HasStaged())
	assert.False(t, s.Clean())
}

func TestClassifyClean(t *testing.T) {
	files := map[string]object.Hash{"a": h("a"), "b/c": h("c")}
	s := Classify(files, files, files)
	assert.True(t, s.Clean())
	assert.False(t, s.HasStaged())

	assert.True(t, Classify(nil, nil, nil).Clean())
}
