package filex

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedAbsolute(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureDir(filepath.Join(tmp, "a", "b"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	fi, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestEnsureDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "media")

	_, err := EnsureDir(dir)
	require.NoError(t, err)
	_, err = EnsureDir(dir)
	require.NoError(t, err)
}

func TestWriteFileAtomic_ReplacesContent(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "x", "y", "file.bin")

	require.NoError(t, WriteFileAtomic(path, []byte("old"), 0o640))
	require.NoError(t, WriteFileAtomic(path, []byte("new-content"), 0o640))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new-content", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger")
	assert.False(t, IsTemp(entries[0].Name()))
}

func TestWriteFileAtomic_DirRemovedConcurrently(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "tenants", "t1", "file.bin")

	calls := 0
	createTemp = func(dir, pattern string) (*os.File, error) {
		calls++
		if calls == 1 {
			// a cleanup of the last sibling removes the fresh directory
			RemoveEmptyParents(dir, root)
		}
		return os.CreateTemp(dir, pattern)
	}
	t.Cleanup(func() { createTemp = os.CreateTemp })

	require.NoError(t, WriteFileAtomic(path, []byte("data"), 0o640))
	assert.Equal(t, 2, calls)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestWriteFileAtomic_GivesUpAfterRetry(t *testing.T) {
	root := t.TempDir()
	createTemp = func(dir, pattern string) (*os.File, error) {
		RemoveEmptyParents(dir, root)
		return os.CreateTemp(dir, pattern)
	}
	t.Cleanup(func() { createTemp = os.CreateTemp })

	err := WriteFileAtomic(filepath.Join(root, "a", "file.bin"), []byte("data"), 0o640)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestIsTemp(t *testing.T) {
	assert.True(t, IsTemp("/a/b/.upload-123"))
	assert.False(t, IsTemp("/a/b/photo.jpg"))
}

func TestRemoveEmptyParents_StopsAtRoot(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "tenants", "t1", "avatar")
	require.NoError(t, os.MkdirAll(deep, 0o750))
	keep := filepath.Join(root, "tenants", "t2")
	require.NoError(t, os.MkdirAll(keep, 0o750))

	RemoveEmptyParents(deep, root)

	_, err := os.Stat(filepath.Join(root, "tenants", "t1"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(keep)
	assert.NoError(t, err)
	_, err = os.Stat(root)
	assert.NoError(t, err)
}
