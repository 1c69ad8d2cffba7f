package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "nested", "b.txt")
	write(t, src, "hello")

	fsys := NewOS()
	require.NoError(t, fsys.Move(src, dst))

	exists, err := fsys.Exists(src)
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := fsys.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestMoveRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	write(t, src, "new")
	write(t, dst, "old")

	err := NewOS().Move(src, dst)
	assert.ErrorIs(t, err, fs.ErrExist)

	data, _ := os.ReadFile(dst)
	assert.Equal(t, "old", string(data))
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := NewOS().Move(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCopyLeavesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "copy", "a.txt")
	write(t, src, "payload")

	fsys := NewOS()
	require.NoError(t, fsys.Copy(src, dst))

	for _, p := range []string{src, dst} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	}
	assert.ErrorIs(t, fsys.Copy(src, dst), fs.ErrExist)
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	fsys := NewOS()

	require.NoError(t, fsys.WriteFileAtomic(path, []byte(`{"v":1}`), 0o644))
	require.NoError(t, fsys.WriteFileAtomic(path, []byte(`{"v":2}`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
