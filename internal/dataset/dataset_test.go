package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "S002", "S002_0.jpg"))
	touch(t, filepath.Join(root, "S001", "S001_1.JPG"))
	touch(t, filepath.Join(root, "S001", "S001_0.jpg"))
	touch(t, filepath.Join(root, "S001", "notes.txt"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "S003"), 0o755)) // no images
	touch(t, filepath.Join(root, ".cache", "x.jpg"))
	touch(t, filepath.Join(root, "stray.jpg"))

	ds, err := Scan(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"S001", "S002"}, ds.StudentIDs())
	assert.Equal(t, 3, ds.ImageCount())
	assert.Equal(t, []string{
		filepath.Join(root, "S001", "S001_0.jpg"),
		filepath.Join(root, "S001", "S001_1.JPG"),
	}, ds.Persons[0].Images)
}

func TestScanMissing(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrMissing)
}

func TestScanEmpty(t *testing.T) {
	root := t.TempDir()
	_, err := Scan(root)
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "S001"), 0o755))
	_, err = Scan(root)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestScanFileInsteadOfDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	touch(t, path)
	_, err := Scan(path)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "S001", "a.jpg"))

	require.NoError(t, Remove(root, "S001"))
	_, err := os.Stat(filepath.Join(root, "S001"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, Remove(root, "S001"))
	assert.Error(t, Remove(root, "../etc"))
	assert.Error(t, Remove(root, ""))
	assert.Error(t, Remove(root, ".."))
}
