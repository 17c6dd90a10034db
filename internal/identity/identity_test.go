package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOrdersLexicographically(t *testing.T) {
	m, err := Build([]string{"S010", "S002", "S001"})
	require.NoError(t, err)

	assert.Equal(t, []string{"S001", "S002", "S010"}, m.IDs())
	label, err := m.Label("S002")
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestRoundTrip(t *testing.T) {
	ids := []string{"S001", "S002", "alice", "bob"}
	m, err := Build(ids)
	require.NoError(t, err)

	for _, id := range ids {
		label, err := m.Label(id)
		require.NoError(t, err)
		got, err := m.Identity(label)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestUnknownLabelIsAnError(t *testing.T) {
	m, err := Build([]string{"S001"})
	require.NoError(t, err)

	_, err = m.Identity(7)
	assert.ErrorIs(t, err, ErrUnknownLabel)
	_, err = m.Identity(-1)
	assert.ErrorIs(t, err, ErrUnknownLabel)
	_, err = m.Label("S999")
	assert.ErrorIs(t, err, ErrUnknownStudent)
}

func TestBuildRejectsBadIDs(t *testing.T) {
	_, err := Build([]string{"S001", "S001"})
	assert.Error(t, err)
	_, err = Build([]string{""})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "id_mapping.json")

	m, err := Build([]string{"S002", "S001", "S003"})
	require.NoError(t, err)
	require.NoError(t, m.Save(path, "abc123"))

	loaded, err := Load(path, "abc123")
	require.NoError(t, err)
	assert.Equal(t, m.IDs(), loaded.IDs())

	for _, id := range m.IDs() {
		want, _ := m.Label(id)
		got, err := loaded.Label(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = Load(path, "other-model")
	assert.ErrorIs(t, err, ErrFingerprintMismatch)

	_, err = Load(path, "")
	assert.NoError(t, err)
}

func TestLoadRejectsCorruptLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "id_mapping.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"labels":{"S001":0,"S002":0}}`), 0o644))
	_, err := Load(path, "")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"labels":{"S001":5}}`), 0o644))
	_, err = Load(path, "")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = Load(path, "")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
