package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, 0)
	require.NoError(t, err)

	name, err := store.Stage("Model Curriculum.PDF", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	data, err := os.ReadFile(store.Path(name))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(name))
	_, err = os.Stat(store.Path(name))
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, store.Delete(name))
}

func TestStageRejectsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, 4)
	require.NoError(t, err)

	_, err = store.Stage("big.pdf", strings.NewReader("0123456789"))
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPathCannotEscapeBaseDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "passwd"), store.Path("../../etc/passwd"))
}

func TestCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, 0)
	require.NoError(t, err)

	name, err := store.Stage("old.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(name), old, old))
	fresh, err := store.Stage("fresh.pdf", strings.NewReader("y"))
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, deleted)
	_, err = os.Stat(store.Path(fresh))
	assert.NoError(t, err)
}
