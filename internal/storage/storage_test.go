package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	path, err := store.Save("tea", doc{Name: "Green Tea", Price: 12.5})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tea.json"), path)

	var got doc
	require.NoError(t, store.Load("tea", &got))
	assert.Equal(t, doc{Name: "Green Tea", Price: 12.5}, got)
}

func TestFileStoreOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("tea", doc{Name: "first"})
	require.NoError(t, err)
	_, err = store.Save("tea", doc{Name: "second"})
	require.NoError(t, err)

	var got doc
	require.NoError(t, store.Load("tea", &got))
	assert.Equal(t, "second", got.Name)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreInvalidNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "  ", "..", "../escape", `a\b`, "dir/tea"} {
		t.Run(name, func(t *testing.T) {
			_, err := store.Save(name, doc{})
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestFileStoreNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
