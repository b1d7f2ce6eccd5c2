package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Save(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "uploads"), time.Hour)
	require.NoError(t, err)

	id, path, size, err := fs.Save(strings.NewReader("a,b\n1,2\n"), ".csv", 1024)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, filepath.Join(fs.Dir(), id+".csv"), path)
	assert.Equal(t, int64(8), size)
	assert.FileExists(t, path)
}

func TestFileStore_SaveTooLarge(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	_, _, _, err = fs.Save(strings.NewReader(strings.Repeat("x", 11)), ".csv", 10)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(fs.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_Sweep(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, 24*time.Hour)
	require.NoError(t, err)

	old := filepath.Join(dir, "old.csv")
	fresh := filepath.Join(dir, "fresh.csv")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	now := time.Now()
	past := now.Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	assert.Equal(t, 1, fs.Sweep(now))
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "sub"))
}

func TestFileStore_RemoveMissingIsNoop(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), time.Hour)
	require.NoError(t, err)
	assert.NoError(t, fs.Remove(filepath.Join(fs.Dir(), "gone.csv")))
}

func TestWatcher_ReportsRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0644))

	var mu sync.Mutex
	var removed []string
	w, err := NewWatcher(func(p string) {
		mu.Lock()
		defer mu.Unlock()
		removed = append(removed, p)
	})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx, dir))

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range removed {
			if p == path {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
