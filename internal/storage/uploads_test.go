package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"fleet-ai-gateway/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageAndRemove(t *testing.T) {
	store, err := storage.NewUploadStore(t.TempDir(), 1024)
	require.NoError(t, err)

	staged, err := store.Stage(context.Background(), "sample.wav", strings.NewReader("RIFF audio"))
	require.NoError(t, err)

	assert.Equal(t, store.Dir(), filepath.Dir(staged.Path))
	assert.Equal(t, ".wav", filepath.Ext(staged.Path))
	assert.Equal(t, "sample.wav", staged.Filename)
	assert.EqualValues(t, len("RIFF audio"), staged.Size)

	data, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF audio", string(data))

	staged.Remove()
	_, err = os.Stat(staged.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// second remove is a no-op
	staged.Remove()
}

func TestStageIgnoresClientPath(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewUploadStore(filepath.Join(dir, "uploads"), 0)
	require.NoError(t, err)

	staged, err := store.Stage(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	defer staged.Remove()

	assert.Equal(t, store.Dir(), filepath.Dir(staged.Path))
	assert.Equal(t, "", filepath.Ext(staged.Path))
}

func TestStageSameFilenameConcurrently(t *testing.T) {
	store, err := storage.NewUploadStore(t.TempDir(), 0)
	require.NoError(t, err)

	const n = 16
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			staged, err := store.Stage(context.Background(), "photo.jpg", strings.NewReader("img"))
			assert.NoError(t, err)
			paths[i] = staged.Path
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate staged path %s", p)
		seen[p] = true
	}
}

func TestStageTooLarge(t *testing.T) {
	store, err := storage.NewUploadStore(t.TempDir(), 4)
	require.NoError(t, err)

	_, err = store.Stage(context.Background(), "big.png", strings.NewReader("0123456789"))
	assert.ErrorIs(t, err, storage.ErrUploadTooLarge)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageClientReadError(t *testing.T) {
	store, err := storage.NewUploadStore(t.TempDir(), 1024)
	require.NoError(t, err)

	src := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(io.ErrUnexpectedEOF))
	_, err = store.Stage(context.Background(), "scan.pdf", src)
	assert.ErrorIs(t, err, storage.ErrIncompleteUpload)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".wav", storage.SafeExt("sample.WAV"))
	assert.Equal(t, ".jpg", storage.SafeExt(`C:\photos\cargo.jpg`))
	assert.Equal(t, "", storage.SafeExt("noext"))
	assert.Equal(t, "", storage.SafeExt("weird.j p g"))
	assert.Equal(t, "", storage.SafeExt(""))
}
