package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIngester struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingIngester) Supports(path string) bool {
	return strings.HasSuffix(path, ".txt")
}

func (r *recordingIngester) Ingest(ctx context.Context, path string) (*core.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return &core.Document{Id: core.ID(len(r.paths)), SourcePath: path}, nil
}

func (r *recordingIngester) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)

	_, err = NewWatcher(filepath.Join(t.TempDir(), "missing"), &recordingIngester{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := writeFile(t, t.TempDir(), "a.txt", "x")
	_, err = NewWatcher(file, &recordingIngester{})
	assert.Error(t, err)

	_, err = NewWatcher(t.TempDir(), &recordingIngester{}, WithSettleDelay(0))
	assert.Error(t, err)
}

func TestWatcher_TinySettleDelay(t *testing.T) {
	watcher, err := NewWatcher(t.TempDir(), &recordingIngester{},
		WithSettleDelay(time.Nanosecond),
		WithWatcherLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NotPanics(t, func() {
		assert.NoError(t, watcher.Run(ctx))
	})
}

func TestWatcher_IngestsNewFilesOnce(t *testing.T) {
	dir := t.TempDir()
	ingester := &recordingIngester{}
	watcher, err := NewWatcher(dir, ingester,
		WithSettleDelay(20*time.Millisecond),
		WithWatcherLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	path := writeFile(t, dir, "notes.txt", "first")
	writeFile(t, dir, ".hidden.txt", "skip")
	writeFile(t, dir, "image.png", "skip")

	select {
	case result := <-watcher.Results():
		require.NoError(t, result.Err)
		assert.Equal(t, path, result.Path)
		assert.Equal(t, core.ID(1), result.Document.Id)
	case <-time.After(5 * time.Second):
		t.Fatal("watched file was not ingested")
	}

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, []string{path}, ingester.calls())
}
