package sandbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsNestedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	w, err := NewWatcher(root, true)
	require.NoError(t, err)
	defer w.Close()

	events := make(chan WatchEvent, 16)
	go w.Run(func(ev WatchEvent) { events <- ev })

	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "shot.png"), []byte("x"), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, EventRename, ev.Type)
		assert.Equal(t, "a/b/shot.png", ev.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for nested file")
	}
}

func TestWatcherTranslate(t *testing.T) {
	root := t.TempDir()
	w := &Watcher{root: root}

	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, EventRename},
		{fsnotify.Remove, EventRename},
		{fsnotify.Rename, EventRename},
		{fsnotify.Write, EventChange},
		{fsnotify.Chmod, EventChange},
	}

	for _, tt := range tests {
		ev := w.translate(fsnotify.Event{Name: filepath.Join(root, "x.pdf"), Op: tt.op})
		assert.Equal(t, tt.want, ev.Type, tt.op.String())
		assert.Equal(t, "x.pdf", ev.Name)
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), false)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		w.Run(func(WatchEvent) {})
		close(done)
	}()

	assert.False(t, w.Closed())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.True(t, w.Closed())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), true)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
