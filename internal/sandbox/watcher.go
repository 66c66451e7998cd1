package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
)

// Node-style watch event names
const (
	EventRename = "rename"
	EventChange = "change"
)

// WatchEvent is one change under a watched tree
type WatchEvent struct {
	Type string // EventRename or EventChange
	Name string // Path relative to the watched root
}

// Watcher observes a directory, optionally with all its subdirectories
type Watcher struct {
	root      string
	recursive bool
	fsw       *fsnotify.Watcher

	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewWatcher starts watching root
func NewWatcher(root string, recursive bool) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{root: root, recursive: recursive, fsw: fsw}

	if !info.IsDir() || !recursive {
		if err := fsw.Add(root); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
		return w, nil
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and every directory below it
func (w *Watcher) addTree(dir string) error {
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			// vanished while walking
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// Run delivers events to fn until the watcher is closed
func (w *Watcher) Run(fn func(WatchEvent)) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.Closed() {
				return
			}
			if w.recursive && ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addTree(ev.Name)
				}
			}
			fn(w.translate(ev))

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) translate(ev fsnotify.Event) WatchEvent {
	name, err := filepath.Rel(w.root, ev.Name)
	if err != nil || name == "." {
		name = filepath.Base(ev.Name)
	}

	typ := EventChange
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		typ = EventRename
	}
	return WatchEvent{Type: typ, Name: filepath.ToSlash(name)}
}

// Closed reports whether Close has been called
func (w *Watcher) Closed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		err = w.fsw.Close()
		if errors.Is(err, fsnotify.ErrClosed) {
			err = nil
		}
	})
	return err
}
