// Package watch reports changes to the directory currently on screen.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher follows a single directory at a time. Changes are coalesced: the
// channel holds at most one pending notification.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	changes   chan string
	done      chan struct{}
	log       *zap.Logger

	mu  sync.Mutex
	dir string
}

// New creates a watcher using fsnotify.
func New(log *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		fsWatcher: fsWatcher,
		changes:   make(chan string, 1),
		done:      make(chan struct{}),
		log:       log,
	}
	go w.loop()
	return w, nil
}

// Watch switches the watched directory to dir.
func (w *Watcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		_ = w.fsWatcher.Remove(w.dir)
	}
	w.dir = ""
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.dir = dir
	// Drop a notification for the directory we just left.
	select {
	case <-w.changes:
	default:
	}
	return nil
}

// Changes delivers the path of the watched directory after it changed.
func (w *Watcher) Changes() <-chan string { return w.changes }

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			w.mu.Lock()
			dir := w.dir
			w.mu.Unlock()
			if dir == "" || filepath.Dir(ev.Name) != dir {
				continue
			}
			w.log.Debug("directory changed", zap.String("dir", dir), zap.Stringer("op", ev.Op))
			select {
			case w.changes <- dir:
			default:
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}
