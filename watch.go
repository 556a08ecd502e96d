package strata

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchFiles starts re-merging loaded configuration files when they
// change on disk. Rapid changes to one file coalesce into a single
// reload per debounce window; a reload runs the ordinary LoadFile path,
// so changed keys flow through secret resolution and the notifier.
// Files loaded after this call are watched as well. Idempotent; the
// watcher stops with Close.
func (s *Store) WatchFiles() error {
	return s.WatchFilesDebounced(DefaultWatchDebounce)
}

// WatchFilesDebounced is WatchFiles with a custom coalescence window.
func (s *Store) WatchFilesDebounced(debounce time.Duration) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.watcher != nil {
		return nil
	}
	w, err := newFileWatcher(s, debounce)
	if err != nil {
		return err
	}
	for _, path := range s.loadedFiles {
		w.add(path)
	}
	s.watcher = w
	return nil
}

// fileWatcher reacts to fsnotify events for loaded config files and
// re-merges each changed file once per debounce window.
type fileWatcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	wake  chan struct{}
	done  chan struct{}
	stop1 sync.Once
}

func newFileWatcher(store *Store, debounce time.Duration) (*fileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	w := &fileWatcher{
		store:    store,
		fsw:      fsw,
		logger:   store.logger,
		debounce: debounce,
		pending:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *fileWatcher) add(path string) {
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("cannot watch config file", zap.String("path", path), zap.Error(err))
	}
}

func (w *fileWatcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case <-w.wake:
			w.reload()
		}
	}
}

func (w *fileWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, func() {
			select {
			case w.wake <- struct{}{}:
			default:
			}
		})
	}
}

func (w *fileWatcher) reload() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]struct{})
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	for path := range batch {
		if err := w.store.LoadFile(path); err != nil {
			w.logger.Warn("reload of changed config file failed",
				zap.String("path", path), zap.Error(err))
			continue
		}
		// Editors often replace the file; re-arm the watch so the next
		// change is still seen.
		w.add(path)
	}
}

func (w *fileWatcher) stop() {
	w.stop1.Do(func() {
		_ = w.fsw.Close()
		<-w.done
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()
	})
}
