package ycm

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/ycmclient/internal/logging"
)

// ExtraConfWatcher reloads the daemon's extra-configuration file whenever
// it changes on disk.
//
// The parent directory is watched rather than the file itself because
// editors typically replace files via rename, which drops a direct watch.
// Rapid successive writes are debounced into one reload.
type ExtraConfWatcher struct {
	client   *CompletionClient
	path     string
	logger   *logging.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
	running bool
}

// NewExtraConfWatcher creates a watcher for the given extra-conf path.
func NewExtraConfWatcher(client *CompletionClient, path string, logger *logging.Logger) *ExtraConfWatcher {
	if logger == nil {
		logger = logging.Null
	}
	return &ExtraConfWatcher{
		client:   client,
		path:     path,
		logger:   logger.WithComponent("extraconf"),
		debounce: 200 * time.Millisecond,
	}
}

// Start begins watching and performs the initial load. Idempotent.
// An empty path disables the watcher silently.
func (w *ExtraConfWatcher) Start(ctx context.Context) error {
	if w.path == "" {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolving extra conf path: %w", err)
	}
	w.path = abs

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	if err := w.client.LoadExtraConfig(ctx, abs); err != nil {
		w.logger.Warn("initial extra conf load failed: %v", err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.running = true

	go w.loop(watcher, w.done)
	return nil
}

// loop dispatches file events until the watcher is stopped.
func (w *ExtraConfWatcher) loop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}

// scheduleReload debounces reloads: each event resets the timer.
func (w *ExtraConfWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload re-sends the extra conf to the daemon. Errors are logged, not
// surfaced; the next change triggers another attempt.
func (w *ExtraConfWatcher) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.client.LoadExtraConfig(ctx, w.path); err != nil {
		w.logger.Warn("extra conf reload failed: %v", err)
		return
	}
	w.logger.Info("extra conf reloaded path=%s", w.path)
}

// Stop stops watching. Idempotent.
func (w *ExtraConfWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false

	close(w.done)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
}
