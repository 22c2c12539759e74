package capabilities

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/magictunnel/pkg/logging"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher watches configRoot/capabilities for *.yaml/*.yml changes and
// invokes a debounced callback so the registry can be reloaded on an
// explicit refresh signal instead of only at start-up (spec.md §3 "loaded
// at start-up and on an explicit refresh signal"). Modelled on
// reconciler.FilesystemDetector's fsnotify + debounce shape, simplified to
// a single watched directory and a single callback.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopCh  chan struct{}
}

// NewWatcher builds a Watcher for configRoot/capabilities. onChange is
// invoked on its own goroutine once debounce has elapsed since the last
// relevant filesystem event.
func NewWatcher(configRoot string, onChange func()) *Watcher {
	return &Watcher{
		dir:      filepath.Join(configRoot, "capabilities"),
		debounce: defaultWatchDebounce,
		onChange: onChange,
	}
}

// Start begins watching. A missing capabilities directory is created, the
// way Load tolerates its absence by returning an empty LoadResult.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fsw
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	go w.processEvents(ctx)

	logging.Info("CapabilityWatcher", "watching %s for capability changes", w.dir)
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isYAMLFile(event.Name) {
				continue
			}
			w.debounceTrigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("CapabilityWatcher", err, "capability watcher error")
		}
	}
}

// debounceTrigger collapses a burst of rapid filesystem events (e.g. an
// editor's write-then-rename save) into a single onChange call.
func (w *Watcher) debounceTrigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		logging.Info("CapabilityWatcher", "capability directory changed, triggering reload")
		w.onChange()
	})
}

// Stop shuts down the watcher. Safe to call on a Watcher that was never
// started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
