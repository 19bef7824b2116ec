package watcher

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SourceWatcher watches the backup source directory and triggers a
// callback when one of the listed files is written or created. Triggers
// are rate-limited so a burst of writes causes a single extra backup.
type SourceWatcher struct {
	fsWatcher   *fsnotify.Watcher
	sourceDir   string
	names       map[string]bool
	trigger     func()
	minInterval time.Duration

	mu        sync.Mutex
	lastFired time.Time
	done      chan struct{}
}

// New creates a SourceWatcher over sourceDir for the given base names.
func New(sourceDir string, names []string, minInterval time.Duration, trigger func()) (*SourceWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	return &SourceWatcher{
		fsWatcher:   fsw,
		sourceDir:   sourceDir,
		names:       set,
		trigger:     trigger,
		minInterval: minInterval,
		done:        make(chan struct{}),
	}, nil
}

// Start begins watching the source directory.
func (w *SourceWatcher) Start() error {
	if err := w.fsWatcher.Add(w.sourceDir); err != nil {
		return err
	}
	go w.eventLoop()
	slog.Info("Source watcher started", "dir", w.sourceDir, "files", len(w.names))
	return nil
}

// Close stops the watcher.
func (w *SourceWatcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *SourceWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("Watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *SourceWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !w.names[filepath.Base(event.Name)] {
		return
	}

	w.mu.Lock()
	if time.Since(w.lastFired) < w.minInterval {
		w.mu.Unlock()
		slog.Debug("Change ignored inside minimum interval", "path", event.Name)
		return
	}
	w.lastFired = time.Now()
	w.mu.Unlock()

	slog.Info("Source file changed, triggering backup", "path", event.Name)
	w.trigger()
}
