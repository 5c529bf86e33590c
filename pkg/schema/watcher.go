package schema

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadFunc receives each successfully reloaded document.
type ReloadFunc func(*Document) error

// Watcher reloads a schema file whenever it changes.
type Watcher struct {
	path    string
	opts    options
	logger  zerolog.Logger
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}

	// reloadMu serializes reloads; a debounce timer that already fired
	// cannot be stopped.
	reloadMu sync.Mutex
}

// NewWatcher creates a watcher for the schema file at path.
func NewWatcher(path string, opts ...Option) *Watcher {
	o := newOptions(opts)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Watcher{
		path:   filepath.Clean(path),
		opts:   o,
		logger: o.logger.With().Str("component", "schema-watcher").Logger(),
	}
}

// Start begins watching. The parent directory is watched so that editors
// replacing the file by rename are noticed. Events stop when ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context, reload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, reload)

	w.logger.Info().Str("path", w.path).Msg("Started watching schema file")
	return nil
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, reload ReloadFunc) {
	defer close(w.done)

	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Schema file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.opts.debounce, func() {
				if err := w.triggerReload(reload); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload schema")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) triggerReload(reload ReloadFunc) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	doc, err := LoadFile(w.path)
	if err == nil {
		err = reload(doc)
	}
	if err != nil {
		w.opts.observe("error")
		return fmt.Errorf("failed to reload %s: %w", w.path, err)
	}

	w.opts.observe("ok")
	w.logger.Info().Int("entities", len(doc.Entities)).Msg("Schema reloaded")
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
