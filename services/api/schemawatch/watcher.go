// Package schemawatch reloads the reference schema when its file changes.
package schemawatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader swaps in a new schema definition.
type Reloader interface {
	Reload(definition []byte) error
}

// DefaultDebounce is the quiet period before a reload fires.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches the schema file's directory so that editors that replace
// the file through a rename are still noticed.
type Watcher struct {
	path     string
	target   Reloader
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	log      *slog.Logger
	onResult func(error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = NewDebouncer(d) }
}

// WithResultHook is called after every reload attempt.
func WithResultHook(fn func(error)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// New creates a watcher for path. Call Run to start it.
func New(path string, target Reloader, opts ...Option) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("schema watch: path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("schema watch: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("schema watch: create watcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		target:   target,
		watcher:  fsw,
		debounce: NewDebouncer(DefaultDebounce),
		log:      slog.Default(),
		onResult: func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run blocks until ctx is cancelled, reloading after each burst of changes
// to the schema file.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.debounce.Stop()
	defer w.watcher.Close()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("schema watch: add %s: %w", dir, err)
	}
	w.log.Info("schema watcher started", slog.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("schema watcher stopped")
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("schema watch: events channel closed")
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("schema file event", slog.String("op", ev.Op.String()))
			w.debounce.Trigger(func() { _ = w.ReloadNow() })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("schema watch: errors channel closed")
			}
			w.log.Error("schema watcher error", slog.Any("error", err))
		}
	}
}

// ReloadNow reads the schema file and hands it to the target.
func (w *Watcher) ReloadNow() error {
	err := w.reload()
	if err != nil {
		w.log.Error("schema reload failed, previous schema kept", slog.String("path", w.path), slog.Any("error", err))
	} else {
		w.log.Info("schema reloaded", slog.String("path", w.path))
	}
	w.onResult(err)
	return err
}

func (w *Watcher) reload() error {
	def, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	return w.target.Reload(def)
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(ev.Name) == w.path
}

// Debouncer runs the most recent callback once events stop arriving for
// the configured interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.callback = nil
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
