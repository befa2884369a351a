package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/streamworker/pkg/log"
)

// Suffixes used by the inbox. Processed files are renamed so they are not
// picked up again.
const (
	InboxSuffix  = ".ndjson"
	DoneSuffix   = ".done"
	FailedSuffix = ".failed"
)

// DefaultDebounce is how long a file must stay quiet before it is processed.
const DefaultDebounce = 100 * time.Millisecond

// Handler processes one inbox file.
type Handler func(ctx context.Context, path string) error

// Watcher monitors an inbox directory and hands every new *.ndjson file to
// a Handler, one file at a time.
type Watcher struct {
	dir      string
	handle   Handler
	logger   log.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger log.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a Watcher for dir.
func NewWatcher(dir string, handle Handler, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		handle:   handle,
		logger:   log.NewNoopLogger(),
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
		ready:    make(chan string, 16),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes files already in the inbox, then watches for new ones until
// ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox", log.String("dir", w.dir))

	pending, err := w.existing()
	if err != nil {
		return err
	}
	for _, path := range pending {
		w.process(ctx, path)
	}

	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, InboxSuffix) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)

		case path := <-w.ready:
			w.process(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) existing() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), InboxSuffix) {
			paths = append(paths, filepath.Join(w.dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// schedule restarts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	logger := w.logger.With(log.String("file", filepath.Base(path)))
	start := time.Now()

	suffix := DoneSuffix
	if err := w.handle(ctx, path); err != nil {
		if ctx.Err() != nil {
			// leave the file for the next run
			logger.Warn("inbox file interrupted", log.Err(err))
			return
		}
		logger.Error("inbox file failed", log.Err(err))
		suffix = FailedSuffix
	} else {
		logger.Info("inbox file processed", log.Duration("duration", time.Since(start)))
	}

	if err := os.Rename(path, path+suffix); err != nil {
		logger.Error("rename inbox file", log.Err(err))
	}
}
