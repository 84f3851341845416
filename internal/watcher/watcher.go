package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultSettleDelay   = 500 * time.Millisecond
	defaultMaxConcurrent = 2
)

// Handler processes one new file.
type Handler func(ctx context.Context, path string) error

// Options tunes the watcher.
type Options struct {
	// Accept filters paths; nil accepts everything.
	Accept func(path string) bool
	// SettleDelay gives writers time to finish before the handler runs.
	SettleDelay   time.Duration
	MaxConcurrent int
}

// Watcher runs a handler for every file created in a directory.
type Watcher struct {
	dir     string
	handler Handler
	opts    Options
	fs      *fsnotify.Watcher
	sem     chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// New starts watching dir. Call Close when done.
func New(dir string, handler Handler, opts Options, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	return &Watcher{
		dir:     dir,
		handler: handler,
		opts:    opts,
		fs:      fs,
		sem:     make(chan struct{}, opts.MaxConcurrent),
		logger:  logger.With("component", "watcher"),
	}, nil
}

// Run dispatches create events until ctx is done, then waits for running handlers.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for recordings", "dir", w.dir, "max_concurrent", w.opts.MaxConcurrent)
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if w.opts.Accept != nil && !w.opts.Accept(event.Name) {
				w.logger.Debug("ignoring file", "path", event.Name)
				continue
			}
			if err := w.dispatch(ctx, event.Name); err != nil {
				return err
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, path string) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()

		select {
		case <-time.After(w.opts.SettleDelay):
		case <-ctx.Done():
			return
		}
		w.logger.Info("new recording", "path", path)
		if err := w.handler(ctx, path); err != nil {
			w.logger.Error("processing failed", "path", path, "error", err)
		}
	}()
	return nil
}

// Close releases the underlying watch.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
