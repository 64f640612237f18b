package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

const defaultDebounce = 2 * time.Second

// Watcher triggers re-indexing runs when workspace files change. Events are
// debounced so a burst of writes (a git checkout, a formatter pass) produces
// a single run.
type Watcher struct {
	service  *Service
	logger   *zap.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewWatcher creates a watcher bound to an indexing service. debounce <= 0
// uses the default.
func NewWatcher(service *Service, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		service:  service,
		logger:   logger,
		debounce: debounce,
		watcher:  fsw,
		stop:     make(chan struct{}),
	}, nil
}

// Start registers the workspace tree with the watcher and begins processing
// events in a background goroutine. Call Stop to clean up.
func (w *Watcher) Start(ctx context.Context) error {
	w.service.mu.Lock()
	root := w.service.cfg.Root
	w.service.mu.Unlock()

	if err := w.addTree(root); err != nil {
		return fmt.Errorf("watching workspace: %w", err)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// addTree registers root and every non-skipped subdirectory. fsnotify does
// not watch recursively on its own.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if defaultSkipDirs[d.Name()] && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New directories have to be registered or their contents are
			// invisible to us.
			if event.Op&fsnotify.Create != 0 {
				if name := filepath.Base(event.Name); !defaultSkipDirs[name] {
					_ = w.watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			w.reindex(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reindex(ctx context.Context) {
	result, err := w.service.IndexWorkspace(ctx, nil)
	switch {
	case errors.Is(err, ErrIndexInProgress):
		w.logger.Debug("change detected during active run, skipping")
	case err != nil:
		w.logger.Error("watch-triggered indexing failed", zap.Error(err))
	default:
		w.logger.Info("workspace re-indexed",
			zap.String("run_id", result.RunID),
			zap.Int("files_indexed", result.FilesIndexed),
			zap.Int("chunks_indexed", result.ChunksIndexed),
		)
	}
}
