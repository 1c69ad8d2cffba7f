// Package watcher hands files dropped into an inbox directory to a handler
// once they stop changing.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

const defaultSettle = 500 * time.Millisecond

// Handler receives the path of a settled file
type Handler func(ctx context.Context, path string) error

// Watcher debounces create and write events in one directory
type Watcher struct {
	dir    string
	settle time.Duration
	handle Handler
	logger *logger.Logger
}

// New creates a Watcher. A file is handed over after settle without events.
func New(dir string, settle time.Duration, handle Handler, log *logger.Logger) *Watcher {
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{
		dir:    dir,
		settle: settle,
		handle: handle,
		logger: logger.OrGlobal(log).Named("watcher"),
	}
}

// Run watches until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching inbox", zap.String("dir", w.dir), zap.Duration("settle", w.settle))

	pending := map[string]time.Time{}
	tick := w.settle / 2
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				w.dispatch(ctx, path)
			}
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if err := w.handle(ctx, path); err != nil {
		w.logger.Warn("inbox file not handled", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Debug("inbox file handled", zap.String("path", path))
}
