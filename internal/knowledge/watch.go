package knowledge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 500 * time.Millisecond

// Watch re-ingests path whenever the file changes until ctx is done.
// The parent directory is watched so that editors replacing the file are noticed.
func (b *Base) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	b.logger.Info("watching cv for changes", zap.String("path", abs))

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			stop()
			timer = time.NewTimer(watchDebounce)
			trigger = timer.C
		case <-trigger:
			trigger = nil
			if _, err := b.Ingest(ctx, abs); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				b.logger.Warn("reload cv failed", zap.String("path", abs), zap.Error(err))
				continue
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logger.Warn("cv watcher error", zap.Error(err))
		}
	}
}
