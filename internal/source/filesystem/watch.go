package filesystem

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch signals wake after files in dirs change, batching bursts of events
// within debounce. It blocks until ctx is done.
func Watch(ctx context.Context, dirs []string, debounce time.Duration, wake chan<- struct{}, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching '%s': %w", dir, err)
		}
	}

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("inbox watch error", zap.Error(err))

		case <-timer.C:
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
