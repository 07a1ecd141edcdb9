package apidoc

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change event
// before reloading.
const DefaultDebounce = 300 * time.Millisecond

// Watch reloads h whenever its source file is written, created or renamed
// into place. It blocks until ctx is cancelled.
func Watch(ctx context.Context, h *Handle, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	target, err := filepath.Abs(h.source)
	if err != nil {
		return fmt.Errorf("resolve watch path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("adding %s to watcher: %w", filepath.Dir(target), err)
	}
	h.logger.Info("watching API document", "source", target)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				h.logger.Info("API document changed", "source", target, "op", event.Op.String())
				h.Reload(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("watcher error", "error", err)
		}
	}
}
