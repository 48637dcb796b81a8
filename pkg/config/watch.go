package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bimhub/bimhub/internal/logger"
)

// Watch reloads the configuration file whenever it changes on disk and
// invokes onChange with the freshly loaded configuration. It blocks
// until ctx is cancelled.
//
// The parent directory is watched rather than the file itself because
// most editors and configuration management tools replace the file
// atomically, which would otherwise drop the watch.
//
// Reloads that fail to parse or validate are logged and skipped; the
// running configuration stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	base := filepath.Base(path)

	// Editors fire several events per save. Collapse bursts into a
	// single reload.
	var debounce *time.Timer
	reloads := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)

		case <-reloads:
			cfg, err := Load(path)
			if err != nil {
				logger.Warn("Config reload failed, keeping current configuration", "path", path, "error", err)
				continue
			}
			logger.Info("Configuration reloaded", "path", path)
			onChange(cfg)
		}
	}
}
