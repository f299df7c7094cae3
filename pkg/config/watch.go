package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the feed table whenever the config file changes, swapping
// the registry's table on success. A file that fails to parse keeps the
// previous table and logs the problem. Blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself: editors and
// config-management tools typically replace the file via rename, which
// drops a watch registered on the old inode.
func (r *Registry) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	logger.Info("watching config for changes", "path", target)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Error("config reload failed, keeping previous table", "error", err)
				continue
			}
			r.Replace(cfg)
			logger.Info("config reloaded", "feeds", len(cfg.Feeds))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
