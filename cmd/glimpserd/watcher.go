package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchConfig watches configPath for writes and invokes reload with the
// freshly parsed config on each one, until ctx is cancelled. Errors
// reading back a changed file are logged and skipped, leaving the
// previous configuration in effect.
func watchConfig(ctx context.Context, configPath string, reload func(fileConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(configPath) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := loadConfig(configPath)
				if err != nil {
					slog.Warn("config reload failed, keeping previous configuration", "path", configPath, "error", err)
					continue
				}
				slog.Info("config file changed, reloading", "path", configPath)
				reload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
