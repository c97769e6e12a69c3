package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// Watch reloads path whenever it is written or replaced and passes the new
// Config to onChange. It runs until ctx is cancelled.
//
// The parent directory is watched so editors that save by rename are picked
// up. A reload that fails to parse or validate is logged and counted; the
// previous configuration stays active and onChange is not called.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config watch %s: %w", path, err)
	}
	logger.Info("watching config for changes", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFile(path)
			if err != nil {
				observability.ConfigReloadsTotal.WithLabelValues("error").Inc()
				logger.Error("config reload failed, keeping previous config", zap.String("path", path), zap.Error(err))
				continue
			}
			observability.ConfigReloadsTotal.WithLabelValues("success").Inc()
			logger.Info("config reloaded", zap.String("path", path))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
