package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/blockboard/blockboard/internal/logging"
)

// Watch reloads the config file on change and invokes fn with the new
// value. Editors often replace the file (rename + create), so the
// parent directory is watched rather than the file itself.
func Watch(ctx context.Context, path string, fn func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
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
				evAbs, err := filepath.Abs(event.Name)
				if err != nil || evAbs != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				c, err := Load(path)
				if err != nil {
					logging.Warnf("[config] Reload failed, keeping previous config: %v", err)
					continue
				}
				logging.Infof("[config] Reloaded %s", path)
				fn(c)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warnf("[config] Watcher error: %v", err)
			}
		}
	}()
	return nil
}
