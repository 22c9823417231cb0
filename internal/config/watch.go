package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of Write/Create events an editor or
// provisioning tool emits for a single save into one reload.
const reloadDebounce = 250 * time.Millisecond

// Watch monitors path for changes and calls onChange with the newly loaded
// Config after each settled write. It runs until ctx is cancelled.
//
// A failed reload (invalid YAML, bad values) is logged and the previous
// config stays active — Watch does not call onChange.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var (
		debounce *time.Timer
		settled  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which surfaces as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
				settled = debounce.C
			} else {
				debounce.Reset(reloadDebounce)
			}

		case <-settled:
			debounce = nil
			settled = nil
			reload(watcher, path, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// reload re-arms the watch and applies the new config. An atomic save
// replaces the inode, so the path must be re-added before anything else —
// even a reload that fails validation still keeps future changes visible.
func reload(watcher *fsnotify.Watcher, path string, onChange func(*Config)) {
	_ = watcher.Add(path)

	cfg, err := Load(path)
	if err != nil {
		slog.Error("config: reload failed, keeping previous config",
			"path", path, "err", err)
		return
	}

	slog.Info("config: reloaded", "path", path)
	onChange(cfg)
}
