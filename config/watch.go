package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dustyfingers/synthy/synth"
	"github.com/fsnotify/fsnotify"
)

// Watch applies the parameter file at path once, then again every time it is
// written or replaced, until ctx is done. Edits that fail to parse are logged
// and skipped.
func Watch(ctx context.Context, path string, params *synth.Params, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if err := reload(abs, params); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Editors often save by rename, so watch the directory rather than the file.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching parameter file", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := reload(abs, params); err != nil {
				logger.Warn("parameter file not applied", "path", abs, "err", err)
				continue
			}
			logger.Debug("parameter file applied", "path", abs, "values", params.Snapshot())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)
		}
	}
}

func reload(path string, params *synth.Params) error {
	values, err := LoadParamsJSON(path)
	if err != nil {
		return err
	}
	return ApplyParams(params, values)
}
