package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// WithDebounce sets how long the directory must stay quiet before Watch
// reloads it. Editors save in several writes.
func WithDebounce(d time.Duration) Option {
	return func(r *Registry) {
		r.settle = d
	}
}

// Watch loads dir and then reloads it whenever a .cue file in it is created,
// written, removed or renamed. It blocks until ctx is cancelled and returns
// nil then, or returns an error if the watcher cannot be set up.
//
// A reload that fails to compile or validate is logged and the previous catalogue stays
// in service.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	if err := r.LoadDir(dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.logger.Info("watching program catalogue", "dir", dir)

	timer := time.NewTimer(r.settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopped watching program catalogue", "dir", dir)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			r.logger.Debug("program file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(r.settle)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("program watcher error", "dir", dir, "error", err)

		case <-timer.C:
			r.reload(dir)
		}
	}
}

func (r *Registry) reload(dir string) {
	err := r.LoadDir(dir)
	if err != nil {
		r.logger.Error("program reload failed, keeping previous catalogue",
			"dir", dir,
			"programs", r.Len(),
			"error", err)
	}
	if r.onReload != nil {
		if err != nil {
			r.onReload(nil, err)
		} else {
			r.onReload(r.Slugs(), nil)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if filepath.Ext(event.Name) != ".cue" {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
