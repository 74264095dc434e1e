package profile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the active profile and reloads it when its file changes.
// Sessions already running keep the arguments they were started with.
type Watcher struct {
	path    string
	log     *slog.Logger
	current atomic.Pointer[Profile]
	reloads atomic.Int64
}

// NewWatcher loads path and returns a watcher serving it. An empty path
// serves Default and never reloads.
func NewWatcher(path string, log *slog.Logger) (*Watcher, error) {
	w := &Watcher{path: path, log: log}

	p := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	w.current.Store(&p)
	return w, nil
}

// Static returns a watcher that always serves p.
func Static(p Profile) *Watcher {
	w := &Watcher{}
	w.current.Store(&p)
	return w
}

// Current returns the active profile.
func (w *Watcher) Current() Profile {
	return *w.current.Load()
}

// Reloads returns how many times the profile was successfully reloaded.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Run watches the profile file until ctx is cancelled. The directory is
// watched rather than the file so that editors replacing the file are seen.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch profile directory: %w", err)
	}

	baseName := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != baseName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("profile watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	p, err := LoadFile(w.path)
	if err != nil {
		// Keep serving the previous profile; a half-written file is common.
		w.log.Warn("profile reload failed", "path", w.path, "error", err)
		return
	}
	w.current.Store(&p)
	w.reloads.Add(1)
	w.log.Info("profile reloaded", "path", w.path, "name", p.Name, "binary", p.Binary)
}
