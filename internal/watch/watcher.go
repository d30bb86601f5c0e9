package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jborden/git-sentinel/internal/model"
)

// Watcher wraps fsnotify into a recursive watch source for a root directory.
// It delivers create/modify events on a buffered channel and keeps newly
// created subdirectories under watch.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	events chan model.FileEvent
	logger *slog.Logger
}

// NewWatcher creates a recursive watcher rooted at root. The root must exist;
// a missing root is a startup-fatal configuration error.
func NewWatcher(root string, logger *slog.Logger) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch root %s does not exist: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:   root,
		fsw:    fsw,
		events: make(chan model.FileEvent, 256),
		logger: logger,
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Events returns the event stream. The channel is closed when the watcher
// stops.
func (w *Watcher) Events() <-chan model.FileEvent {
	return w.events
}

// Start consumes fsnotify notifications until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.events)
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watch source stopping", "root", w.root)
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors degrade to a log line; the stream keeps going.
			w.logger.Warn("Watch source error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	var kind model.EventKind
	switch {
	case ev.Op.Has(fsnotify.Create):
		kind = model.EventCreated
	case ev.Op.Has(fsnotify.Write):
		kind = model.EventModified
	default:
		return
	}

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	// New subdirectories must come under watch for the recursion guarantee.
	if isDir && kind == model.EventCreated {
		if err := w.addRecursive(ev.Name); err != nil {
			w.logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err)
		}
	}

	select {
	case w.events <- model.FileEvent{Path: ev.Name, Kind: kind, IsDir: isDir}:
	case <-ctx.Done():
	}
}

// addRecursive puts dir and every subdirectory under watch, skipping
// version-control metadata.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && path != dir {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("Failed to add watch", "path", path, "error", err)
		}
		return nil
	})
}
