// Package watch turns filesystem changes in the stage directories into pass
// triggers.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const triggerSource = "watch"

// Watcher observes a fixed set of directories, non-recursively, and calls
// the trigger once per quiet period after a burst of changes.
type Watcher struct {
	w        *fsnotify.Watcher
	dirs     []string
	trigger  func(source string)
	debounce time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// New starts watching dirs. Nothing is delivered to trigger until Run is
// called.
func New(dirs []string, debounce time.Duration, trigger func(source string), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return &Watcher{
		w:        w,
		dirs:     dirs,
		trigger:  trigger,
		debounce: debounce,
		log:      log,
	}, nil
}

// Run delivers debounced triggers until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	w.log.Info("watcher: started", "dirs", w.dirs, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.log.Info("change detected", "file", ev.Name, "op", ev.Op.String())
			w.schedule()
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the watcher and any pending trigger. It is safe to call more
// than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.w.Close()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.trigger(triggerSource)
	})
}

// relevant keeps Create, Write and Rename events on anything that is not a
// directory. A renamed-away path no longer exists and still counts.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return true
	}
	return !info.IsDir()
}
