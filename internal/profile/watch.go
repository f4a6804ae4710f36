package profile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"go.olrik.dev/sshcore/termwatch"
)

// Watcher hot-reloads a profile directory on change, publishing each
// successfully-reloaded Store through a termwatch.Broadcast so callers can
// termwatch.Watcher.Changed their way to the latest Store instead of
// polling the filesystem themselves.
type Watcher struct {
	dir       string
	broadcast *termwatch.Broadcast[*Store]
	fsw       *fsnotify.Watcher

	mu         sync.Mutex
	reloadTime *time.Timer
}

// NewWatcher loads dir once synchronously, then starts watching it for
// changes in the background. Cancel ctx to stop watching.
func NewWatcher(ctx context.Context, dir string) (*Watcher, error) {
	store, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:       dir,
		broadcast: termwatch.NewBroadcast(store),
		fsw:       fsw,
	}

	go w.run(ctx)
	return w, nil
}

// Current returns the most recently loaded Store without suspending.
func (w *Watcher) Current() *Store {
	return w.broadcast.Get()
}

// Watch constructs a new Watcher observing reload events.
func (w *Watcher) Watch() *termwatch.Watcher[*Store] {
	return w.broadcast.Watch()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.fsw.Close()
	defer w.broadcast.Release()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Default().Debug("profile: watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of filesystem events (editors frequently
// emit several events for one logical save) behind a 500ms timer, the same
// debounce window the config-reload path this is adapted from uses.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reloadTime != nil {
		w.reloadTime.Stop()
	}
	w.reloadTime = time.AfterFunc(500*time.Millisecond, func() {
		store, err := LoadDir(w.dir)
		if err != nil {
			slog.Default().Debug("profile: reload failed", "error", err)
			return
		}
		w.broadcast.Publish(store)
	})
}
