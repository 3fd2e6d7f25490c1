package api

import (
	"context"
	"os"
	"sync"

	"orgls/internal/document"
	"orgls/internal/env"
	"orgls/internal/manager"

	"github.com/fsnotify/fsnotify"
)

// watcher keeps the store in step with files changed behind its back.
// Files are watched once a command has loaded them.
type watcher struct {
	fs        *fsnotify.Watcher
	documents *manager.DocumentManager
	hub       *hub

	mu      sync.Mutex
	watched map[string]document.Location
}

func newWatcher(documents *manager.DocumentManager, hub *hub) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{
		fs:        fs,
		documents: documents,
		hub:       hub,
		watched:   make(map[string]document.Location),
	}, nil
}

// sync watches every file location in the store that is not watched yet.
func (w *watcher) sync() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, loc := range w.documents.Locations() {
		path, err := env.Path(loc)
		if err != nil {
			continue
		}
		if _, ok := w.watched[path]; ok {
			continue
		}
		if err := w.fs.Add(path); err != nil {
			log.Warningf("cannot watch %s: %v", path, err)
			continue
		}
		w.watched[path] = loc
	}
}

func (w *watcher) location(path string) (document.Location, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	loc, ok := w.watched[path]
	return loc, ok
}

func (w *watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, path)
	_ = w.fs.Remove(path)
}

// run handles file events until ctx is done or the watcher is closed.
func (w *watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warningf("watch error: %v", err)
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	loc, ok := w.location(ev.Name)
	if !ok {
		return
	}
	switch {
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
		data, err := os.ReadFile(ev.Name)
		if err != nil {
			log.Warningf("cannot reload %s: %v", ev.Name, err)
			return
		}
		if w.documents.Update(loc, nil, string(data)) {
			log.Debugf("reloaded %s", loc)
			w.hub.broadcast(Event{Op: "reload", Target: loc})
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.forget(ev.Name)
		w.documents.Release(loc)
		w.hub.broadcast(Event{Op: "release", Target: loc})
	}
}

func (w *watcher) Close() error {
	return w.fs.Close()
}
