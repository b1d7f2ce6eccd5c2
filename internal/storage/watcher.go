package storage

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher reports files removed from a directory
type Watcher struct {
	watcher  *fsnotify.Watcher
	onRemove func(path string)
	done     chan struct{}
	started  atomic.Bool
}

// NewWatcher creates a watcher that calls onRemove for every file that is
// deleted or moved out of the watched directory
func NewWatcher(onRemove func(path string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  w,
		onRemove: onRemove,
		done:     make(chan struct{}),
	}, nil
}

// Watch starts monitoring dir until ctx ends or Stop is called
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	w.started.Store(true)
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				path := filepath.Clean(event.Name)
				log.WithFields(log.Fields{
					"path":  path,
					"op":    event.Op.String(),
					"event": "file_removed",
				}).Debug("Watched file removed")
				w.onRemove(path)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.WithFields(log.Fields{
					"error": err.Error(),
					"event": "watcher_error",
				}).Warn("File watcher error")
			}
		}
	}()
	return nil
}

// Stop closes the watcher and waits for the event loop to exit
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	if w.started.Load() {
		<-w.done
	}
	return err
}
