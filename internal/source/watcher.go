package source

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher notifies when files appear in or disappear from a source
// directory, so an active session can refill its batch without waiting
// for the next interaction.
type Watcher struct {
	watcher *fsnotify.Watcher
	onEvent func()
	stopCh  chan struct{}
}

// Watch starts watching dir and invokes onEvent for every create, remove
// or rename in it. onEvent is called from the watcher goroutine; callers
// must provide their own synchronization.
func Watch(dir string, onEvent func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		onEvent: onEvent,
		stopCh:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.onEvent()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are not actionable here; enumeration on the next
			// refill will surface anything persistent.
		case <-w.stopCh:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stopCh)
	return w.watcher.Close()
}
