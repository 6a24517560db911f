package dynamic

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"whiterabbit/internal/logging"
)

// ArtifactWatcher watches the run directory and publishes an event
// whenever a capture artifact appears. Best effort: a watcher failure
// degrades to silence, never to a failed run.
type ArtifactWatcher struct {
	watcher  *fsnotify.Watcher
	notifier *Notifier

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewArtifactWatcher creates a watcher over dir.
func NewArtifactWatcher(dir string, notifier *Notifier) (*ArtifactWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &ArtifactWatcher{
		watcher:  watcher,
		notifier: notifier,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine. Non-blocking; idempotent.
func (w *ArtifactWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.loop()
}

func (w *ArtifactWatcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op.Has(fsnotify.Create) {
				w.notifier.publish(EventArtifactCreated, "", filepath.Base(evt.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.StageWarn("artifact watcher: %v", err)
		case <-w.stopCh:
			return
		}
	}
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *ArtifactWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}
