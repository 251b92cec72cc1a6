// Package watch notifies subscribers when any of a set of files changes.
package watch

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const defaultInterval = 1 * time.Second

// Watcher watches files for changes using polling.
type Watcher struct {
	paths       []string
	interval    time.Duration
	subscribers []func()
	mu          sync.RWMutex
	done        chan struct{}
	closeOnce   sync.Once
}

// New creates a watcher over paths. Every path must exist when watching starts.
func New(paths ...string) (*Watcher, error) {
	return newWatcher(defaultInterval, paths)
}

func newWatcher(interval time.Duration, paths []string) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("nothing to watch")
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "cannot watch %s", path)
		}
	}

	w := &Watcher{
		paths:    append([]string(nil), paths...),
		interval: interval,
		done:     make(chan struct{}),
	}

	// Snapshot before returning so writes right after New are seen.
	modTimes := w.snapshot()
	go w.poll(modTimes)

	return w, nil
}

// Subscribe adds a callback that will be called when a watched file changes.
// Returns an unsubscribe function.
func (w *Watcher) Subscribe(callback func()) func() {
	w.mu.Lock()
	w.subscribers = append(w.subscribers, callback)
	index := len(w.subscribers) - 1
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if index < len(w.subscribers) {
			w.subscribers[index] = nil
		}
	}
}

func (w *Watcher) snapshot() map[string]time.Time {
	modTimes := make(map[string]time.Time, len(w.paths))
	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			modTimes[path] = info.ModTime()
		}
	}
	return modTimes
}

func (w *Watcher) poll(lastModTimes map[string]time.Time) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			// select picks randomly when both are ready
			select {
			case <-w.done:
				return
			default:
			}

			changed := false
			for _, path := range w.paths {
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				modTime := info.ModTime()
				if !modTime.Equal(lastModTimes[path]) {
					slog.Debug("File changed", "path", path)
					lastModTimes[path] = modTime
					changed = true
				}
			}
			// One notification per tick however many files changed.
			if changed {
				w.notify()
			}
		}
	}
}

func (w *Watcher) notify() {
	w.mu.RLock()
	subscribers := make([]func(), len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.RUnlock()

	for _, callback := range subscribers {
		if callback != nil {
			callback()
		}
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
	})
	return nil
}
