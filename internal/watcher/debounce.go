package watcher

import (
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer coalesces bursts of filesystem events per transcript path, so an
// editor that writes a file in several syscalls yields one dispatch. It is
// guarded by the owning Watcher's mutex.
type debouncer struct {
	window  time.Duration
	timers  map[string]*time.Timer
	pending map[string]Event
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]Event),
	}
}

// hold replaces any pending event for the path and restarts its delivery
// timer. It reports whether an earlier pending event was superseded.
func (debouncer *debouncer) hold(path string, event Event, deliver func(string)) bool {
	if debouncer == nil {
		return false
	}
	_, superseded := debouncer.pending[path]
	debouncer.pending[path] = event
	if timer, ok := debouncer.timers[path]; ok {
		timer.Reset(debouncer.window)
	} else {
		debouncer.timers[path] = time.AfterFunc(debouncer.window, func() {
			deliver(path)
		})
	}
	return superseded
}

func (debouncer *debouncer) stop() {
	if debouncer == nil {
		return
	}
	for _, timer := range debouncer.timers {
		timer.Stop()
	}
	debouncer.timers = nil
	debouncer.pending = nil
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	if !watcher.hasCallbacksLocked(event.Name) {
		watcher.mutex.Unlock()
		return
	}

	entry := Event{
		Path:      event.Name,
		Op:        event.Op,
		Timestamp: time.Now().UTC(),
	}
	if watcher.debouncer != nil {
		if watcher.debouncer.hold(event.Name, entry, watcher.flush) {
			atomic.AddUint64(&watcher.eventsDropped, 1)
		}
	}
	watcher.mutex.Unlock()
}

// flush delivers the pending event for a path once its debounce window passes.
func (watcher *Watcher) flush(path string) {
	watcher.mutex.Lock()
	debouncer := watcher.debouncer
	if watcher.closed || debouncer == nil {
		watcher.mutex.Unlock()
		return
	}
	event, ok := debouncer.pending[path]
	if !ok {
		watcher.mutex.Unlock()
		return
	}
	delete(debouncer.pending, path)
	if timer, ok := debouncer.timers[path]; ok {
		timer.Stop()
		delete(debouncer.timers, path)
	}
	callbacks := watcher.callbacksForPathLocked(path)
	watcher.mutex.Unlock()

	for _, callback := range callbacks {
		callback(event)
		atomic.AddUint64(&watcher.eventsDelivered, 1)
	}
}
